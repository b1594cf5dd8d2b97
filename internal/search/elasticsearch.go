// internal/search/elasticsearch.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"restaurant-onboarding/internal/common/logger"
	"restaurant-onboarding/internal/models"
)

// ElasticsearchIndexer writes approved restaurants into the search index that
// backs customer browsing.
type ElasticsearchIndexer struct {
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

func NewElasticsearchIndexer(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchIndexer {
	return &ElasticsearchIndexer{client: client, index: index, log: log}
}

type restaurantDocument struct {
	ApplicationID  string `json:"application_id"`
	OwnerID        string `json:"owner_id"`
	RestaurantName string `json:"restaurant_name"`
	Description    string `json:"description"`
	CuisineType    string `json:"cuisine_type"`
	Address        string `json:"address"`
	Phone          string `json:"phone"`
}

func (i *ElasticsearchIndexer) Index(ctx context.Context, app *models.RestaurantApplication) error {
	doc := restaurantDocument{
		ApplicationID:  app.ID,
		OwnerID:        app.OwnerID,
		RestaurantName: app.RestaurantName,
		Description:    app.Field("details_description"),
		CuisineType:    app.CuisineType,
		Address:        app.Address,
		Phone:          app.Phone,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode restaurant document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: app.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to index restaurant %s: %w", app.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing restaurant %s returned status %s", app.ID, res.Status())
	}

	i.log.Info("Restaurant indexed", map[string]interface{}{
		"application_id": app.ID,
		"index":          i.index,
	})
	return nil
}

func (i *ElasticsearchIndexer) Remove(ctx context.Context, applicationID string) error {
	req := esapi.DeleteRequest{
		Index:      i.index,
		DocumentID: applicationID,
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to remove restaurant %s from index: %w", applicationID, err)
	}
	defer res.Body.Close()

	// 404 means the document was never indexed; removal is idempotent.
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("removing restaurant %s returned status %s", applicationID, res.Status())
	}
	return nil
}
