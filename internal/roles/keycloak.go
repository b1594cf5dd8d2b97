// internal/roles/keycloak.go
package roles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	commonerrors "restaurant-onboarding/internal/common/errors"
	"restaurant-onboarding/internal/common/logger"
	"restaurant-onboarding/internal/models"
)

// KeycloakGranter assigns and removes realm roles through the Keycloak admin
// REST API using client-credentials tokens. Transient 5xx responses are
// retried once.
type KeycloakGranter struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	log          logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewKeycloakGranter(baseURL, realm, clientID, clientSecret string, log logger.Logger) *KeycloakGranter {
	return &KeycloakGranter{
		baseURL:      strings.TrimRight(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		log:          log,
	}
}

func (g *KeycloakGranter) Grant(ctx context.Context, userID string, role models.Role) error {
	return g.mapRole(ctx, http.MethodPost, "grant role", userID, role)
}

// Revoke removes a realm role from a user. Keycloak treats removing an
// unassigned role as success, so revocation is idempotent.
func (g *KeycloakGranter) Revoke(ctx context.Context, userID string, role models.Role) error {
	return g.mapRole(ctx, http.MethodDelete, "revoke role", userID, role)
}

func (g *KeycloakGranter) mapRole(ctx context.Context, method, op string, userID string, role models.Role) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		retryable, err := g.mapRoleOnce(ctx, method, userID, role)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
		g.log.WithError(err).Warn("Role mapping failed, retrying", map[string]interface{}{
			"user_id": userID,
			"role":    string(role),
			"method":  method,
		})
	}
	return commonerrors.NewRepositoryError(op, lastErr)
}

func (g *KeycloakGranter) mapRoleOnce(ctx context.Context, method, userID string, role models.Role) (retryable bool, err error) {
	token, err := g.token(ctx)
	if err != nil {
		return true, err
	}

	roleRep, err := g.lookupRole(ctx, token, role)
	if err != nil {
		return true, err
	}

	payload, err := json.Marshal([]roleRepresentation{*roleRep})
	if err != nil {
		return false, err
	}

	endpoint := fmt.Sprintf("%s/admin/realms/%s/users/%s/role-mappings/realm", g.baseURL, g.realm, userID)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
		return false, nil
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("role mapping returned status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("role mapping returned status %d", resp.StatusCode)
	}
}

type roleRepresentation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (g *KeycloakGranter) lookupRole(ctx context.Context, token string, role models.Role) (*roleRepresentation, error) {
	endpoint := fmt.Sprintf("%s/admin/realms/%s/roles/%s", g.baseURL, g.realm, url.PathEscape(string(role)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("role lookup returned status %d", resp.StatusCode)
	}

	var rep roleRepresentation
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		return nil, fmt.Errorf("failed to decode role representation: %w", err)
	}
	return &rep, nil
}

func (g *KeycloakGranter) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", g.clientID)
	form.Set("client_secret", g.clientSecret)

	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", g.baseURL, g.realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	g.accessToken = payload.AccessToken
	// Refresh a little early so in-flight requests never carry a stale token.
	g.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn-30) * time.Second)
	return g.accessToken, nil
}
