// internal/notify/dispatcher.go
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	commonerrors "restaurant-onboarding/internal/common/errors"
	"restaurant-onboarding/internal/common/logger"
	"restaurant-onboarding/internal/common/metrics"
)

// SESAPI is the slice of the SES client the dispatcher uses.
type SESAPI interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SNSAPI is the slice of the SNS client the dispatcher uses.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type emailTemplate struct {
	Subject string
	Body    string
}

// Owner-facing events go out as SES email; review requests fan out to the
// manager SNS topic.
var emailTemplates = map[Event]emailTemplate{
	EventSubmittedConfirmation: {
		Subject: "We received your restaurant application",
		Body:    "Hi,\n\nYour application for {{restaurant_name}} has been received and is waiting for review.\n\nApplication ID: {{application_id}}",
	},
	EventApproved: {
		Subject: "Your restaurant application was approved",
		Body:    "Congratulations!\n\n{{restaurant_name}} has been approved and is now visible to customers.\n\nApplication ID: {{application_id}}",
	},
	EventRejected: {
		Subject: "Your restaurant application was rejected",
		Body:    "Unfortunately your application for {{restaurant_name}} was rejected.\n\nReason: {{reason}}\n\nApplication ID: {{application_id}}",
	},
	EventSuspended: {
		Subject: "Your restaurant listing was suspended",
		Body:    "Your listing for {{restaurant_name}} has been suspended and is no longer visible to customers.\n\nReason: {{reason}}\n\nApplication ID: {{application_id}}",
	},
	EventReactivated: {
		Subject: "Your restaurant listing is active again",
		Body:    "Good news! {{restaurant_name}} has been reactivated and is visible to customers again.\n\nApplication ID: {{application_id}}",
	},
	EventExpired: {
		Subject: "Your restaurant application expired",
		Body:    "Your application for {{restaurant_name}} was not reviewed in time and has expired. You are welcome to apply again.\n\nApplication ID: {{application_id}}",
	},
}

// AWSDispatcher sends owner notifications through SES and manager broadcasts
// through SNS.
type AWSDispatcher struct {
	sesClient SESAPI
	snsClient SNSAPI
	fromEmail string
	topicARN  string
	log       logger.Logger
}

func NewAWSDispatcher(sesClient SESAPI, snsClient SNSAPI, fromEmail, topicARN string, log logger.Logger) *AWSDispatcher {
	return &AWSDispatcher{
		sesClient: sesClient,
		snsClient: snsClient,
		fromEmail: fromEmail,
		topicARN:  topicARN,
		log:       log,
	}
}

func (d *AWSDispatcher) Dispatch(ctx context.Context, msg Message) error {
	var err error
	if msg.Event == EventReviewRequested {
		err = d.publishReviewRequest(ctx, msg)
	} else {
		err = d.sendEmail(ctx, msg)
	}

	if err != nil {
		metrics.NotificationFailures.WithLabelValues(string(msg.Event)).Inc()
		d.log.WithError(err).Warn("Notification dispatch failed", map[string]interface{}{
			"event":     string(msg.Event),
			"recipient": msg.Recipient,
		})
		return commonerrors.NewNotificationDeliveryError(string(msg.Event), msg.Recipient, err)
	}
	return nil
}

func (d *AWSDispatcher) sendEmail(ctx context.Context, msg Message) error {
	tmpl, ok := emailTemplates[msg.Event]
	if !ok {
		return fmt.Errorf("no template registered for event %s", msg.Event)
	}
	if msg.Recipient == "" {
		return fmt.Errorf("no recipient for event %s", msg.Event)
	}

	subject := renderTemplate(tmpl.Subject, msg)
	body := renderTemplate(tmpl.Body, msg)

	_, err := d.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(d.fromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{msg.Recipient},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	return err
}

func (d *AWSDispatcher) publishReviewRequest(ctx context.Context, msg Message) error {
	if d.topicARN == "" {
		return fmt.Errorf("no manager topic configured")
	}

	text := renderTemplate(
		"New restaurant application awaiting review: {{restaurant_name}} (application {{application_id}})",
		msg,
	)

	_, err := d.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(d.topicARN),
		Subject:  aws.String("Restaurant application awaiting review"),
		Message:  aws.String(text),
	})
	return err
}

func renderTemplate(text string, msg Message) string {
	replacements := map[string]string{
		"{{application_id}}":  "",
		"{{restaurant_name}}": "",
		"{{reason}}":          msg.Reason,
	}
	if msg.Application != nil {
		replacements["{{application_id}}"] = msg.Application.ID
		replacements["{{restaurant_name}}"] = msg.Application.RestaurantName
	}
	for placeholder, value := range replacements {
		text = strings.ReplaceAll(text, placeholder, value)
	}
	return text
}
