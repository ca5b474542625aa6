package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

const eventTypeNotificationCreated = "notification.created"

var (
	errRepositoryRequired = errors.New("notifications repository required")
	errPublisherRequired  = errors.New("pubsub publisher required")
)

// Publisher emits notification events to external channels.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Event is the wire payload for a stored notification.
type Event struct {
	NotificationID uuid.UUID              `json:"notificationId"`
	UserID         uuid.UUID              `json:"userId"`
	Type           enums.NotificationType `json:"type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Link           *string                `json:"link,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

func eventFrom(n *models.Notification) Event {
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return Event{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Message:        n.Message,
		Link:           n.Link,
		CreatedAt:      created,
	}
}

// PubSubPublisher publishes events to a Pub/Sub topic.
type PubSubPublisher struct {
	publisher *pubsub.Publisher
}

// NewPubSubPublisher wraps a topic publisher.
func NewPubSubPublisher(publisher *pubsub.Publisher) (*PubSubPublisher, error) {
	if publisher == nil {
		return nil, errPublisherRequired
	}
	return &PubSubPublisher{publisher: publisher}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode notification event: %w", err)
	}
	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type":        eventTypeNotificationCreated,
			"notification_type": string(event.Type),
			"user_id":           event.UserID.String(),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification %s: %w", event.NotificationID, err)
	}
	return nil
}
