package notifications

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	"github.com/angelmondragon/farmloop-backend/pkg/logger"
)

const defaultPublishTimeout = 5 * time.Second

// Dispatcher stores in-app notifications and fans them out to the event
// publisher. Notify never fails its caller; problems are logged.
type Dispatcher struct {
	repo      Repository
	publisher Publisher
	logg      *logger.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewDispatcher builds a dispatcher. A nil publisher keeps notifications in-app only.
func NewDispatcher(repo Repository, publisher Publisher, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, errRepositoryRequired
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		logg:      logg,
		timeout:   defaultPublishTimeout,
	}, nil
}

func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, kind enums.NotificationType, title, message string, link *string) {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"user_id":           userID.String(),
		"notification_type": string(kind),
	})
	if userID == uuid.Nil || !kind.IsValid() || strings.TrimSpace(title) == "" {
		d.logg.Warn(logCtx, "dropping malformed notification")
		return
	}

	prefs, err := loadPreferences(ctx, d.repo, userID)
	if err != nil {
		d.logg.Error(logCtx, "load notification preferences", err)
	} else if !prefs.Allows(kind) {
		return
	}

	notification := &models.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    kind,
		Title:   strings.TrimSpace(title),
		Message: strings.TrimSpace(message),
		Link:    link,
	}
	if err := d.repo.Create(ctx, notification); err != nil {
		d.logg.Error(logCtx, "persist notification", err)
		return
	}

	if d.publisher == nil {
		return
	}
	event := eventFrom(notification)
	pubCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		pubCtx, cancel := context.WithTimeout(pubCtx, d.timeout)
		defer cancel()
		if err := d.publisher.Publish(pubCtx, event); err != nil {
			d.logg.Error(logCtx, "publish notification event", err)
		}
	}()
}

// Wait blocks until in-flight publishes finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
