package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmloop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func TestDispatcherPersistsAndPublishes(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	publisher := &recordingPublisher{}
	dispatcher, err := NewDispatcher(repo, publisher, nil)
	require.NoError(t, err)

	user := uuid.New()
	link := "/orders/1"
	dispatcher.Notify(context.Background(), user, enums.NotificationTypeOrder, "Order Created", "Your order was created.", &link)
	dispatcher.Wait()

	svc := newServiceWithRepo(repo)
	list, err := svc.List(context.Background(), ListParams{UserID: user})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "Order Created", list.Items[0].Title)
	require.EqualValues(t, 1, list.UnreadCount)

	require.Len(t, publisher.events, 1)
	require.Equal(t, list.Items[0].ID, publisher.events[0].NotificationID)
	require.Equal(t, enums.NotificationTypeOrder, publisher.events[0].Type)
}

func TestDispatcherSwallowsPublishErrors(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	dispatcher, err := NewDispatcher(repo, &recordingPublisher{err: errors.New("topic gone")}, nil)
	require.NoError(t, err)

	user := uuid.New()
	dispatcher.Notify(context.Background(), user, enums.NotificationTypePayment, "Payment Successful", "", nil)
	dispatcher.Wait()

	count, err := repo.UnreadCount(context.Background(), user)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDispatcherHonoursPreferences(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := newServiceWithRepo(repo)
	dispatcher, err := NewDispatcher(repo, nil, nil)
	require.NoError(t, err)

	user := uuid.New()
	off := false
	_, err = svc.UpdatePreferences(context.Background(), user, UpdatePreferencesInput{RewardUpdates: &off})
	require.NoError(t, err)

	stored, err := svc.GetPreferences(context.Background(), user)
	require.NoError(t, err)
	require.False(t, stored.RewardUpdates)
	require.True(t, stored.OrderUpdates)

	dispatcher.Notify(context.Background(), user, enums.NotificationTypeReward, "Points Earned", "10 points", nil)
	dispatcher.Notify(context.Background(), user, enums.NotificationTypeDelivery, "Delivery Update", "in transit", nil)
	dispatcher.Notify(context.Background(), user, "bogus", "Ignored", "", nil)

	count, err := repo.UnreadCount(context.Background(), user)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestRepositoryReadLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := newServiceWithRepo(repo)
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{UserID: user, Type: enums.NotificationTypeSystem, Title: "hello", Message: "m"}))
	}

	page, err := svc.List(ctx, ListParams{UserID: user, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Cursor)

	rest, err := svc.List(ctx, ListParams{UserID: user, Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	require.Empty(t, rest.Cursor)

	require.NoError(t, svc.MarkRead(ctx, user, page.Items[0].ID))
	require.NoError(t, svc.MarkRead(ctx, user, page.Items[0].ID))
	require.Error(t, svc.MarkRead(ctx, uuid.New(), page.Items[0].ID))

	unread, err := svc.List(ctx, ListParams{UserID: user, UnreadOnly: true, Limit: pagination.MaxLimit})
	require.NoError(t, err)
	require.Len(t, unread.Items, 2)

	marked, err := svc.MarkAllRead(ctx, user)
	require.NoError(t, err)
	require.EqualValues(t, 2, marked)
}
