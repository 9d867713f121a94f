package usecase

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memory "classifieds/internal/adapter/repository"
	"classifieds/internal/domain/entity"
	"classifieds/internal/infrastructure/metrics"
	"classifieds/pkg/errors"
	"classifieds/pkg/utils"
)

func newNotificationFixture(publisher Publisher) (*NotificationUseCase, *metrics.Collectors) {
	collectors := metrics.New(prometheus.NewRegistry())
	return NewNotificationUseCase(memory.NewMemoryNotificationRepository(), publisher, collectors), collectors
}

func systemNotice(recipient string) CreateNotificationInput {
	return CreateNotificationInput{
		RecipientID: recipient,
		Type:        entity.NotificationPostApproved,
		Title:       "Listing approved",
		Message:     "Your listing is live",
		Link:        "/listings/L42",
	}
}

func TestCreatePersistsWithoutLiveRecipient(t *testing.T) {
	uc, collectors := newNotificationFixture(nil)
	ctx := context.Background()

	created, err := uc.Create(ctx, systemNotice("bob"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	items, total, err := uc.List(ctx, "bob", false, utils.NewPaginationParams(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, created.ID, items[0].ID)
	assert.Equal(t, float64(1), testutil.ToFloat64(collectors.NotificationsCreated.WithLabelValues("post_approved")))
}

func TestCreateSwallowsDeliveryFailure(t *testing.T) {
	publisher := &recordingPublisher{notifyErr: errors.DeliveryFailed("bob", "notification.created", nil)}
	uc, _ := newNotificationFixture(publisher)

	created, err := uc.Create(context.Background(), systemNotice("bob"))
	require.NoError(t, err)

	count, err := uc.CountUnread(context.Background(), "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.NotNil(t, created)
}

func TestCreatePublishesAfterPersisting(t *testing.T) {
	publisher := &recordingPublisher{}
	uc, _ := newNotificationFixture(publisher)

	created, err := uc.Create(context.Background(), systemNotice("bob"))
	require.NoError(t, err)
	require.Equal(t, 1, publisher.notificationCount())
	assert.Equal(t, created.ID, publisher.notifications[0].ID)
}

func TestCreateValidatesInput(t *testing.T) {
	uc, _ := newNotificationFixture(nil)

	bad := systemNotice("bob")
	bad.Type = "promo"
	_, err := uc.Create(context.Background(), bad)
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	_, err = uc.Create(context.Background(), systemNotice(""))
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	untitled := systemNotice("bob")
	untitled.Title = ""
	_, err = uc.Create(context.Background(), untitled)
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
}

func TestMarkReadOnlyByRecipient(t *testing.T) {
	uc, _ := newNotificationFixture(nil)
	ctx := context.Background()
	created, err := uc.Create(ctx, systemNotice("bob"))
	require.NoError(t, err)

	_, err = uc.MarkRead(ctx, created.ID, "alice")
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	read, err := uc.MarkRead(ctx, created.ID, "bob")
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	again, err := uc.MarkRead(ctx, created.ID, "bob")
	require.NoError(t, err)
	assert.True(t, again.ReadAt.Equal(*read.ReadAt))

	_, err = uc.MarkRead(ctx, "missing", "bob")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestUnreadFilterAndMarkAllRead(t *testing.T) {
	uc, _ := newNotificationFixture(nil)
	ctx := context.Background()
	first, err := uc.Create(ctx, systemNotice("bob"))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := uc.Create(ctx, systemNotice("bob"))
		require.NoError(t, err)
	}
	_, err = uc.Create(ctx, systemNotice("carol"))
	require.NoError(t, err)

	_, err = uc.MarkRead(ctx, first.ID, "bob")
	require.NoError(t, err)

	unread, total, err := uc.List(ctx, "bob", true, utils.NewPaginationParams(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, unread, 2)

	n, err := uc.MarkAllRead(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := uc.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = uc.CountUnread(ctx, "carol")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestDeleteHidesNotification(t *testing.T) {
	uc, _ := newNotificationFixture(nil)
	ctx := context.Background()
	created, err := uc.Create(ctx, systemNotice("bob"))
	require.NoError(t, err)

	assert.True(t, errors.Is(uc.Delete(ctx, created.ID, "alice"), errors.CodeForbidden))
	require.NoError(t, uc.Delete(ctx, created.ID, "bob"))

	items, total, err := uc.List(ctx, "bob", false, utils.NewPaginationParams(1, 20))
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
	assert.True(t, errors.Is(uc.Delete(ctx, created.ID, "bob"), errors.CodeNotFound))
}
