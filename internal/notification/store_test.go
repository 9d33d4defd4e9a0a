package notification

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/famlink/famlink/internal/database"
	"github.com/famlink/famlink/internal/stats"
	"github.com/famlink/famlink/internal/testutil"
	"github.com/famlink/famlink/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type emittedEvent struct {
	userId  int
	name    string
	payload any
}

type recordingEmitter struct {
	events []emittedEvent
}

func (r *recordingEmitter) EmitNotification(userId int, name string, payload any, message string) {
	r.events = append(r.events, emittedEvent{userId: userId, name: name, payload: payload})
}

func (r *recordingEmitter) countEvents(name string) int {
	var n int
	for _, e := range r.events {
		if e.name == name {
			n++
		}
	}
	return n
}

func TestStoreNotify(t *testing.T) {
	t.Run("persists and mirrors to live feed", func(t *testing.T) {
		db := &database.MockFamLinkRepository{}
		db.On("CreateNotification", database.CreateNotificationParams{
			AccountId: 1,
			Title:     "title",
			Body:      "body",
		}).Return(database.Notification{
			Id:        10,
			AccountId: 1,
			Title:     "title",
			Body:      "body",
			CreatedAt: time.Now().UTC(),
		}, nil).Once()
		db.On("GetUnreadNotificationCount", 1).Return(3, nil).Once()
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.NotificationsCreated).Once()
		defer su.AssertExpectations(t)

		emitter := &recordingEmitter{}
		store := NewStore(db, emitter, su, testutil.TestLogger(t))

		require.NoError(t, store.Notify(1, "title", "body"))

		require.Len(t, emitter.events, 2, "expected notification event plus counter")
		assert.Equal(t, "notification", emitter.events[0].name, "expected notification event first")

		n, ok := emitter.events[0].payload.(types.Notification)
		require.True(t, ok, "expected notification payload")
		assert.Equal(t, 10, n.Id, "expected persisted id")
		assert.False(t, n.IsRead, "expected new notification unread")

		assert.Equal(t, "unread_count", emitter.events[1].name, "expected counter event second")
		assert.Equal(t, unreadCountPayload{Count: 3}, emitter.events[1].payload, "expected refreshed count")
	})

	t.Run("storage failure emits nothing", func(t *testing.T) {
		db := &database.MockFamLinkRepository{}
		db.On("CreateNotification", mock.Anything).Return(database.Notification{}, errors.New("storage offline")).Once()
		defer db.AssertExpectations(t)

		emitter := &recordingEmitter{}
		store := NewStore(db, emitter, &stats.MockStatsUpdater{}, testutil.TestLogger(t))

		assert.Error(t, store.Notify(1, "title", "body"), "expected error propagated")
		assert.Empty(t, emitter.events, "expected no events after failed write")
	})
}

func TestStoreMarkRead(t *testing.T) {
	t.Run("decrements counter", func(t *testing.T) {
		db := &database.MockFamLinkRepository{}
		db.On("MarkNotificationRead", 10, 1).Return(nil).Once()
		db.On("GetUnreadNotificationCount", 1).Return(2, nil).Once()
		defer db.AssertExpectations(t)

		emitter := &recordingEmitter{}
		store := NewStore(db, emitter, &stats.MockStatsUpdater{}, testutil.TestLogger(t))

		require.NoError(t, store.MarkRead(10, 1))
		assert.Equal(t, 1, emitter.countEvents("unread_count"), "expected exactly one counter event")
	})

	t.Run("repeat mark is not found and emits nothing", func(t *testing.T) {
		db := &database.MockFamLinkRepository{}
		db.On("MarkNotificationRead", 10, 1).Return(sql.ErrNoRows).Once()
		defer db.AssertExpectations(t)

		emitter := &recordingEmitter{}
		store := NewStore(db, emitter, &stats.MockStatsUpdater{}, testutil.TestLogger(t))

		assert.ErrorIs(t, store.MarkRead(10, 1), sql.ErrNoRows, "expected no rows error on repeat mark")
		assert.Empty(t, emitter.events, "expected no counter event on failure")
	})
}

func TestStoreMarkAllRead(t *testing.T) {
	db := &database.MockFamLinkRepository{}
	db.On("MarkAllNotificationsRead", 1).Return(nil).Once()
	db.On("GetUnreadNotificationCount", 1).Return(0, nil).Once()
	defer db.AssertExpectations(t)

	emitter := &recordingEmitter{}
	store := NewStore(db, emitter, &stats.MockStatsUpdater{}, testutil.TestLogger(t))

	require.NoError(t, store.MarkAllRead(1))

	require.Equal(t, 1, emitter.countEvents("unread_count"), "expected the counter emitted exactly once for a bulk read")
	assert.Equal(t, unreadCountPayload{Count: 0}, emitter.events[0].payload, "expected zero count after bulk read")
}

func TestStoreUnreadCount(t *testing.T) {
	t.Run("returns count", func(t *testing.T) {
		db := &database.MockFamLinkRepository{}
		db.On("GetUnreadNotificationCount", 1).Return(7, nil).Once()
		defer db.AssertExpectations(t)

		store := NewStore(db, &recordingEmitter{}, &stats.MockStatsUpdater{}, testutil.TestLogger(t))
		assert.Equal(t, 7, store.UnreadCount(1), "expected stored count")
	})

	t.Run("degrades to zero on storage error", func(t *testing.T) {
		db := &database.MockFamLinkRepository{}
		db.On("GetUnreadNotificationCount", 1).Return(0, errors.New("storage offline")).Once()
		defer db.AssertExpectations(t)

		store := NewStore(db, &recordingEmitter{}, &stats.MockStatsUpdater{}, testutil.TestLogger(t))
		assert.Equal(t, 0, store.UnreadCount(1), "expected zero when the ledger is unreachable")
	})
}

func TestStoreList(t *testing.T) {
	db := &database.MockFamLinkRepository{}
	db.On("ListNotifications", 1, 50, 0).Return([]database.Notification{
		{Id: 2, AccountId: 1, Title: "b", IsRead: false},
		{Id: 1, AccountId: 1, Title: "a", IsRead: true},
	}, nil).Once()
	defer db.AssertExpectations(t)

	store := NewStore(db, &recordingEmitter{}, &stats.MockStatsUpdater{}, testutil.TestLogger(t))

	notifications, err := store.List(1, 50, 0)
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	assert.Equal(t, 2, notifications[0].Id, "expected newest first ordering preserved")
}

func TestStoreDelete(t *testing.T) {
	db := &database.MockFamLinkRepository{}
	db.On("DeleteNotification", 2, 1).Return(nil).Once()
	db.On("GetUnreadNotificationCount", 1).Return(1, nil).Once()
	defer db.AssertExpectations(t)

	emitter := &recordingEmitter{}
	store := NewStore(db, emitter, &stats.MockStatsUpdater{}, testutil.TestLogger(t))

	require.NoError(t, store.Delete(2, 1))
	assert.Equal(t, 1, emitter.countEvents("unread_count"), "expected counter refresh after delete")
}
