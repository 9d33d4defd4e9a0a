// Package notification is the durable unread ledger. Every write is
// mirrored to the owner's live notifications feed so connected devices
// stay in sync without polling.
package notification

import (
	"log"

	"github.com/famlink/famlink/internal/database"
	"github.com/famlink/famlink/internal/stats"
	"github.com/famlink/famlink/internal/types"
)

// Emitter pushes events onto a user's private notifications feed.
type Emitter interface {
	EmitNotification(userId int, name string, payload any, message string)
}

type unreadCountPayload struct {
	Count int `json:"count"`
}

type Store struct {
	db      database.FamLinkRepository
	emitter Emitter
	stats   stats.StatsProvider
	log     *log.Logger
}

func NewStore(db database.FamLinkRepository, emitter Emitter, statsProvider stats.StatsProvider, logger *log.Logger) *Store {
	return &Store{
		db:      db,
		emitter: emitter,
		stats:   statsProvider,
		log:     logger,
	}
}

// Notify persists a notification for the user and mirrors it to their
// live feed along with the refreshed unread counter.
func (s *Store) Notify(userId int, title, body string) error {
	n, err := s.db.CreateNotification(database.CreateNotificationParams{
		AccountId: userId,
		Title:     title,
		Body:      body,
	})
	if err != nil {
		return err
	}
	s.stats.Incr(stats.NotificationsCreated)

	s.emitter.EmitNotification(userId, "notification", types.Notification{
		Id:        n.Id,
		UserId:    n.AccountId,
		Title:     n.Title,
		Body:      n.Body,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}, "")
	s.emitCount(userId)

	return nil
}

// MarkRead flips one notification to read. The update is scoped to the
// owner and only ever moves unread to read, so a repeat call is a
// no-op error rather than a double decrement.
func (s *Store) MarkRead(id, userId int) error {
	if err := s.db.MarkNotificationRead(id, userId); err != nil {
		return err
	}

	s.emitCount(userId)
	return nil
}

// MarkAllRead clears the user's entire unread set in one statement and
// emits the counter exactly once.
func (s *Store) MarkAllRead(userId int) error {
	if err := s.db.MarkAllNotificationsRead(userId); err != nil {
		return err
	}

	s.emitCount(userId)
	return nil
}

func (s *Store) List(userId, limit, offset int) ([]types.Notification, error) {
	rows, err := s.db.ListNotifications(userId, limit, offset)
	if err != nil {
		return nil, err
	}

	notifications := make([]types.Notification, 0, len(rows))
	for _, n := range rows {
		notifications = append(notifications, types.Notification{
			Id:        n.Id,
			UserId:    n.AccountId,
			Title:     n.Title,
			Body:      n.Body,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}

	return notifications, nil
}

// UnreadCount degrades to zero when the ledger is unreachable. A badge
// that briefly reads zero beats an errored feed.
func (s *Store) UnreadCount(userId int) int {
	count, err := s.db.GetUnreadNotificationCount(userId)
	if err != nil {
		s.log.Println("GetUnreadNotificationCount:", err)
		return 0
	}
	return count
}

func (s *Store) Delete(id, userId int) error {
	if err := s.db.DeleteNotification(id, userId); err != nil {
		return err
	}

	s.emitCount(userId)
	return nil
}

func (s *Store) DeleteAll(userId int) error {
	if err := s.db.DeleteAllNotifications(userId); err != nil {
		return err
	}

	s.emitCount(userId)
	return nil
}

func (s *Store) emitCount(userId int) {
	s.emitter.EmitNotification(userId, "unread_count", unreadCountPayload{Count: s.UnreadCount(userId)}, "")
}
