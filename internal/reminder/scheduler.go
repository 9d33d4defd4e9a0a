// Package reminder scans the inventory for items about to expire and
// notifies the people who can do something about it.
package reminder

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/famlink/famlink/internal/database"
	"github.com/famlink/famlink/internal/push"
	"github.com/famlink/famlink/internal/stats"
)

type Notifier interface {
	Notify(userId int, title, body string) error
}

type PushSender interface {
	SendToUser(ctx context.Context, userId int, title, body string, data map[string]string) push.Result
}

// Presence answers whether a user currently holds a live connection.
type Presence interface {
	HasConnections(userId int) bool
}

// Scheduler runs the expiry scan on a fixed interval. Every scan is
// idempotent for the day: an item is marked as notified before the
// next scan can see it again, so a restart or an overlapping deploy
// never double-reminds.
type Scheduler struct {
	db            database.FamLinkRepository
	notifier      Notifier
	pusher        PushSender
	presence      Presence
	stats         stats.StatsProvider
	log           *log.Logger
	interval      time.Duration
	thresholdDays int
	stopChan      chan struct{}
	doneChan      chan struct{}
}

func NewScheduler(db database.FamLinkRepository, notifier Notifier, pusher PushSender, presence Presence, statsProvider stats.StatsProvider, logger *log.Logger, interval time.Duration, thresholdDays int) *Scheduler {
	return &Scheduler{
		db:            db,
		notifier:      notifier,
		pusher:        pusher,
		presence:      presence,
		stats:         statsProvider,
		log:           logger,
		interval:      interval,
		thresholdDays: thresholdDays,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start runs the scan loop until Stop is called. The first scan fires
// immediately so a restarted server does not wait a full interval.
func (s *Scheduler) Start() {
	go func() {
		defer close(s.doneChan)

		s.Scan(time.Now())

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				s.Scan(now)
			case <-s.stopChan:
				return
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	close(s.stopChan)
	<-s.doneChan
}

// Scan finds inventory items expiring within the threshold that have
// not yet been flagged today and sends a reminder per recipient.
func (s *Scheduler) Scan(now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	deadline := day.AddDate(0, 0, s.thresholdDays)

	items, err := s.db.ListExpiringItems(deadline, day)
	if err != nil {
		s.log.Println("ListExpiringItems:", err)
		return
	}

	for _, item := range items {
		// the query already filters on these, but a bad row must not
		// turn into a phantom reminder
		if item.Quantity <= 0 {
			continue
		}
		if item.LastNotifiedOn.Valid && !item.LastNotifiedOn.Time.UTC().Truncate(24*time.Hour).Before(day) {
			continue
		}

		s.remind(item, day)
	}
}

func (s *Scheduler) remind(item database.InventoryItem, day time.Time) {
	recipients, err := s.recipients(item)
	if err != nil {
		s.log.Printf("resolving recipients for item %d: %v", item.Id, err)
		return
	}

	title := "Expiring soon"
	body := expiryBody(item, day)
	data := map[string]string{
		"type":    "expiry_reminder",
		"item_id": strconv.Itoa(item.Id),
	}

	var delivered int
	for _, userId := range recipients {
		if err := s.notifier.Notify(userId, title, body); err != nil {
			s.log.Printf("reminder ledger write for user %d: %v", userId, err)
		} else {
			delivered++
		}

		if !s.presence.HasConnections(userId) {
			s.pusher.SendToUser(context.Background(), userId, title, body, data)
		}
	}

	// nothing reached the ledger, so leave the watermark unset and let
	// the next scan retry the item
	if delivered == 0 {
		return
	}

	// flag before the next tick so the same day never reminds twice
	if err := s.db.MarkItemNotified(item.Id, day); err != nil {
		s.log.Printf("MarkItemNotified item %d: %v", item.Id, err)
		return
	}

	s.stats.Incr(stats.RemindersSent)
}

// recipients resolves the notification scope of an item: every family
// member for a shared inventory, just the owner for a personal one.
func (s *Scheduler) recipients(item database.InventoryItem) ([]int, error) {
	if !item.FamilyId.Valid {
		return []int{item.OwnerId}, nil
	}

	family, err := s.db.GetFamilyWithMembers(int(item.FamilyId.Int64))
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(family.Members))
	for _, m := range family.Members {
		ids = append(ids, m.AccountId)
	}

	return ids, nil
}

func expiryBody(item database.InventoryItem, day time.Time) string {
	expires := item.ExpiresAt.Time.UTC().Truncate(24 * time.Hour)
	daysLeft := int(expires.Sub(day).Hours() / 24)

	switch {
	case daysLeft < 0:
		return fmt.Sprintf("%s has expired", item.Name)
	case daysLeft == 0:
		return fmt.Sprintf("%s expires today", item.Name)
	case daysLeft == 1:
		return fmt.Sprintf("%s expires tomorrow", item.Name)
	default:
		return fmt.Sprintf("%s expires in %d days", item.Name, daysLeft)
	}
}
