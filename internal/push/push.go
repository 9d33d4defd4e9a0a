// Package push delivers best-effort notifications to registered
// devices. Delivery is never load-bearing: callers fire and forget,
// and a failed send only costs the user a banner.
package push

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/famlink/famlink/internal/database"
	"github.com/famlink/famlink/internal/stats"
)

// ErrInvalidToken marks a token the provider reports as dead. The
// dispatcher prunes these from the registry so they are not retried
// forever.
var ErrInvalidToken = errors.New("push: invalid device token")

// Provider sends one message to one device token.
type Provider interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// NopProvider discards every send. Used when no push credentials are
// configured.
type NopProvider struct{}

func (NopProvider) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	return nil
}

// Result summarizes one multi-device send.
type Result struct {
	SuccessCount int
	FailureCount int
	Errors       []error
}

type Dispatcher struct {
	provider Provider
	db       database.FamLinkRepository
	stats    stats.StatsProvider
	log      *log.Logger
}

func NewDispatcher(provider Provider, db database.FamLinkRepository, statsProvider stats.StatsProvider, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		db:       db,
		stats:    statsProvider,
		log:      logger,
	}
}

// SendToUser fans a message out to every device the user has
// registered. Tokens are sent in parallel and failures are counted,
// not propagated. Tokens the provider rejects as dead are pruned in
// the background.
func (d *Dispatcher) SendToUser(ctx context.Context, userId int, title, body string, data map[string]string) Result {
	tokens, err := d.db.GetDeviceTokensByAccountId(userId)
	if err != nil {
		d.log.Println("GetDeviceTokensByAccountId:", err)
		return Result{Errors: []error{err}}
	}

	if len(tokens) == 0 {
		return Result{}
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result Result
		dead   []string
	)

	for _, t := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()

			err := d.provider.Send(ctx, token, title, body, data)

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				result.SuccessCount++
				return
			}

			result.FailureCount++
			result.Errors = append(result.Errors, err)
			if errors.Is(err, ErrInvalidToken) {
				dead = append(dead, token)
			}
		}(t.Token)
	}

	wg.Wait()

	d.stats.IncrBy(stats.PushSent, result.SuccessCount)
	d.stats.IncrBy(stats.PushFailed, result.FailureCount)

	if len(dead) > 0 {
		go d.pruneTokens(dead)
	}

	return result
}

func (d *Dispatcher) pruneTokens(tokens []string) {
	for _, token := range tokens {
		if err := d.db.DeleteDeviceToken(token); err != nil {
			d.log.Println("DeleteDeviceToken:", err)
			continue
		}
		d.log.Printf("pruned dead device token %q", truncateToken(token))
	}
}

// truncateToken keeps logs from leaking full device tokens.
func truncateToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
