package push

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/famlink/famlink/internal/database"
	"github.com/famlink/famlink/internal/stats"
	"github.com/famlink/famlink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func deviceTokens(tokens ...string) []database.DeviceToken {
	out := make([]database.DeviceToken, len(tokens))
	for i, t := range tokens {
		out[i] = database.DeviceToken{Id: i + 1, AccountId: 1, Token: t}
	}
	return out
}

func TestSendToUser(t *testing.T) {
	t.Run("delivers to every device", func(t *testing.T) {
		db := &database.MockFamLinkRepository{}
		db.On("GetDeviceTokensByAccountId", 1).Return(deviceTokens("tok-a", "tok-b"), nil).Once()
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		su.On("IncrBy", stats.PushSent, 2).Once()
		su.On("IncrBy", stats.PushFailed, 0).Once()
		defer su.AssertExpectations(t)

		provider := &MockProvider{}
		provider.On("Send", mock.Anything, "tok-a", "title", "body", mock.Anything).Return(nil).Once()
		provider.On("Send", mock.Anything, "tok-b", "title", "body", mock.Anything).Return(nil).Once()
		defer provider.AssertExpectations(t)

		d := NewDispatcher(provider, db, su, testutil.TestLogger(t))

		result := d.SendToUser(context.Background(), 1, "title", "body", map[string]string{"type": "new_message"})
		assert.Equal(t, 2, result.SuccessCount, "expected both sends to succeed")
		assert.Zero(t, result.FailureCount, "expected no failures")
		assert.Empty(t, result.Errors, "expected no errors")
	})

	t.Run("counts failures and prunes dead tokens", func(t *testing.T) {
		db := &database.MockFamLinkRepository{}
		db.On("GetDeviceTokensByAccountId", 1).Return(deviceTokens("tok-a", "tok-dead", "tok-c"), nil).Once()

		pruned := make(chan string, 1)
		db.On("DeleteDeviceToken", "tok-dead").Run(func(args mock.Arguments) {
			pruned <- args.String(0)
		}).Return(nil).Once()

		su := &stats.MockStatsUpdater{}
		su.On("IncrBy", stats.PushSent, 2).Once()
		su.On("IncrBy", stats.PushFailed, 1).Once()
		defer su.AssertExpectations(t)

		provider := &MockProvider{}
		provider.On("Send", mock.Anything, "tok-a", "title", "body", mock.Anything).Return(nil).Once()
		provider.On("Send", mock.Anything, "tok-c", "title", "body", mock.Anything).Return(nil).Once()
		provider.On("Send", mock.Anything, "tok-dead", "title", "body", mock.Anything).
			Return(fmt.Errorf("%w: unregistered", ErrInvalidToken)).Once()
		defer provider.AssertExpectations(t)

		d := NewDispatcher(provider, db, su, testutil.TestLogger(t))

		result := d.SendToUser(context.Background(), 1, "title", "body", nil)
		assert.Equal(t, 2, result.SuccessCount, "expected two successes")
		assert.Equal(t, 1, result.FailureCount, "expected one failure")
		require.Len(t, result.Errors, 1, "expected the failure recorded")
		assert.ErrorIs(t, result.Errors[0], ErrInvalidToken, "expected invalid token classification")

		select {
		case token := <-pruned:
			assert.Equal(t, "tok-dead", token, "expected the dead token pruned")
		case <-time.After(time.Second):
			t.Error("timeout: dead token was not pruned")
		}
		db.AssertExpectations(t)
	})

	t.Run("transient failure is not pruned", func(t *testing.T) {
		db := &database.MockFamLinkRepository{}
		db.On("GetDeviceTokensByAccountId", 1).Return(deviceTokens("tok-a"), nil).Once()
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		su.On("IncrBy", stats.PushSent, 0).Once()
		su.On("IncrBy", stats.PushFailed, 1).Once()
		defer su.AssertExpectations(t)

		provider := &MockProvider{}
		provider.On("Send", mock.Anything, "tok-a", "title", "body", mock.Anything).
			Return(errors.New("deadline exceeded")).Once()
		defer provider.AssertExpectations(t)

		d := NewDispatcher(provider, db, su, testutil.TestLogger(t))

		result := d.SendToUser(context.Background(), 1, "title", "body", nil)
		assert.Equal(t, 1, result.FailureCount, "expected failure counted")
		db.AssertNotCalled(t, "DeleteDeviceToken", mock.Anything)
	})

	t.Run("no registered devices", func(t *testing.T) {
		db := &database.MockFamLinkRepository{}
		db.On("GetDeviceTokensByAccountId", 1).Return([]database.DeviceToken{}, nil).Once()
		defer db.AssertExpectations(t)

		provider := &MockProvider{}
		defer provider.AssertExpectations(t)

		d := NewDispatcher(provider, db, &stats.MockStatsUpdater{}, testutil.TestLogger(t))

		result := d.SendToUser(context.Background(), 1, "title", "body", nil)
		assert.Zero(t, result.SuccessCount, "expected no sends")
		assert.Empty(t, result.Errors, "expected no errors")
	})

	t.Run("token lookup failure", func(t *testing.T) {
		db := &database.MockFamLinkRepository{}
		db.On("GetDeviceTokensByAccountId", 1).Return([]database.DeviceToken(nil), errors.New("storage offline")).Once()
		defer db.AssertExpectations(t)

		d := NewDispatcher(&MockProvider{}, db, &stats.MockStatsUpdater{}, testutil.TestLogger(t))

		result := d.SendToUser(context.Background(), 1, "title", "body", nil)
		require.Len(t, result.Errors, 1, "expected the lookup error surfaced")
	})
}

func Test_truncateToken(t *testing.T) {
	assert.Equal(t, "short", truncateToken("short"))
	assert.Equal(t, "abcdefgh...", truncateToken("abcdefghijklmnop"))
}
