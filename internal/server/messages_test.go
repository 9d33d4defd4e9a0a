package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMessageUnmarshal(t *testing.T) {
	raw := `{
		"id": 3,
		"command": {
			"name": "send_message",
			"family_id": 7,
			"payload": {"message": "dinner at 6"}
		}
	}`

	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	assert.Equal(t, 3, msg.Id, "expected message id")
	require.NotNil(t, msg.Command, "expected command block")
	assert.Equal(t, "send_message", msg.Command.Name, "expected command name")
	assert.Equal(t, 7, msg.Command.FamilyId, "expected family id")
	assert.JSONEq(t, `{"message": "dinner at 6"}`, string(msg.Command.Payload), "expected raw payload preserved")
}

func TestServerMessageMarshal(t *testing.T) {
	t.Run("skip user id never reaches the wire", func(t *testing.T) {
		msg := &ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Event:       NewEvent("new_message", 1, 2, nil, ""),
			SkipUserId:  2,
		}

		raw, err := json.Marshal(msg)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "SkipUserId", "expected routing metadata excluded from serialization")
	})

	t.Run("response shape", func(t *testing.T) {
		raw, err := json.Marshal(NoErrOK(5, map[string]any{"id": 1}))
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.EqualValues(t, 5, decoded["id"], "expected request id echoed")

		resp, ok := decoded["response"].(map[string]any)
		require.True(t, ok, "expected response block")
		assert.EqualValues(t, http.StatusOK, resp["response_code"], "expected OK response code")
	})
}

func TestNewEvent(t *testing.T) {
	e1 := NewEvent("new_message", 1, 2, nil, "")
	e2 := NewEvent("new_message", 1, 2, nil, "")

	assert.NotEmpty(t, e1.Id, "expected generated event id")
	assert.NotEqual(t, e1.Id, e2.Id, "expected unique event ids")
	assert.Equal(t, "new_message", e1.Name, "expected event name")
	assert.Equal(t, 1, e1.FamilyId, "expected family id")
	assert.Equal(t, 2, e1.UserId, "expected user id")
}

func TestErrResponses(t *testing.T) {
	tcases := []struct {
		name string
		msg  *ServerMessage
		code int
	}{
		{"unauthorized", ErrUnauthorized(1), http.StatusUnauthorized},
		{"permission denied", ErrPermissionDenied(1), http.StatusForbidden},
		{"room not found", ErrRoomNotFound(1), http.StatusNotFound},
		{"not found", ErrNotFound(1), http.StatusNotFound},
		{"unknown command", ErrUnknownCommand(1), http.StatusBadRequest},
		{"internal error", ErrInternalError(1), http.StatusInternalServerError},
		{"service unavailable", ErrServiceUnavailable(1), http.StatusServiceUnavailable},
		{"invalid message", ErrInvalidMessage(1), http.StatusBadRequest},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, tc.msg.Response.ResponseCode, "expected response code to match")
			assert.NotEmpty(t, tc.msg.Response.Error, "expected error string")
		})
	}
}
