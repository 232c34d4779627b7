package queue

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessage_WritesOneLine(t *testing.T) {
	body, err := json.Marshal(AuthEvent{
		Type:       EventLoggedIn,
		AccountID:  12,
		Identity:   "a@b.com",
		Role:       "user",
		OccurredAt: "2026-03-01T12:00:00Z",
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, HandleMessage(body, &out))
	assert.Equal(t,
		"[2026-03-01T12:00:00Z] logged_in | account_id=12 | identity=\"a@b.com\" | role=user\n",
		out.String())
}

func TestHandleMessage_RejectsBadPayloads(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, HandleMessage([]byte("{"), &out))
	assert.Error(t, HandleMessage([]byte(`{"type":"logged_in"}`), &out))
	assert.Zero(t, out.Len())
}
