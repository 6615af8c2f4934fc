package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-sync-service/internal/model"
)

func TestEncode_WireFormat(t *testing.T) {
	ev := sampleEvent(t, model.ActionCreate, "note-1")

	data, err := Encode(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"action": "create",
		"note": {
			"id": "note-1",
			"title": "Sample Note",
			"content": "This is a test note",
			"created_at": "2024-01-01T10:00:00Z",
			"updated_at": "2024-01-01T10:00:00Z"
		},
		"emitted_at": "2024-01-01T10:00:00Z"
	}`, string(data))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: `{"action":"update","note":{"id":"n1","title":"t","content":"c"}}`},
		{name: "unknown action", input: `{"action":"upsert","note":{"id":"n1"}}`, wantErr: true},
		{name: "missing id", input: `{"action":"delete","note":{}}`, wantErr: true},
		{name: "garbage", input: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "n1", ev.NoteID())
		})
	}
}
