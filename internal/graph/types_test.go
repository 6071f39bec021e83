package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	received := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	gm := &graphMessage{
		ID:      "m1",
		Subject: "Weekly sync",
		From: &graphRecipient{EmailAddress: graphEmailAddress{
			Name: "Alice", Address: "alice@example.com",
		}},
		ToRecipients: []graphRecipient{
			{EmailAddress: graphEmailAddress{Address: "bob@example.com"}},
		},
		ReceivedDateTime: received,
		BodyPreview:      "  agenda attached  ",
		Body:             &graphBody{ContentType: "text", Content: "agenda attached\n"},
		IsRead:           true,
		HasAttachments:   true,
	}

	m := normalize(gm)
	assert.Equal(t, "Weekly sync", m.Subject)
	assert.Equal(t, "Alice", m.From.Name)
	assert.Equal(t, "alice@example.com", m.From.Address)
	assert.Equal(t, "bob@example.com", m.To[0].Address)
	assert.Equal(t, received, m.Received)
	assert.Equal(t, "agenda attached", m.Preview)
	assert.Equal(t, "agenda attached", m.Body)
	assert.True(t, m.IsRead)
	assert.True(t, m.HasAttachments)
}

func TestNormalizeDefaults(t *testing.T) {
	m := normalize(&graphMessage{ID: "m1"})
	assert.Equal(t, "(no subject)", m.Subject)
	assert.Empty(t, m.From.Address)
	assert.Nil(t, m.To)
}

func TestNormalizeSenderFallback(t *testing.T) {
	m := normalize(&graphMessage{
		ID: "m1",
		Sender: &graphRecipient{EmailAddress: graphEmailAddress{
			Address: "shared-mailbox@example.com",
		}},
	})
	assert.Equal(t, "shared-mailbox@example.com", m.From.Address)
}

func TestParticipantString(t *testing.T) {
	assert.Equal(t, "Alice <alice@example.com>",
		Participant{Name: "Alice", Address: "alice@example.com"}.String())
	assert.Equal(t, "alice@example.com",
		Participant{Address: "alice@example.com"}.String())
	assert.Equal(t, "alice@example.com",
		Participant{Name: "alice@example.com", Address: "alice@example.com"}.String())
}

func TestMatchesSender(t *testing.T) {
	msg := &Message{From: Participant{Name: "Example Newsletter", Address: "NoReply@news.example.com"}}

	tests := []struct {
		name     string
		patterns []string
		want     bool
	}{
		{"no patterns", nil, false},
		{"address substring", []string{"noreply"}, true},
		{"name substring", []string{"newsletter"}, true},
		{"case insensitive", []string{"NOREPLY"}, true},
		{"no match", []string{"alice"}, false},
		{"empty pattern ignored", []string{"", "  "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesSender(msg, tt.patterns))
		})
	}
}
