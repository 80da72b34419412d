package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntryLine(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)

	line := NewEntryLine(at, "alice", "  still broken\nafter   restart ")

	assert.Equal(t, "[2026-03-14 09:05] alice: still broken after restart\n", line)
}

func TestParseConversation(t *testing.T) {
	log := "[2026-03-14 09:05] alice: it crashes\n" +
		"\n" +
		"[2026-03-14 10:00] Admin: please send logs\n" +
		"free text without a header\n" +
		"[2026-03-15 08:00] alice: Admin: told me to send logs\n"

	entries := ParseConversation(log)
	require.Len(t, entries, 4)

	assert.Equal(t, "alice", entries[0].Author)
	assert.Equal(t, "it crashes", entries[0].Body)
	assert.False(t, entries[0].FromAdmin())

	assert.True(t, entries[1].FromAdmin())
	assert.Equal(t, "2026-03-14 10:00", entries[1].Timestamp)

	assert.Equal(t, "", entries[2].Author)
	assert.Equal(t, "free text without a header", entries[2].Text())

	// A user quoting "Admin:" is still a user entry.
	assert.False(t, entries[3].FromAdmin())
	assert.Equal(t, "Admin: told me to send logs", entries[3].Body)
}

func TestParseConversationEmpty(t *testing.T) {
	assert.Empty(t, ParseConversation(""))
	assert.Empty(t, ParseConversation("\n\n"))
}

func TestEntryTextRoundTrip(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	line := NewEntryLine(at, AdminAuthor, "done")

	entries := ParseConversation(line)
	require.Len(t, entries, 1)
	assert.Equal(t, line, entries[0].Text()+"\n")
}

func TestLatestAdminReply(t *testing.T) {
	tests := []struct {
		name string
		log  string
		want string
	}{
		{name: "empty log", log: "", want: NoAdminReply},
		{name: "only user entries", log: "[2026-01-01 10:00] bob: hello\n", want: NoAdminReply},
		{
			name: "last admin wins",
			log: "[2026-01-01 10:00] Admin: first\n" +
				"[2026-01-01 11:00] bob: ok\n" +
				"[2026-01-01 12:00] Admin:  second \n",
			want: "second",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LatestAdminReply(tt.log))
		})
	}
}

func TestTicketStatusPredicates(t *testing.T) {
	assert.True(t, TicketStatusOpen.Active())
	assert.True(t, TicketStatusReopened.Active())
	assert.False(t, TicketStatusResolved.Active())
	assert.True(t, TicketStatusResolved.Closed())
	assert.True(t, TicketStatusDiscarded.Closed())
	assert.False(t, TicketStatus("Pending").Valid())

	stats := TicketStats{Open: 2, Reopened: 1, Resolved: 3, Discarded: 4}
	assert.Equal(t, 7, stats.Closed())
	assert.Equal(t, 10, stats.Total())
}
