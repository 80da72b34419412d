package events

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-portal/internal/domain"
)

func TestDispatcherFanOut(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())
	var got []string
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "second")
		return nil
	})
	d.Subscribe(EventTicketCommentAdded, func(_ context.Context, e Event) error {
		got = append(got, "unrelated")
		return nil
	})

	event := NewEvent(EventTicketCreated, 7, Actor{Username: "alice", Role: domain.RoleUser}, time.Now(), TicketCreatedPayload{Subject: "x"})
	require.NoError(t, d.Publish(context.Background(), event))
	assert.Equal(t, []string{"first", "second"}, got)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, time.UTC, event.Timestamp.Location())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))
	long := strings.Repeat("é", previewLimit+5)
	p := Preview(long)
	assert.True(t, strings.HasSuffix(p, "..."))
	assert.Len(t, []rune(p), previewLimit+3)
}
