package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voice-intake/internal/handoff"
	"github.com/wolfman30/voice-intake/internal/intake"
)

type captureSender struct {
	sent []EmailMessage
	err  error
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func reviewRecord(t *testing.T) handoff.Record {
	t.Helper()
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	s := intake.NewSession("call-9", intake.WithClock(func() time.Time { return now }))
	s.Start()
	_, err := s.Ingest("phone", "555 12")
	require.NoError(t, err)
	_, err = s.Ingest("email", "jane@example.com")
	require.NoError(t, err)
	res, err := s.Finalize(nil)
	require.NoError(t, err)
	return handoff.NewRecord(res, "rules")
}

func TestReviewNotifierSendsFieldNamesOnly(t *testing.T) {
	sender := &captureSender{}
	n := NewReviewNotifier(sender, ReviewNotifierConfig{To: "desk@example.com", BaseURL: "https://review.example/intakes/"}, nil)

	require.NoError(t, n.Deliver(context.Background(), reviewRecord(t)))
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "desk@example.com", msg.To)
	assert.Equal(t, "Intake call-9 needs review (1 fields)", msg.Subject)
	assert.Contains(t, msg.Body, "  - phone\n")
	assert.Contains(t, msg.Body, "https://review.example/intakes/call-9")
	assert.False(t, strings.Contains(msg.Body, "jane@example.com"), "field values must not be emailed")
	assert.False(t, strings.Contains(msg.Body, "55512"), "field values must not be emailed")
}

func TestReviewNotifierSkipsCleanRecords(t *testing.T) {
	sender := &captureSender{}
	n := NewReviewNotifier(sender, ReviewNotifierConfig{To: "desk@example.com"}, nil)
	require.NoError(t, n.Deliver(context.Background(), handoff.Record{SessionID: "clean"}))
	assert.Empty(t, sender.sent)

	n = NewReviewNotifier(sender, ReviewNotifierConfig{}, nil)
	require.NoError(t, n.Deliver(context.Background(), reviewRecord(t)))
	assert.Empty(t, sender.sent, "no recipient configured")
}

func TestReviewNotifierWrapsSendError(t *testing.T) {
	boom := errors.New("smtp down")
	n := NewReviewNotifier(&captureSender{err: boom}, ReviewNotifierConfig{To: "desk@example.com"}, nil)
	err := n.Deliver(context.Background(), reviewRecord(t))
	assert.ErrorIs(t, err, boom)
	assert.Panics(t, func() { NewReviewNotifier(nil, ReviewNotifierConfig{}, nil) })
}
