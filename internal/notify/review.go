package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/voice-intake/internal/handoff"
	"github.com/wolfman30/voice-intake/pkg/logging"
)

// ReviewNotifier is a handoff sink that emails the review desk when a
// finalized intake still has fields below the review threshold. Field
// values are never included in the message, only field names.
type ReviewNotifier struct {
	sender  EmailSender
	to      string
	baseURL string
	logger  *logging.Logger
}

type ReviewNotifierConfig struct {
	To string
	// BaseURL of the review UI; the session ID is appended.
	BaseURL string
}

func NewReviewNotifier(sender EmailSender, cfg ReviewNotifierConfig, logger *logging.Logger) *ReviewNotifier {
	if sender == nil {
		panic("notify: email sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReviewNotifier{
		sender:  sender,
		to:      cfg.To,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

func (n *ReviewNotifier) Deliver(ctx context.Context, rec handoff.Record) error {
	if len(rec.NeedsReview) == 0 || n.to == "" {
		return nil
	}
	msg := n.message(rec)
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: review email for %s: %w", rec.SessionID, err)
	}
	n.logger.Info("review email queued", "session_id", rec.SessionID, "fields", len(rec.NeedsReview))
	return nil
}

func (n *ReviewNotifier) message(rec handoff.Record) EmailMessage {
	fields := make([]string, len(rec.NeedsReview))
	for i, f := range rec.NeedsReview {
		fields[i] = string(f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Intake %s was finalized with %d field(s) that need review:\n\n", rec.SessionID, len(fields))
	for _, f := range fields {
		fmt.Fprintf(&b, "  - %s\n", f)
	}
	if n.baseURL != "" {
		fmt.Fprintf(&b, "\nOpen the intake: %s/%s\n", n.baseURL, rec.SessionID)
	}
	if rec.Refiner != "" {
		fmt.Fprintf(&b, "\nRefined by: %s\n", rec.Refiner)
	}

	return EmailMessage{
		To:      n.to,
		Subject: fmt.Sprintf("Intake %s needs review (%d fields)", rec.SessionID, len(fields)),
		Body:    b.String(),
	}
}
