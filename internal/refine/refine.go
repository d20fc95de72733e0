// Package refine re-reads a finished call transcript to produce a second
// set of field values that is merged over the real-time extraction.
package refine

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/voice-intake/internal/intake"
	"github.com/wolfman30/voice-intake/pkg/logging"
)

// Extractor turns a transcript into refinement field values.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, transcript string) (intake.FieldMap, error)
}

// Fallback runs Primary and, when it fails, Secondary.
type Fallback struct {
	Primary   Extractor
	Secondary Extractor
	Logger    *logging.Logger
}

func NewFallback(primary, secondary Extractor, logger *logging.Logger) *Fallback {
	if logger == nil {
		logger = logging.Default()
	}
	return &Fallback{Primary: primary, Secondary: secondary, Logger: logger}
}

func (f *Fallback) Name() string {
	return f.Primary.Name()
}

func (f *Fallback) Extract(ctx context.Context, transcript string) (intake.FieldMap, error) {
	fields, err := f.Primary.Extract(ctx, transcript)
	if err == nil {
		return fields, nil
	}
	if f.Secondary == nil {
		return nil, err
	}
	f.Logger.Warn("refine: primary extractor failed, falling back",
		"primary", f.Primary.Name(),
		"fallback", f.Secondary.Name(),
		"error", err,
	)
	fields, ferr := f.Secondary.Extract(ctx, transcript)
	if ferr != nil {
		return nil, fmt.Errorf("refine: %s failed (%v), fallback: %w", f.Primary.Name(), err, ferr)
	}
	return fields, nil
}

// callerText drops lines spoken by the agent so that questions such as
// "what is your date of birth" never feed a rule.
func callerText(transcript string) string {
	lines := strings.Split(transcript, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		speaker, rest, ok := strings.Cut(line, ":")
		if ok && agentSpeakers[strings.ToLower(strings.TrimSpace(speaker))] {
			continue
		}
		if ok && callerSpeakers[strings.ToLower(strings.TrimSpace(speaker))] {
			line = rest
		}
		kept = append(kept, strings.TrimSpace(line))
	}
	return strings.Join(kept, "\n")
}

var agentSpeakers = map[string]bool{
	"agent":     true,
	"assistant": true,
	"bot":       true,
	"ai":        true,
}

var callerSpeakers = map[string]bool{
	"caller":  true,
	"user":    true,
	"patient": true,
	"human":   true,
}
