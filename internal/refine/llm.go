package refine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/voice-intake/internal/intake"
	"github.com/wolfman30/voice-intake/internal/llm"
	"github.com/wolfman30/voice-intake/pkg/logging"
)

const (
	llmConfidenceBoost = 0.05
	llmConfidenceCap   = 0.99
)

var extractionPrompt = `You read phone call transcripts between an intake agent and a caller booking a lab visit.
Return ONLY a JSON object. Keys must come from this list: ` + fieldList() + `.
Values are strings exactly as the caller said them; omit anything the caller did not state.
Dates stay as spoken; do not guess missing parts.`

func fieldList() string {
	names := make([]string, len(intake.AllFields))
	for i, f := range intake.AllFields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

type LLMExtractorConfig struct {
	Client    llm.Client
	Model     string
	Provider  string
	MaxTokens int32
	Now       func() time.Time
	Logger    *logging.Logger
}

// LLMExtractor asks a language model for the caller's details and runs the
// answer through the same resolver and normalizer as real-time ingest.
type LLMExtractor struct {
	client    llm.Client
	model     string
	provider  string
	maxTokens int32
	now       func() time.Time
	logger    *logging.Logger
}

func NewLLMExtractor(cfg LLMExtractorConfig) *LLMExtractor {
	if cfg.Client == nil {
		panic("refine: llm client cannot be nil")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if cfg.Provider == "" {
		cfg.Provider = "llm"
	}
	return &LLMExtractor{
		client:    cfg.Client,
		model:     cfg.Model,
		provider:  cfg.Provider,
		maxTokens: cfg.MaxTokens,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
}

func (e *LLMExtractor) Name() string {
	return e.provider
}

func (e *LLMExtractor) Extract(ctx context.Context, transcript string) (intake.FieldMap, error) {
	if strings.TrimSpace(transcript) == "" {
		return intake.FieldMap{}, nil
	}
	resp, err := e.client.Complete(ctx, llm.Request{
		Model:       e.model,
		System:      []string{extractionPrompt},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: transcript}},
		MaxTokens:   e.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("refine: %s completion: %w", e.provider, err)
	}

	pairs, err := parseFieldJSON(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("refine: %s response parse: %w", e.provider, err)
	}

	out, unknown := intake.ResolvePairs(pairs, intake.SourceRefinement, e.now())
	for _, key := range unknown {
		e.logger.Debug("refine: model returned unknown key", "provider", e.provider, "raw_key", key)
	}
	for field, v := range out {
		v.Confidence = min(v.Confidence+llmConfidenceBoost, llmConfidenceCap)
		out[field] = v
	}
	return out, nil
}

// parseFieldJSON pulls the first JSON object out of a model reply, tolerating
// code fences and surrounding prose. Non-string scalars are stringified.
func parseFieldJSON(text string) (map[string]string, error) {
	raw := strings.TrimSpace(text)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil, errors.New("no JSON object in response")
		}
		raw = raw[start : end+1]
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(decoded))
	for k, v := range decoded {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		}
	}
	return out, nil
}
