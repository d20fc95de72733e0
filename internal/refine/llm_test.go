package refine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voice-intake/internal/intake"
	"github.com/wolfman30/voice-intake/internal/llm"
)

type stubLLMClient struct {
	text string
	err  error
	last llm.Request
}

func (s *stubLLMClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.last = req
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Text: s.text}, nil
}

func TestLLMExtractorNormalizesAndBoosts(t *testing.T) {
	client := &stubLLMClient{text: "Here you go:\n```json\n{\"first_name\": \"jane\", \"phone\": \"555 123 4567\", \"zip\": 62704, \"favorite_color\": \"blue\", \"email\": \"\"}\n```"}
	ex := NewLLMExtractor(LLMExtractorConfig{Client: client, Model: "m", Provider: "bedrock", Now: clock})

	fields, err := ex.Extract(context.Background(), "Caller: my name is jane")
	require.NoError(t, err)
	assert.Equal(t, "bedrock", ex.Name())
	assert.Equal(t, "m", client.last.Model)
	require.Len(t, client.last.Messages, 1)

	require.Len(t, fields, 3)
	first := fields[intake.FieldFirstName]
	assert.Equal(t, "Jane", first.String())
	assert.Equal(t, intake.SourceRefinement, first.Source)
	assert.InDelta(t, 0.99, first.Confidence, 1e-9, "0.95 boosted is capped")

	phone := fields[intake.FieldPhone]
	assert.Equal(t, "(555) 123-4567", phone.String())
	assert.InDelta(t, 0.99, phone.Confidence, 1e-9)

	zip := fields[intake.FieldAddressZip]
	assert.Equal(t, "62704", zip.String())
}

func TestLLMExtractorBoostBelowCap(t *testing.T) {
	client := &stubLLMClient{text: `{"insuranceId": "AB1234"}`}
	ex := NewLLMExtractor(LLMExtractorConfig{Client: client, Now: clock})
	fields, err := ex.Extract(context.Background(), "member id AB1234")
	require.NoError(t, err)
	assert.InDelta(t, 0.95, fields[intake.FieldInsuranceID].Confidence, 1e-9)
}

func TestLLMExtractorCollidingKeysAreStable(t *testing.T) {
	client := &stubLLMClient{text: `{"dob":"1990-03-04","date_of_birth":"04/05/1991"}`}
	ex := NewLLMExtractor(LLMExtractorConfig{Client: client, Now: clock})
	for i := 0; i < 100; i++ {
		fields, err := ex.Extract(context.Background(), "born march fourth")
		require.NoError(t, err)
		require.Equal(t, "1990-03-04", fields[intake.FieldDateOfBirth].String(), "run %d", i)
	}
}

func TestLLMExtractorErrors(t *testing.T) {
	boom := errors.New("throttled")
	_, err := NewLLMExtractor(LLMExtractorConfig{Client: &stubLLMClient{err: boom}}).Extract(context.Background(), "hi")
	assert.ErrorIs(t, err, boom)

	_, err = NewLLMExtractor(LLMExtractorConfig{Client: &stubLLMClient{text: "I could not find anything"}}).Extract(context.Background(), "hi")
	assert.Error(t, err)
}

func TestLLMExtractorEmptyTranscriptSkipsCall(t *testing.T) {
	client := &stubLLMClient{err: errors.New("should not be called")}
	fields, err := NewLLMExtractor(LLMExtractorConfig{Client: client}).Extract(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestFallbackUsesSecondaryOnError(t *testing.T) {
	primary := NewLLMExtractor(LLMExtractorConfig{Client: &stubLLMClient{err: errors.New("down")}, Provider: "gemini"})
	fb := NewFallback(primary, NewRuleExtractor(clock), nil)

	fields, err := fb.Extract(context.Background(), "my email address is jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "gemini", fb.Name())
	assert.Equal(t, "jane@example.com", fields[intake.FieldEmail].String())
}

func TestFallbackWithoutSecondaryReturnsError(t *testing.T) {
	primary := NewLLMExtractor(LLMExtractorConfig{Client: &stubLLMClient{err: errors.New("down")}})
	_, err := NewFallback(primary, nil, nil).Extract(context.Background(), "hello")
	assert.Error(t, err)
}
