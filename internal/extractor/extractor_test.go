package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"spec-extractor/internal/models"
)

type fakeLLM struct {
	response string
	err      error

	calls    int
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.messages = messages
	f.options = llms.CallOptions{Temperature: 1}
	for _, opt := range options {
		opt(&f.options)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.response}}}, nil
}

func humanPrompt(t *testing.T, messages []llms.MessageContent) string {
	t.Helper()
	require.Len(t, messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, messages[1].Role)
	require.Len(t, messages[1].Parts, 1)
	part, ok := messages[1].Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

var brakeChunk = models.Chunk{
	Text:     "Brake caliper bolt torque: 35 Nm. Wheel nut torque: 110 Nm.",
	Metadata: models.ChunkMetadata{Source: "service.pdf", PageNumber: 12},
}

func TestExtractBrakeCaliperTorque(t *testing.T) {
	llm := &fakeLLM{response: "```json\n" +
		`[{"component":"brake caliper","spec_type":"torque","value":"35","unit":"Nm","conditions":""}]` +
		"\n```"}

	records, err := New(llm).Extract(context.Background(), "Torque for brake caliper bolts", []models.Chunk{brakeChunk})
	require.NoError(t, err)
	assert.Equal(t, []models.SpecRecord{
		{Component: "brake caliper", SpecType: "torque", Value: "35", Unit: "Nm", Conditions: ""},
	}, records)

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, 0.0, llm.options.Temperature)

	prompt := humanPrompt(t, llm.messages)
	assert.Contains(t, prompt, "Torque for brake caliper bolts")
	assert.Contains(t, prompt, brakeChunk.Text)
	assert.Contains(t, prompt, "If not found return []")
}

func TestExtractNotFound(t *testing.T) {
	llm := &fakeLLM{response: "[]"}
	chunks := []models.Chunk{{Text: "Check tire pressure monthly."}}

	records, err := New(llm).Extract(context.Background(), "oil capacity", chunks)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestExtractJoinsChunksInOrder(t *testing.T) {
	llm := &fakeLLM{response: "[]"}
	chunks := []models.Chunk{{Text: "first chunk"}, {Text: "second chunk"}, {Text: "third chunk"}}

	_, err := New(llm).Extract(context.Background(), "q", chunks)
	require.NoError(t, err)

	prompt := humanPrompt(t, llm.messages)
	assert.Contains(t, prompt, "first chunk\n---\nsecond chunk\n---\nthird chunk")
}

func TestExtractMalformedResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "prose", response: "I could not find any specifications."},
		{name: "truncated json", response: `[{"component":"brake caliper","value":"35"`},
		{name: "empty", response: ""},
		{name: "empty fence", response: "```json\n```"},
		{name: "nested object value", response: `[{"component":"brake","value":{"min":30}}]`},
		{name: "empty object", response: "```json\n{}\n```"},
		{name: "blank records", response: `[{}, {"unit":"Nm"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := New(&fakeLLM{response: tt.response}).Extract(context.Background(), "q", []models.Chunk{brakeChunk})
			require.NoError(t, err)
			assert.NotNil(t, records)
			assert.Empty(t, records)
		})
	}
}

func TestExtractModelError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("401 unauthorized")}

	records, err := New(llm).Extract(context.Background(), "q", []models.Chunk{brakeChunk})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.err)
	assert.Nil(t, records)
}

func TestExtractNoChoices(t *testing.T) {
	records, err := New(emptyLLM{}).Extract(context.Background(), "q", []models.Chunk{brakeChunk})
	require.NoError(t, err)
	assert.Empty(t, records)
}

type emptyLLM struct{}

func (emptyLLM) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func TestBuildMessages(t *testing.T) {
	messages := BuildMessages("Engine oil capacity", "Oil: 4.2 L")

	prompt := humanPrompt(t, messages)
	assert.True(t, strings.Index(prompt, "Engine oil capacity") < strings.Index(prompt, "Oil: 4.2 L"))
	system, ok := messages[0].Parts[0].(llms.TextContent)
	require.True(t, ok)
	assert.Equal(t, models.ExtractionSystemPrompt, system.Text)
}
