package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/drug-deposit/internal/common"
)

type fakeGenerator struct {
	responses []string
	errs      []error
	prompts   []string
	schemas   []map[string]any
	calls     int
}

func (f *fakeGenerator) Generate(_ context.Context, _, prompt string, schema map[string]any) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.schemas = append(f.schemas, schema)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("unexpected call")
}

func newTestExtractor(gen textGenerator) *Extractor {
	return &Extractor{
		generator: gen,
		retry: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
		},
	}
}

func TestExtractor_Extract(t *testing.T) {
	gen := &fakeGenerator{responses: []string{
		`{"records": [{"name": "Paracetamol", "dose": "500", "movement_type": "entry", "pieces_moved": "50"}]}`,
	}}
	ex := newTestExtractor(gen)

	records, err := ex.Extract(context.Background(), "entrada de cinquenta paracetamol 500")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Paracetamol", records[0].Name)
	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.prompts[0], "cinquenta paracetamol")
}

func TestExtractor_EmptyText(t *testing.T) {
	gen := &fakeGenerator{}
	ex := newTestExtractor(gen)

	_, err := ex.Extract(context.Background(), "  \n")
	require.ErrorIs(t, err, common.ErrNoRows)
	assert.Zero(t, gen.calls)
}

func TestExtractor_RetriesTransientFailures(t *testing.T) {
	gen := &fakeGenerator{
		errs:      []error{errors.New("connection reset"), nil, nil},
		responses: []string{"", "not json at all", `[{"name": "Ibuprofen"}]`},
	}
	ex := newTestExtractor(gen)

	records, err := ex.Extract(context.Background(), "ibuprofeno")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 3, gen.calls)
}

func TestExtractor_PermanentFailureStops(t *testing.T) {
	gen := &fakeGenerator{errs: []error{
		&common.RetryableError{Err: errors.New("bad request"), Retryable: false},
	}}
	ex := newTestExtractor(gen)

	_, err := ex.Extract(context.Background(), "texto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad request")
	assert.Equal(t, 1, gen.calls)
}

func TestExtractor_GivesUpAfterMaxAttempts(t *testing.T) {
	boom := errors.New("timeout")
	gen := &fakeGenerator{errs: []error{boom, boom, boom}}
	ex := newTestExtractor(gen)

	_, err := ex.Extract(context.Background(), "texto")
	require.ErrorIs(t, err, common.ErrMaxRetries)
	assert.Equal(t, 3, gen.calls)
}

func TestGenerateSchema(t *testing.T) {
	schema, err := generateSchema()
	require.NoError(t, err)

	assert.NotContains(t, schema, "$schema")
	assert.Equal(t, false, schema["additionalProperties"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	records, ok := props["records"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "array", records["type"])

	items, ok := records["items"].(map[string]any)
	require.True(t, ok)
	itemProps, ok := items["properties"].(map[string]any)
	require.True(t, ok)
	for _, field := range []string{"name", "dose", "lote", "movement_type", "pieces_moved", "date_movement"} {
		assert.Contains(t, itemProps, field)
	}
	assert.NotContains(t, itemProps, "Line")
	assert.Len(t, items["required"], len(itemProps))
}

func TestNewExtractor_RequiresCredentials(t *testing.T) {
	_, err := NewExtractor(Config{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestNewExtractor_LocalServerSkipsSchema(t *testing.T) {
	ex, err := NewExtractor(Config{BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)
	assert.Nil(t, ex.schema)

	ex, err = NewExtractor(Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.NotNil(t, ex.schema)
}
