package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/Veraticus/drug-deposit/internal/common"
	"github.com/Veraticus/drug-deposit/internal/model"
)

const extractionInstructions = `You extract drug deposit records from dictated Portuguese or English text.
Each record is either a drug being registered or a stock movement.
For every record fill these fields, using an empty string when the text does not mention it:
- name: drug name
- dose: dose amount, e.g. "500"
- units: dose units, e.g. "mg", "ml", "g"
- expiration: expiration date as YYYY-MM-DD or as dictated
- pieces_per_box: number of pieces per box
- type: drug type, e.g. antibiotic, analgesic
- lote: lot number
- movement_type: exactly one of entry, exit, inventory
- pieces_moved: number of pieces moved or counted
- destination_origin: destination for an exit or origin for an entry
- date_movement: date of the movement as YYYY-MM-DD
- signature: person responsible
Numbers must be written as digits. Do not invent values.`

// extractionSchema is the structured output requested from the model.
type extractionSchema struct {
	Records []model.CandidateRecord `json:"records" jsonschema:"description=Every drug or movement mentioned in the text, in order"`
}

// Extractor turns free text into candidate records.
type Extractor struct {
	generator textGenerator
	limiter   *rateLimiter
	schema    map[string]any
	retry     common.RetryOptions
}

// NewExtractor creates an extractor backed by the Responses API.
func NewExtractor(cfg Config) (*Extractor, error) {
	cfg = cfg.withDefaults()
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}

	// Compatible local servers rarely support strict schemas; they get the
	// field list from the instructions instead.
	var schema map[string]any
	if cfg.BaseURL == "" {
		schema, err = generateSchema()
		if err != nil {
			return nil, err
		}
	}

	return &Extractor{
		generator: &responsesGenerator{client: client, model: cfg.Model},
		limiter:   newRateLimiter(cfg.RateLimit),
		schema:    schema,
		retry:     cfg.retryOptions(),
	}, nil
}

// Extract returns the records found in text, numbered from 1.
func (e *Extractor) Extract(ctx context.Context, text string) ([]model.CandidateRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty transcription", common.ErrNoRows)
	}

	prompt := fmt.Sprintf("Extract drug inventory information from this text:\n\n%q\n\nReturn only the JSON object.", text)

	var records []model.CandidateRecord
	err := common.WithRetry(ctx, func() error {
		if err := e.limiter.wait(ctx); err != nil {
			return common.Permanent(err)
		}

		content, err := e.generator.Generate(ctx, extractionInstructions, prompt, e.schema)
		if err != nil {
			return err
		}

		parsed, err := parseExtraction(content)
		if err != nil {
			slog.Debug("Unparseable extraction response", "content", content, "error", err)
			return err
		}
		records = parsed
		return nil
	}, e.retry)
	if err != nil {
		return nil, fmt.Errorf("failed to extract records: %w", err)
	}

	slog.Info("Extracted records", "count", len(records))
	return records, nil
}

func generateSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(extractionSchema{})

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	// The Responses API rejects these meta keys in strict mode.
	delete(schemaMap, "$schema")
	delete(schemaMap, "$id")
	return schemaMap, nil
}

// Extraction is the saved output of one extraction run.
type Extraction struct {
	ExtractedAt   time.Time               `json:"timestamp"`
	Transcription string                  `json:"original_transcription"`
	Records       []model.CandidateRecord `json:"extracted_data"`
}
