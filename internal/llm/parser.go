package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/drug-deposit/internal/model"
)

// cleanMarkdownWrapper removes a ```json fence around model output.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if start := strings.Index(content, "```"); start >= 0 {
		body := content[start+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		} else {
			body = strings.TrimPrefix(body, "json")
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		content = body
	}

	return strings.TrimSpace(content)
}

// flexString accepts a JSON string, number, or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		if i, err := n.Int64(); err == nil {
			*f = flexString(strconv.FormatInt(i, 10))
		} else {
			*f = flexString(n.String())
		}
	}
	return nil
}

type extractedRecord struct {
	Name              flexString `json:"name"`
	Dose              flexString `json:"dose"`
	Units             flexString `json:"units"`
	Expiration        flexString `json:"expiration"`
	PiecesPerBox      flexString `json:"pieces_per_box"`
	Type              flexString `json:"type"`
	Lote              flexString `json:"lote"`
	MovementType      flexString `json:"movement_type"`
	PiecesMoved       flexString `json:"pieces_moved"`
	DestinationOrigin flexString `json:"destination_origin"`
	DateMovement      flexString `json:"date_movement"`
	Signature         flexString `json:"signature"`
}

func (r extractedRecord) candidate() model.CandidateRecord {
	return model.CandidateRecord{
		Name:              string(r.Name),
		Dose:              string(r.Dose),
		Units:             string(r.Units),
		Expiration:        string(r.Expiration),
		PiecesPerBox:      string(r.PiecesPerBox),
		Type:              string(r.Type),
		Lote:              string(r.Lote),
		MovementType:      string(r.MovementType),
		PiecesMoved:       string(r.PiecesMoved),
		DestinationOrigin: string(r.DestinationOrigin),
		DateMovement:      string(r.DateMovement),
		Signature:         string(r.Signature),
	}.Normalized()
}

// singleExtraction is the one-object shape small local models tend to produce:
// a drug definition or a single movement.
type singleExtraction struct {
	Drug *struct {
		Name         flexString `json:"name"`
		Dose         flexString `json:"dose"`
		Units        flexString `json:"units"`
		Expiration   flexString `json:"expiration"`
		PiecesPerBox flexString `json:"pieces_per_box"`
		Type         flexString `json:"type"`
		Lote         flexString `json:"lote"`
	} `json:"drug"`
	Movement *struct {
		DrugName          flexString `json:"drug_name"`
		DrugDose          flexString `json:"drug_dose"`
		DrugLote          flexString `json:"drug_lote"`
		MovementType      flexString `json:"movement_type"`
		PiecesMoved       flexString `json:"pieces_moved"`
		DestinationOrigin flexString `json:"destination_origin"`
		DateMovement      flexString `json:"date_movement"`
		Signature         flexString `json:"signature"`
	} `json:"movement"`
	Kind string `json:"type"`
}

func (s singleExtraction) candidate() (model.CandidateRecord, bool) {
	var c model.CandidateRecord
	if s.Drug != nil {
		c.Name = string(s.Drug.Name)
		c.Dose = string(s.Drug.Dose)
		c.Units = string(s.Drug.Units)
		c.Expiration = string(s.Drug.Expiration)
		c.PiecesPerBox = string(s.Drug.PiecesPerBox)
		c.Type = string(s.Drug.Type)
		c.Lote = string(s.Drug.Lote)
	}
	if s.Movement != nil {
		if c.Name == "" {
			c.Name = string(s.Movement.DrugName)
		}
		if c.Dose == "" {
			c.Dose = string(s.Movement.DrugDose)
		}
		if c.Lote == "" {
			c.Lote = string(s.Movement.DrugLote)
		}
		c.MovementType = string(s.Movement.MovementType)
		c.PiecesMoved = string(s.Movement.PiecesMoved)
		c.DestinationOrigin = string(s.Movement.DestinationOrigin)
		c.DateMovement = string(s.Movement.DateMovement)
		c.Signature = string(s.Movement.Signature)
	}
	c = c.Normalized()
	return c, !c.IsBlank()
}

// parseExtraction decodes model output into candidate records. It accepts the
// {"records": [...]} shape, a bare array of records, and the single
// drug/movement object shape.
func parseExtraction(content string) ([]model.CandidateRecord, error) {
	content = cleanMarkdownWrapper(content)
	if content == "" {
		return nil, fmt.Errorf("empty extraction response")
	}

	var raw []extractedRecord
	switch content[0] {
	case '[':
		if err := json.Unmarshal([]byte(content), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response: %w", err)
		}
	case '{':
		var wrapped struct {
			Records *[]extractedRecord `json:"records"`
		}
		if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response: %w", err)
		}
		if wrapped.Records != nil {
			raw = *wrapped.Records
			break
		}
		var single singleExtraction
		if err := json.Unmarshal([]byte(content), &single); err != nil {
			return nil, fmt.Errorf("failed to parse JSON response: %w", err)
		}
		if c, ok := single.candidate(); ok {
			c.Line = 1
			return []model.CandidateRecord{c}, nil
		}
		return nil, fmt.Errorf("no drug or movement found in response")
	default:
		return nil, fmt.Errorf("response is not JSON: %.40q", content)
	}

	records := make([]model.CandidateRecord, 0, len(raw))
	for _, r := range raw {
		c := r.candidate()
		if c.IsBlank() {
			continue
		}
		c.Line = len(records) + 1
		records = append(records, c)
	}
	return records, nil
}
