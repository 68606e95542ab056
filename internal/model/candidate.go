package model

import "strings"

// CandidateRecord is an untrusted drug movement produced by upstream extraction.
// Every field is kept as raw text; parsing happens once at the import boundary.
type CandidateRecord struct {
	Name              string `json:"name"`
	Dose              string `json:"dose"`
	Units             string `json:"units"`
	Expiration        string `json:"expiration"`
	PiecesPerBox      string `json:"pieces_per_box"`
	Type              string `json:"type"`
	Lote              string `json:"lote"`
	MovementType      string `json:"movement_type"`
	PiecesMoved       string `json:"pieces_moved"`
	DestinationOrigin string `json:"destination_origin"`
	DateMovement      string `json:"date_movement"`
	Signature         string `json:"signature"`
	Line              int    `json:"-"` // 1-based position in the source batch
}

// Normalized returns a copy with surrounding whitespace removed from every field.
func (c CandidateRecord) Normalized() CandidateRecord {
	return CandidateRecord{
		Name:              strings.TrimSpace(c.Name),
		Dose:              strings.TrimSpace(c.Dose),
		Units:             strings.TrimSpace(c.Units),
		Expiration:        strings.TrimSpace(c.Expiration),
		PiecesPerBox:      strings.TrimSpace(c.PiecesPerBox),
		Type:              strings.TrimSpace(c.Type),
		Lote:              strings.TrimSpace(c.Lote),
		MovementType:      strings.TrimSpace(c.MovementType),
		PiecesMoved:       strings.TrimSpace(c.PiecesMoved),
		DestinationOrigin: strings.TrimSpace(c.DestinationOrigin),
		DateMovement:      strings.TrimSpace(c.DateMovement),
		Signature:         strings.TrimSpace(c.Signature),
		Line:              c.Line,
	}
}

// IsBlank reports whether the record carries no data at all.
func (c CandidateRecord) IsBlank() bool {
	n := c.Normalized()
	n.Line = 0
	return n == CandidateRecord{}
}
