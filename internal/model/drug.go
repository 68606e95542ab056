// Package model defines the core domain models used throughout the application.
package model

import "time"

// DateLayout is the calendar date format used for movement and inventory dates.
const DateLayout = "2006-01-02"

// EpochInventoryDate marks a drug that has never been physically counted.
var EpochInventoryDate = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

// Drug represents a catalog entry in the deposit.
type Drug struct {
	LastInventoryDate time.Time
	Name              string
	Dose              string
	Units             string
	Expiration        string // Raw value as dictated, compared verbatim by the matcher
	Type              string
	Lote              string
	ID                int64
	PiecesPerBox      int
	CurrentStock      int // May be negative after permissive exits
}

// DrugAttributes holds the fields used to create a new catalog entry.
type DrugAttributes struct {
	LastInventoryDate *time.Time // Defaults to EpochInventoryDate when nil
	Name              string
	Dose              string
	Units             string
	Expiration        string
	Type              string
	Lote              string
	PiecesPerBox      int
	CurrentStock      int
}

// HasBeenCounted reports whether an inventory movement was ever posted for the drug.
func (d Drug) HasBeenCounted() bool {
	return d.LastInventoryDate.After(EpochInventoryDate)
}

// Label returns a short human-readable description such as "Paracetamol 500 mg".
func (d Drug) Label() string {
	label := d.Name
	if d.Dose != "" {
		label += " " + d.Dose
	}
	if d.Units != "" {
		label += " " + d.Units
	}
	return label
}
