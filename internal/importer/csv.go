package importer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/Veraticus/drug-deposit/internal/common"
	"github.com/Veraticus/drug-deposit/internal/model"
)

// Columns is the canonical header of a movement CSV.
var Columns = []string{
	"name", "dose", "units", "expiration", "pieces_per_box", "type", "lote",
	"movement_type", "pieces_moved", "destination_origin", "date_movement", "signature",
}

// Supported input encodings.
const (
	EncodingUTF8        = "utf-8"
	EncodingLatin1      = "latin1"
	EncodingWindows1252 = "windows-1252"
)

const utf8BOM = "\ufeff"

// decodeReader wraps r so that it yields UTF-8 for the named encoding.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingUTF8, "utf8":
		return r, nil
	case EncodingLatin1, "iso-8859-1", "iso8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case EncodingWindows1252, "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", common.ErrInvalidConfig, encoding)
	}
}

// ReadCandidates parses a header-driven CSV into candidate records. Unknown
// columns are ignored and missing columns are left blank. Line numbers are
// assigned by data row position, starting at 1.
func ReadCandidates(r io.Reader, encoding string) ([]model.CandidateRecord, error) {
	decoded, err := decodeReader(r, encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bufio.NewReader(decoded))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, common.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, utf8BOM)
		}
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := index["name"]; !ok {
		return nil, fmt.Errorf("missing required column %q in header", "name")
	}

	var records []model.CandidateRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(records)+1, err)
		}

		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}

		records = append(records, model.CandidateRecord{
			Name:              field("name"),
			Dose:              field("dose"),
			Units:             field("units"),
			Expiration:        field("expiration"),
			PiecesPerBox:      field("pieces_per_box"),
			Type:              field("type"),
			Lote:              field("lote"),
			MovementType:      field("movement_type"),
			PiecesMoved:       field("pieces_moved"),
			DestinationOrigin: field("destination_origin"),
			DateMovement:      field("date_movement"),
			Signature:         field("signature"),
			Line:              len(records) + 1,
		})
	}

	if len(records) == 0 {
		return nil, common.ErrNoRows
	}
	return records, nil
}

// ReadCandidatesFile opens path and parses it with ReadCandidates.
func ReadCandidatesFile(path, encoding string) ([]model.CandidateRecord, error) {
	f, err := os.Open(path) //nolint:gosec // path supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	records, err := ReadCandidates(f, encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// WriteCandidates writes records with the canonical header.
func WriteCandidates(w io.Writer, records []model.CandidateRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := writer.Write([]string{
			r.Name, r.Dose, r.Units, r.Expiration, r.PiecesPerBox, r.Type, r.Lote,
			r.MovementType, r.PiecesMoved, r.DestinationOrigin, r.DateMovement, r.Signature,
		}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteDrugsCSV exports the catalog.
func WriteDrugsCSV(w io.Writer, drugs []model.Drug) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{
		"id", "name", "dose", "units", "expiration", "pieces_per_box", "type", "lote",
		"current_stock", "last_inventory_date",
	}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, d := range drugs {
		if err := writer.Write([]string{
			strconv.FormatInt(d.ID, 10),
			d.Name,
			d.Dose,
			d.Units,
			d.Expiration,
			strconv.Itoa(d.PiecesPerBox),
			d.Type,
			d.Lote,
			strconv.Itoa(d.CurrentStock),
			d.LastInventoryDate.Format(model.DateLayout),
		}); err != nil {
			return fmt.Errorf("failed to write drug %d: %w", d.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteMovementsCSV exports the ledger.
func WriteMovementsCSV(w io.Writer, movements []model.Movement) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{
		"id", "drug_id", "movement_type", "pieces_moved", "destination_origin",
		"date_movement", "signature", "recorded_at",
	}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, m := range movements {
		if err := writer.Write([]string{
			strconv.FormatInt(m.ID, 10),
			strconv.FormatInt(m.DrugID, 10),
			string(m.Type),
			strconv.Itoa(m.PiecesMoved),
			m.DestinationOrigin,
			m.DateMovement.Format(model.DateLayout),
			m.Signature,
			m.RecordedAt.UTC().Format("2006-01-02 15:04:05"),
		}); err != nil {
			return fmt.Errorf("failed to write movement %d: %w", m.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
