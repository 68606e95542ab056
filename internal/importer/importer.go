// Package importer drives extracted drug movements through matching and posting.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/drug-deposit/internal/common"
	"github.com/Veraticus/drug-deposit/internal/ledger"
	"github.com/Veraticus/drug-deposit/internal/matcher"
	"github.com/Veraticus/drug-deposit/internal/model"
	"github.com/Veraticus/drug-deposit/internal/service"
)

// RowStatus is the terminal state of an imported row.
type RowStatus string

// Row states.
const (
	StatusImported RowStatus = "imported"
	StatusSkipped  RowStatus = "skipped"
	StatusFailed   RowStatus = "failed"
)

// DateLayouts are the accepted date_movement formats, tried in order.
var DateLayouts = []string{model.DateLayout, "02/01/2006", "2006/01/02"}

// RowDetail reports the outcome of one row.
type RowDetail struct {
	Err          error
	DrugName     string
	MovementType model.MovementType
	MatchReason  string
	Message      string
	Status       RowStatus
	ErrorKind    common.RowErrorKind
	DrugID       int64
	MovementID   int64
	Line         int
	PiecesMoved  int
	NewStock     int
	DrugCreated  bool
}

// Success reports whether the row was posted.
func (d RowDetail) Success() bool {
	return d.Status == StatusImported
}

// BatchResult aggregates the outcome of a batch.
type BatchResult struct {
	BatchID   string
	Details   []RowDetail
	Processed int // Rows posted
	Failed    int
	Created   int // Posted rows that created their drug
	Matched   int // Posted rows that reused a catalog drug
	Skipped   int
}

// Success reports whether no row failed.
func (r *BatchResult) Success() bool {
	return r.Failed == 0
}

func (r *BatchResult) add(detail RowDetail) {
	r.Details = append(r.Details, detail)
	switch detail.Status {
	case StatusImported:
		r.Processed++
		if detail.DrugCreated {
			r.Created++
		} else {
			r.Matched++
		}
	case StatusSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// FileResult is the outcome of importing one file.
type FileResult struct {
	Err    error
	Result *BatchResult
	Path   string
}

// Reviewer confirms a parsed batch before anything is written.
type Reviewer interface {
	Review(ctx context.Context, rows []model.CandidateRecord) (bool, error)
}

// Config holds configuration options for the importer.
type Config struct {
	Matcher    matcher.Config
	Ledger     ledger.Config
	Encoding   string
	AutoCreate bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Matcher:    matcher.DefaultConfig(),
		Ledger:     ledger.DefaultConfig(),
		Encoding:   EncodingUTF8,
		AutoCreate: true,
	}
}

// Importer resolves and posts candidate records.
type Importer struct {
	storage    service.Storage
	matcher    *matcher.Matcher
	poster     *ledger.Poster
	encoding   string
	autoCreate bool
	createMu   sync.Mutex
}

// New creates an importer with the default configuration.
func New(storage service.Storage) *Importer {
	return NewWithConfig(storage, DefaultConfig())
}

// NewWithConfig creates an importer with custom configuration.
func NewWithConfig(storage service.Storage, config Config) *Importer {
	return &Importer{
		storage:    storage,
		matcher:    matcher.New(storage, config.Matcher),
		poster:     ledger.NewWithConfig(storage, config.Ledger),
		encoding:   config.Encoding,
		autoCreate: config.AutoCreate,
	}
}

// ImportBatch processes every row independently. A failing row never stops the
// rest of the batch; only context cancellation ends it early.
func (i *Importer) ImportBatch(ctx context.Context, rows []model.CandidateRecord) (*BatchResult, error) {
	if len(rows) == 0 {
		return nil, common.ErrNoRows
	}

	result := &BatchResult{BatchID: uuid.NewString()}
	logger := slog.With("batch_id", result.BatchID)
	logger.Info("Starting import batch", "rows", len(rows), "auto_create", i.autoCreate)

	for idx, row := range rows {
		if err := ctx.Err(); err != nil {
			logger.Warn("Import batch interrupted", "processed_rows", idx)
			return result, err
		}
		if row.Line == 0 {
			row.Line = idx + 1
		}

		detail := i.ImportRow(ctx, row)
		result.add(detail)

		if detail.Status == StatusFailed {
			logger.Warn("Row failed",
				"line", detail.Line,
				"kind", detail.ErrorKind,
				"error", detail.Message)
		}
	}

	logger.Info("Import batch complete",
		"processed", result.Processed,
		"failed", result.Failed,
		"created", result.Created,
		"matched", result.Matched,
		"skipped", result.Skipped)

	return result, nil
}

// ImportWithReview shows the batch to a reviewer first. Declining returns
// ErrImportCancelled and leaves the store untouched.
func (i *Importer) ImportWithReview(ctx context.Context, rows []model.CandidateRecord, reviewer Reviewer) (*BatchResult, error) {
	if len(rows) == 0 {
		return nil, common.ErrNoRows
	}

	approved, err := reviewer.Review(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("review failed: %w", err)
	}
	if !approved {
		slog.Info("Import declined during review", "rows", len(rows))
		return nil, common.ErrImportCancelled
	}

	return i.ImportBatch(ctx, rows)
}

// ImportFile reads a CSV file and imports its rows, optionally through review.
func (i *Importer) ImportFile(ctx context.Context, path string, reviewer Reviewer) (*BatchResult, error) {
	rows, err := ReadCandidatesFile(path, i.encoding)
	if err != nil {
		return nil, err
	}
	if reviewer != nil {
		return i.ImportWithReview(ctx, rows, reviewer)
	}
	return i.ImportBatch(ctx, rows)
}

// ImportFiles imports several CSV files in order. A file that cannot be read or
// imported is recorded and the remaining files continue. onDone, if set, is
// called after each file.
func (i *Importer) ImportFiles(ctx context.Context, paths []string, onDone func(FileResult)) []FileResult {
	results := make([]FileResult, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			results = append(results, FileResult{Path: path, Err: err})
			continue
		}

		result, err := i.ImportFile(ctx, path, nil)
		fr := FileResult{Path: path, Result: result, Err: err}
		if err != nil {
			slog.Error("Failed to import file", "path", path, "error", err)
		}
		results = append(results, fr)
		if onDone != nil {
			onDone(fr)
		}
	}
	return results
}

// ImportRow runs one record through validate, resolve, quantity and post.
func (i *Importer) ImportRow(ctx context.Context, raw model.CandidateRecord) RowDetail {
	row := raw.Normalized()
	detail := RowDetail{
		Line:     row.Line,
		DrugName: row.Name,
	}

	if row.IsBlank() {
		detail.Status = StatusSkipped
		detail.Message = "Empty row"
		return detail
	}

	movementType, date, err := validate(row)
	if err != nil {
		return fail(detail, err)
	}
	detail.MovementType = movementType

	match, err := i.matcher.Match(ctx, row)
	if err != nil {
		return fail(detail, common.NewRowError(common.KindStore, "Failed to match drug", err))
	}
	detail.MatchReason = match.Reason

	if !match.Matched() && !i.autoCreate {
		return fail(detail, common.NewRowError(common.KindNoMatch,
			"No matching drug found and auto-create is disabled. "+match.Reason, nil))
	}

	pieces, err := parseQuantity(row.PiecesMoved)
	if err != nil {
		return fail(detail, err)
	}
	detail.PiecesMoved = pieces

	if match.Matched() {
		detail.DrugID = match.Drug.ID
	} else {
		// A new drug starts at zero stock, so the exit cannot be posted.
		if movementType == model.MovementExit && i.poster.Policy() == ledger.RejectNegative {
			return fail(detail, classifyPostError(fmt.Errorf("%w: %s has 0, exit of %d",
				common.ErrNegativeStock, row.Name, pieces)))
		}
		id, created, err := i.createDrug(ctx, row)
		if err != nil {
			return fail(detail, err)
		}
		detail.DrugID = id
		detail.DrugCreated = created
	}

	movementID, err := i.poster.Post(ctx, ledger.PostRequest{
		DrugID:            detail.DrugID,
		Type:              movementType,
		PiecesMoved:       pieces,
		DestinationOrigin: row.DestinationOrigin,
		DateMovement:      date,
		Signature:         row.Signature,
	})
	if err != nil {
		return fail(detail, classifyPostError(err))
	}
	detail.MovementID = movementID

	stock, err := i.storage.CurrentStock(ctx, detail.DrugID)
	if err != nil {
		return fail(detail, common.NewRowError(common.KindStore, "Failed to read stock", err))
	}
	detail.NewStock = stock
	detail.Status = StatusImported
	detail.Message = fmt.Sprintf("%s of %d pieces. New stock: %d", movementType.Title(), pieces, stock)

	return detail
}

// createDrug inserts the candidate as a new catalog entry. Creation is
// serialized, and a concurrent insert of the same identity resolves to the
// existing drug.
func (i *Importer) createDrug(ctx context.Context, row model.CandidateRecord) (int64, bool, error) {
	piecesPerBox := 0
	if row.PiecesPerBox != "" {
		n, err := strconv.Atoi(row.PiecesPerBox)
		if err != nil || n < 0 {
			return 0, false, common.NewRowError(common.KindValidation,
				fmt.Sprintf("Invalid pieces_per_box value: %q", row.PiecesPerBox), err)
		}
		piecesPerBox = n
	}

	i.createMu.Lock()
	defer i.createMu.Unlock()

	if existing, err := i.storage.FindExact(ctx, row.Name, row.Dose, row.Lote); err != nil {
		return 0, false, common.NewRowError(common.KindStore, "Failed to look up drug", err)
	} else if existing != nil {
		return existing.ID, false, nil
	}

	id, err := i.storage.InsertDrug(ctx, model.DrugAttributes{
		Name:         row.Name,
		Dose:         row.Dose,
		Units:        row.Units,
		Expiration:   row.Expiration,
		PiecesPerBox: piecesPerBox,
		Type:         row.Type,
		Lote:         row.Lote,
	})
	if errors.Is(err, common.ErrDuplicateEntry) {
		existing, findErr := i.storage.FindExact(ctx, row.Name, row.Dose, row.Lote)
		if findErr == nil && existing != nil {
			return existing.ID, false, nil
		}
	}
	if err != nil {
		return 0, false, common.NewRowError(common.KindStore, "Failed to create drug", err)
	}

	slog.Info("Created new drug", "drug_id", id, "name", row.Name, "dose", row.Dose, "lote", row.Lote)
	return id, true, nil
}

func validate(row model.CandidateRecord) (model.MovementType, time.Time, error) {
	if row.Name == "" {
		return "", time.Time{}, common.NewRowError(common.KindValidation, "Drug name is required", common.ErrMissingName)
	}

	movementType, ok := model.ParseMovementType(row.MovementType)
	if !ok {
		return "", time.Time{}, common.NewRowError(common.KindValidation,
			fmt.Sprintf("Invalid movement type: %s", strings.ToLower(row.MovementType)), common.ErrInvalidMovementType)
	}

	date, err := ParseDate(row.DateMovement)
	if err != nil {
		return "", time.Time{}, common.NewRowError(common.KindValidation,
			fmt.Sprintf("Invalid date_movement value: %q", row.DateMovement), err)
	}

	return movementType, date, nil
}

// ParseDate accepts the supported layouts; a blank value yields the zero time
// so the poster applies the processing date.
func ParseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	var lastErr error
	for _, layout := range DateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func parseQuantity(raw string) (int, error) {
	if raw == "" {
		return 0, common.NewRowError(common.KindInvalidQuantity, "pieces_moved must be positive", common.ErrInvalidQuantity)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.NewRowError(common.KindInvalidQuantity, "Invalid pieces_moved value", common.ErrInvalidQuantity)
	}
	if n <= 0 {
		return 0, common.NewRowError(common.KindInvalidQuantity, "pieces_moved must be positive", common.ErrInvalidQuantity)
	}
	return n, nil
}

func classifyPostError(err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidMovementType):
		return common.NewRowError(common.KindValidation, "Invalid movement type", err)
	case errors.Is(err, common.ErrNegativeStock):
		return common.NewRowError(common.KindInvalidQuantity, "Movement rejected: "+err.Error(), err)
	case errors.Is(err, common.ErrInvalidQuantity):
		return common.NewRowError(common.KindInvalidQuantity, "Movement rejected", err)
	default:
		return common.NewRowError(common.KindStore, "Failed to post movement", err)
	}
}

func fail(detail RowDetail, err error) RowDetail {
	detail.Status = StatusFailed
	detail.Err = err
	detail.ErrorKind = common.KindOf(err)

	var rowErr *common.RowError
	if errors.As(err, &rowErr) {
		detail.Message = rowErr.Message
		if rowErr.Err != nil && rowErr.Kind == common.KindStore {
			detail.Message += ": " + rowErr.Err.Error()
		}
	} else {
		detail.Message = err.Error()
	}
	return detail
}
