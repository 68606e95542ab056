package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/drug-deposit/internal/importer"
	"github.com/Veraticus/drug-deposit/internal/model"
)

var _ importer.Reviewer = (*ReviewPrompter)(nil)

// ReviewPrompter shows a parsed batch on the terminal and asks for a single
// yes/no confirmation before anything is posted.
type ReviewPrompter struct {
	writer io.Writer
	reader *NonBlockingReader
}

// NewReviewPrompter creates a prompter reading answers from reader.
func NewReviewPrompter(reader io.Reader, writer io.Writer) *ReviewPrompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &ReviewPrompter{
		reader: NewNonBlockingReader(reader),
		writer: writer,
	}
}

// Review lists rows and returns true only when the operator answers y or yes.
// End of input counts as a decline.
func (p *ReviewPrompter) Review(ctx context.Context, rows []model.CandidateRecord) (bool, error) {
	if _, err := fmt.Fprintln(p.writer, FormatReviewListing(rows)); err != nil {
		return false, fmt.Errorf("failed to write review listing: %w", err)
	}

	if _, err := fmt.Fprint(p.writer, FormatPrompt("Import these movements? (y/n)")); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}

	answer, err := p.reader.ReadLine(ctx)
	switch {
	case errors.Is(err, ErrInputCancelled):
		return false, ctx.Err()
	case errors.Is(err, io.EOF):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(answer) {
	case "y", "yes", "s", "sim":
		return true, nil
	default:
		return false, nil
	}
}

// FormatReviewListing renders the numbered batch shown before confirmation.
func FormatReviewListing(rows []model.CandidateRecord) string {
	rule := strings.Repeat("=", 80)

	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString(BoldStyle.Render(fmt.Sprintf("MOVEMENTS TO IMPORT: %d", len(rows))) + "\n")
	b.WriteString(rule + "\n")

	for idx, row := range rows {
		row = row.Normalized()
		fmt.Fprintf(&b, "\n[%d] %s\n", idx+1, orNA(row.Name))
		fmt.Fprintf(&b, "    Type: %s\n", orNA(row.MovementType))
		fmt.Fprintf(&b, "    Dose: %s\n", strings.TrimSpace(row.Dose+" "+row.Units))
		fmt.Fprintf(&b, "    Pieces: %s\n", orNA(row.PiecesMoved))
		if row.Lote != "" {
			fmt.Fprintf(&b, "    Lot: %s\n", row.Lote)
		}
		if row.DestinationOrigin != "" {
			fmt.Fprintf(&b, "    Dest/Origin: %s\n", row.DestinationOrigin)
		}
	}
	b.WriteString(rule)
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// FormatBatchResult renders the per-row outcome and totals of an import run.
func FormatBatchResult(result *importer.BatchResult) string {
	var b strings.Builder
	for _, d := range result.Details {
		switch d.Status {
		case importer.StatusImported:
			line := fmt.Sprintf("Row %d: %s - %s", d.Line, d.DrugName, d.Message)
			if d.DrugCreated {
				line += " (new drug)"
			}
			b.WriteString(FormatSuccess(line) + "\n")
		case importer.StatusSkipped:
			b.WriteString(SubtleStyle.Render(fmt.Sprintf("- Row %d: %s", d.Line, d.Message)) + "\n")
		case importer.StatusFailed:
			b.WriteString(FormatError(fmt.Sprintf("Row %d: [%s] %s", d.Line, d.ErrorKind, d.Message)) + "\n")
		}
	}

	summary := fmt.Sprintf("Processed: %d\nFailed: %d\nSkipped: %d\nNew drugs: %d\nMatched drugs: %d",
		result.Processed, result.Failed, result.Skipped, result.Created, result.Matched)
	b.WriteString(RenderBox(fmt.Sprintf("%s Import %s", ChartIcon, shortID(result.BatchID)), summary))
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// NewFileProgress creates the progress bar shown while importing several files.
func NewFileProgress(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Importing files...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
