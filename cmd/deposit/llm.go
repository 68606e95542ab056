package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/drug-deposit/internal/cli"
	"github.com/Veraticus/drug-deposit/internal/config"
	"github.com/Veraticus/drug-deposit/internal/importer"
	"github.com/Veraticus/drug-deposit/internal/llm"
	"github.com/Veraticus/drug-deposit/internal/model"
)

var llmFlagKeys = map[string]string{
	"llm.model":               "model",
	"llm.transcription_model": "transcription-model",
	"llm.language":            "language",
	"llm.base_url":            "base-url",
}

func addLLMFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", llm.DefaultModel, "Model used for extraction")
	cmd.Flags().String("transcription-model", llm.DefaultTranscriptionModel, "Model used for transcription")
	cmd.Flags().StringP("language", "l", llm.DefaultLanguage, "Language code of the dictation")
	cmd.Flags().String("base-url", "", "OpenAI-compatible endpoint, e.g. http://localhost:11434/v1")
}

func mergeKeys(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func transcribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe AUDIO_FILE",
		Short: "Transcribe a dictation to text",
		Args:  cobra.ExactArgs(1),
		PreRunE: bindFlags(mergeKeys(llmFlagKeys, map[string]string{
			"output.transcriptions": "output-dir",
		})),
		RunE: runTranscribe,
	}

	addLLMFlags(cmd)
	cmd.Flags().StringP("output-dir", "o", config.DefaultTranscriptionsDir, "Output directory for transcription JSON")

	return cmd
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	writeln(out, cli.FormatInfo(fmt.Sprintf("%s Transcribing: %s", cli.MicIcon, args[0])))

	path, _, err := transcribe(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	writeln(out, cli.FormatSuccess("Transcription complete: "+path))
	return nil
}

func transcribe(ctx context.Context, audioPath string) (string, *llm.Transcription, error) {
	transcriber, err := llm.NewTranscriber(llmConfig())
	if err != nil {
		return "", nil, err
	}

	tr, err := transcriber.Transcribe(ctx, config.ExpandPath(audioPath))
	if err != nil {
		return "", nil, err
	}

	path, err := llm.SaveTranscription(config.ExpandPath(viper.GetString("output.transcriptions")), tr)
	if err != nil {
		return "", nil, err
	}
	return path, tr, nil
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract TRANSCRIPTION.json|TEXT_FILE",
		Short: "Extract candidate rows from a transcription into CSV",
		Args:  cobra.ExactArgs(1),
		PreRunE: bindFlags(mergeKeys(llmFlagKeys, map[string]string{
			"output.processed": "output-dir",
		})),
		RunE: runExtract,
	}

	addLLMFlags(cmd)
	cmd.Flags().StringP("output-dir", "o", config.DefaultProcessedDir, "Output directory for processed JSON and CSV")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	writeln(out, cli.FormatInfo("Processing: "+args[0]))

	text, err := readTranscriptionText(args[0])
	if err != nil {
		return err
	}

	csvPath, records, err := extract(cmd.Context(), args[0], text)
	if err != nil {
		return err
	}

	writeln(out, cli.FormatSuccess(fmt.Sprintf("Extracted %d rows: %s", len(records), csvPath)))
	return nil
}

// readTranscriptionText accepts a saved transcription JSON or a plain text file.
func readTranscriptionText(path string) (string, error) {
	path = config.ExpandPath(path)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		tr, err := llm.LoadTranscription(path)
		if err != nil {
			return "", err
		}
		return tr.Text, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// extract runs the extractor and writes <stem>_processed.json and
// <stem>_data.csv into the processed directory.
func extract(ctx context.Context, source, text string) (string, []model.CandidateRecord, error) {
	extractor, err := llm.NewExtractor(llmConfig())
	if err != nil {
		return "", nil, err
	}

	records, err := extractor.Extract(ctx, text)
	if err != nil {
		return "", nil, err
	}

	dir := viper.GetString("output.processed")
	if _, err := llm.SaveExtraction(config.ExpandPath(dir), source, &llm.Extraction{
		ExtractedAt:   time.Now(),
		Transcription: text,
		Records:       records,
	}); err != nil {
		return "", nil, err
	}

	csvPath := config.ProcessedCSVPath(dir, source)
	if err := writeCandidatesFile(csvPath, records); err != nil {
		return "", nil, err
	}
	return csvPath, records, nil
}

func writeCandidatesFile(path string, records []model.CandidateRecord) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path) //nolint:gosec // path is derived from the operator's output dir
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return importer.WriteCandidates(f, records)
}

func processAudioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process-audio AUDIO_FILE",
		Short: "Transcribe, extract and import a dictation in one go",
		Args:  cobra.ExactArgs(1),
		PreRunE: bindFlags(mergeKeys(llmFlagKeys, importFlagKeys, map[string]string{
			"output.transcriptions": "transcriptions-dir",
			"output.processed":      "processed-dir",
		})),
		RunE: runProcessAudio,
	}

	addLLMFlags(cmd)
	addImportFlags(cmd)
	cmd.Flags().String("transcriptions-dir", config.DefaultTranscriptionsDir, "Output directory for transcription JSON")
	cmd.Flags().String("processed-dir", config.DefaultProcessedDir, "Output directory for processed JSON and CSV")

	return cmd
}

func runProcessAudio(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	rule := strings.Repeat("=", 60)

	writeln(out, rule)
	writeln(out, cli.FormatTitle("DRUG DEPOSIT DICTATION - Full Pipeline"))
	writeln(out, rule)

	writeln(out, "\n[1/3] Transcribing audio...")
	transcriptionPath, tr, err := transcribe(ctx, args[0])
	if err != nil {
		return err
	}
	writeln(out, cli.FormatSuccess("Transcription saved: "+transcriptionPath))

	writeln(out, "\n[2/3] Extracting rows...")
	csvPath, _, err := extract(ctx, transcriptionPath, tr.Text)
	if err != nil {
		return err
	}
	writeln(out, cli.FormatSuccess("CSV saved: "+csvPath))

	writeln(out, "\n[3/3] Importing to database...")
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	imp, err := newImporter(store)
	if err != nil {
		return err
	}

	result, err := imp.ImportFile(ctx, csvPath, newReviewer(cmd))
	if err := reportImport(cmd, csvPath, result, err); err != nil {
		return err
	}

	writeln(out, "\n"+rule)
	writeln(out, cli.FormatSuccess("COMPLETE!"))
	writeln(out, rule)
	return nil
}
