package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/Veraticus/drug-deposit/internal/common"
)

// Transcription is the saved result of transcribing one audio file.
type Transcription struct {
	TranscribedAt time.Time `json:"transcribed_at"`
	AudioFile     string    `json:"audio_file"`
	Text          string    `json:"text"`
	Language      string    `json:"language"`
}

// speechToText converts an audio stream to text.
type speechToText interface {
	Transcribe(ctx context.Context, name string, audio io.Reader) (string, error)
}

type whisperClient struct {
	client   *openai.Client
	model    string
	language string
}

func (w *whisperClient) Transcribe(ctx context.Context, name string, audio io.Reader) (string, error) {
	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     openai.File(audio, filepath.Base(name), ""),
		Model:    openai.AudioModel(w.model),
		Language: openai.String(w.language),
	})
	if err != nil {
		return "", classifyAPIError(err)
	}
	return resp.Text, nil
}

// Transcriber turns dictated audio into text.
type Transcriber struct {
	stt      speechToText
	limiter  *rateLimiter
	now      func() time.Time
	language string
	retry    common.RetryOptions
}

// NewTranscriber creates a transcriber backed by the audio transcription API.
func NewTranscriber(cfg Config) (*Transcriber, error) {
	cfg = cfg.withDefaults()
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Transcriber{
		stt: &whisperClient{
			client:   client,
			model:    cfg.TranscriptionModel,
			language: cfg.Language,
		},
		limiter:  newRateLimiter(cfg.RateLimit),
		now:      time.Now,
		language: cfg.Language,
		retry:    cfg.retryOptions(),
	}, nil
}

// Transcribe returns the text spoken in the audio file at audioPath.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (*Transcription, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	slog.Info("Transcribing audio", "file", audioPath, "language", t.language)

	var text string
	err := common.WithRetry(ctx, func() error {
		if err := t.limiter.wait(ctx); err != nil {
			return common.Permanent(err)
		}

		f, err := os.Open(audioPath) //nolint:gosec // path is chosen by the operator
		if err != nil {
			return common.Permanent(err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				slog.Warn("Failed to close audio file", "error", cerr)
			}
		}()

		out, err := t.stt.Transcribe(ctx, audioPath, f)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(out)
		return nil
	}, t.retry)
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe %s: %w", filepath.Base(audioPath), err)
	}

	return &Transcription{
		AudioFile:     audioPath,
		Text:          text,
		Language:      t.language,
		TranscribedAt: t.now(),
	}, nil
}

// SaveTranscription writes tr as indented JSON into dir, named after the
// audio file. It returns the written path.
func SaveTranscription(dir string, tr *Transcription) (string, error) {
	base := strings.TrimSuffix(filepath.Base(tr.AudioFile), filepath.Ext(tr.AudioFile))
	return writeJSON(filepath.Join(dir, base+"_transcription.json"), tr)
}

// LoadTranscription reads a transcription saved by SaveTranscription.
func LoadTranscription(path string) (*Transcription, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read transcription: %w", err)
	}
	var tr Transcription
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse transcription %s: %w", path, err)
	}
	return &tr, nil
}

// SaveExtraction writes ex as indented JSON into dir, named after name.
func SaveExtraction(dir, name string, ex *Extraction) (string, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.TrimSuffix(base, "_transcription")
	return writeJSON(filepath.Join(dir, base+"_processed.json"), ex)
}

func writeJSON(path string, v any) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
