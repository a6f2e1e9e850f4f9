package backfill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"retrieval-orchestrator/internal/infra/httpclient"
)

// Config controls one bulk ingest run.
type Config struct {
	OrchestratorURL string
	Dir             string // directory of documents to ingest
	Collection      string
	CursorFile      string
	DryRun          bool
}

// DefaultConfig returns a Config with defaults filled in.
func DefaultConfig() Config {
	return Config{
		OrchestratorURL: "http://localhost:9020",
		CursorFile:      "cursor.json",
	}
}

// Runner walks a directory in lexical order and posts each file to the
// ingest endpoint, saving the cursor after every file so an interrupted run
// resumes where it stopped.
type Runner struct {
	cfg    Config
	cursor *CursorManager
	client *http.Client
	logger *slog.Logger
}

// NewRunner creates a Runner and acquires the cursor lock.
func NewRunner(cfg Config, logger *slog.Logger) (*Runner, error) {
	manager := NewCursorManager(cfg.CursorFile)
	if err := manager.Lock(); err != nil {
		return nil, fmt.Errorf("lock cursor: %w", err)
	}
	return &Runner{
		cfg:    cfg,
		cursor: manager,
		client: httpclient.NewPooledClient(60 * time.Second),
		logger: logger,
	}, nil
}

// Close releases the cursor lock.
func (r *Runner) Close() error {
	return r.cursor.Unlock()
}

// GetCursor loads the current cursor.
func (r *Runner) GetCursor() (Cursor, error) {
	return r.cursor.Load()
}

// ResetCursor clears the cursor.
func (r *Runner) ResetCursor() error {
	return r.cursor.Reset()
}

// Run ingests every file in the configured directory that sorts after the
// cursor position. A cancelled context stops between files; the cursor stays
// valid for resume.
func (r *Runner) Run(ctx context.Context) error {
	cursor, err := r.cursor.Load()
	if err != nil {
		return err
	}

	files, err := listDocuments(r.cfg.Dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.Base(path)
		if !cursor.IsEmpty() && name <= cursor.LastFile {
			continue
		}

		if r.cfg.DryRun {
			r.logger.Info("would_ingest", slog.String("file", name))
			continue
		}

		if err := r.ingestFile(ctx, path); err != nil {
			return fmt.Errorf("ingest %s: %w", name, err)
		}

		cursor.LastFile = name
		cursor.ProcessedCount++
		if err := r.cursor.Save(cursor); err != nil {
			return fmt.Errorf("save cursor: %w", err)
		}

		if cursor.ProcessedCount%100 == 0 {
			r.logger.Info("backfill_progress", slog.Int("processed", cursor.ProcessedCount))
		}
	}

	r.logger.Info("backfill_completed", slog.Int("processed", cursor.ProcessedCount))
	return nil
}

type ingestFilePayload struct {
	Name           string `json:"name"`
	Source         string `json:"source"`
	SizeBytes      int64  `json:"size_bytes"`
	CollectionName string `json:"collection_name"`
}

type ingestPayload struct {
	File    ingestFilePayload `json:"file"`
	Content string            `json:"content"`
}

func (r *Runner) ingestFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	payload := ingestPayload{
		File: ingestFilePayload{
			Name:           filepath.Base(path),
			Source:         "knowledge_base",
			SizeBytes:      int64(len(content)),
			CollectionName: r.cfg.Collection,
		},
		Content: string(content),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := r.cfg.OrchestratorURL + "/v1/ingest"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post ingest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ingest returned status: %d", resp.StatusCode)
	}
	return nil
}

// listDocuments returns the .txt and .md files directly under dir, sorted by
// name.
func listDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".txt", ".md":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
