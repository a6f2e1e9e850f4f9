package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"retrieval-orchestrator/internal/backfill"
)

var (
	version = "dev"

	// Global flags
	verbose         bool
	orchestratorURL string

	// Query command flags
	queryCollection string
	queryTopK       int

	// Ingest command flags
	ingestCollection string
	ingestSource     string

	// Bulk command flags
	bulkDir        string
	bulkCollection string
	cursorFile     string
	dryRun         bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "retrievectl",
	Short:   "Query and ingest documents through the retrieval orchestrator",
	Version: version,
}

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Retrieve documents for a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a single document",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Bulk-ingest a directory of documents",
	Long: `Bulk-ingest every .txt and .md file in a directory.

The process can be resumed from where it left off using cursor tracking.

Examples:
  # Ingest a directory into the "docs" collection
  retrievectl bulk --dir ./docs --collection docs

  # Dry run to see what would be ingested
  retrievectl bulk --dir ./docs --collection docs --dry-run`,
	RunE: runBulk,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current bulk cursor status",
	RunE:  showStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset-cursor",
	Short: "Reset the bulk cursor to start from beginning",
	RunE:  resetCursor,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&orchestratorURL, "url", "http://localhost:9020", "orchestrator base URL")

	queryCmd.Flags().StringVar(&queryCollection, "collection", "", "collection to search (required)")
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 5, "number of results")
	_ = queryCmd.MarkFlagRequired("collection")

	ingestCmd.Flags().StringVar(&ingestCollection, "collection", "", "collection to write chunks to")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "knowledge_base", "file source (knowledge_base, chat_upload, direct_upload)")

	bulkCmd.Flags().StringVar(&bulkDir, "dir", "", "directory of documents (required)")
	bulkCmd.Flags().StringVar(&bulkCollection, "collection", "", "collection to write chunks to (required)")
	bulkCmd.Flags().StringVar(&cursorFile, "cursor-file", "cursor.json", "cursor file path")
	bulkCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be ingested without posting")
	_ = bulkCmd.MarkFlagRequired("dir")
	_ = bulkCmd.MarkFlagRequired("collection")

	statusCmd.Flags().StringVar(&cursorFile, "cursor-file", "cursor.json", "cursor file path")
	resetCmd.Flags().StringVar(&cursorFile, "cursor-file", "cursor.json", "cursor file path")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(bulkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func runQuery(cmd *cobra.Command, args []string) error {
	payload := map[string]any{
		"query": args[0],
		"k":     queryTopK,
		"files": []map[string]any{
			{
				"name":            queryCollection,
				"source":          "knowledge_base",
				"collection_name": queryCollection,
			},
		},
	}

	var resp struct {
		Documents []struct {
			ID    string  `json:"id"`
			Text  string  `json:"text"`
			Score float64 `json:"score"`
		} `json:"documents"`
	}
	if err := post(cmd.Context(), "/v1/retrieve", payload, &resp); err != nil {
		return err
	}

	if len(resp.Documents) == 0 {
		fmt.Println("No documents found.")
		return nil
	}
	for i, doc := range resp.Documents {
		fmt.Printf("%d. [%.4f] %s\n", i+1, doc.Score, doc.Text)
	}
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	payload := map[string]any{
		"file": map[string]any{
			"name":            filepath.Base(path),
			"source":          ingestSource,
			"size_bytes":      int64(len(content)),
			"collection_name": ingestCollection,
		},
		"content": string(content),
	}

	var resp struct {
		Mode       string `json:"mode"`
		ChunkCount int    `json:"chunk_count"`
	}
	if err := post(cmd.Context(), "/v1/ingest", payload, &resp); err != nil {
		return err
	}

	fmt.Printf("Ingested %s: mode=%s chunks=%d\n", filepath.Base(path), resp.Mode, resp.ChunkCount)
	return nil
}

func runBulk(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg := backfill.DefaultConfig()
	cfg.OrchestratorURL = orchestratorURL
	cfg.Dir = bulkDir
	cfg.Collection = bulkCollection
	cfg.CursorFile = cursorFile
	cfg.DryRun = dryRun

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	runner, err := backfill.NewRunner(cfg, logger)
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}
	defer runner.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", slog.String("signal", sig.String()))
		cancel()
	}()

	if err := runner.Run(ctx); err != nil {
		if err == context.Canceled {
			logger.Info("bulk ingest interrupted, cursor saved for resume")
			return nil
		}
		return fmt.Errorf("run bulk ingest: %w", err)
	}
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	manager := backfill.NewCursorManager(cursorFile)
	cursor, err := manager.Load()
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	if cursor.IsEmpty() {
		fmt.Println("No cursor found. Bulk ingest will start from the beginning.")
		return nil
	}

	fmt.Printf("Cursor Status:\n")
	fmt.Printf("  Version:         %d\n", cursor.Version)
	fmt.Printf("  Last File:       %s\n", cursor.LastFile)
	fmt.Printf("  Processed Count: %d\n", cursor.ProcessedCount)
	fmt.Printf("  Updated At:      %s\n", cursor.UpdatedAt.Format(time.RFC3339))
	return nil
}

func resetCursor(cmd *cobra.Command, args []string) error {
	manager := backfill.NewCursorManager(cursorFile)
	if err := manager.Reset(); err != nil {
		return fmt.Errorf("reset cursor: %w", err)
	}
	fmt.Println("Cursor reset.")
	return nil
}

func post(ctx context.Context, path string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", orchestratorURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call orchestrator: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("orchestrator returned status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
