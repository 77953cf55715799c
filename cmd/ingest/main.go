// Command ingest validates or imports an award TSV file from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/awardshelf/internal/config"
	"github.com/JonMunkholm/awardshelf/internal/core"
	"github.com/JonMunkholm/awardshelf/internal/logging"
	"github.com/JonMunkholm/awardshelf/internal/store/postgres"
)

type flags struct {
	file         string
	validateOnly bool
	preview      bool
	dryRun       bool
	batchSize    int
	txMode       string
	onAmbiguous  string
	jsonOut      bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.StringVar(&f.file, "file", "", "TSV file to read (- for stdin)")
	fs.BoolVar(&f.validateOnly, "validate-only", false, "check the file and exit without importing")
	fs.BoolVar(&f.preview, "preview", false, "show what the file would create or match and exit")
	fs.BoolVar(&f.dryRun, "dry-run", false, "run the import and roll everything back")
	fs.IntVar(&f.batchSize, "batch-size", 0, "rows per transaction (default from IMPORT_BATCH_SIZE)")
	fs.StringVar(&f.txMode, "tx-mode", "", "batch or row (default from IMPORT_TX_MODE)")
	fs.StringVar(&f.onAmbiguous, "on-ambiguous", "", "create_new, reject_row or pick_first (default from IMPORT_ON_AMBIGUOUS)")
	fs.BoolVar(&f.jsonOut, "json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.file == "" {
		return f, errors.New("-file is required")
	}
	modes := 0
	for _, on := range []bool{f.validateOnly, f.preview, f.dryRun} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		return f, errors.New("-validate-only, -preview and -dry-run are mutually exclusive")
	}
	return f, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	f, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, "ingest:", err)
		return 2
	}

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.LoadIngest()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingest:", err)
		return 1
	}
	logging.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	opts, err := core.ParseImportOptions(f.batchSize, f.txMode, f.onAmbiguous, f.dryRun)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingest:", err)
		return 2
	}
	defaults, err := core.ParseImportOptions(cfg.Import.BatchSize, cfg.Import.TxMode, cfg.Import.OnAmbiguous, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingest:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return 1
	}
	defer pool.Close()

	st := postgres.New(pool)
	if cfg.Database.Migrate {
		if err := st.Migrate(ctx); err != nil {
			slog.Error("failed to apply schema", "error", err)
			return 1
		}
	}

	in, name, err := openInput(f.file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingest:", err)
		return 1
	}
	defer in.Close()

	service := core.NewService(st, core.ServiceConfig{
		MaxConcurrent: 1,
		MaxWait:       cfg.Import.MaxWaitTime,
		Defaults:      defaults,
	})

	if f.validateOnly {
		report, err := service.Validate(ctx, in)
		if err != nil {
			return reportFailure(os.Stderr, "validation", err)
		}
		printReport(os.Stdout, f.jsonOut, report)
		if !report.IsValid {
			return 1
		}
		return 0
	}

	if f.preview {
		resp, err := service.Preview(ctx, in, opts.OnAmbiguous)
		if err != nil {
			return reportFailure(os.Stderr, "preview", err)
		}
		printPreview(os.Stdout, f.jsonOut, resp)
		return 0
	}

	// Interrupts stop the run between batches.
	result, err := service.Import(ctx, name, in, opts)
	if err != nil {
		return reportFailure(os.Stderr, "import", err)
	}
	printResult(os.Stdout, f.jsonOut, result)
	if result.Error != "" {
		return 1
	}
	return 0
}

// reportFailure logs err and prints its operator-facing form to w.
func reportFailure(w io.Writer, what string, err error) int {
	slog.Error(what+" failed", "error", err)
	fmt.Fprintf(w, "ingest: %s failed: %s\n", what, core.FormatUserError(err))
	return 1
}

func openInput(path string) (io.ReadCloser, string, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), "stdin", nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return file, path, nil
}

func printReport(w io.Writer, asJSON bool, report *core.ValidationReport) {
	if asJSON {
		writeJSON(w, report)
		return
	}
	fmt.Fprintf(w, "rows: %d\nvalid: %v\n", report.TotalRows, report.IsValid)
	for _, e := range report.Errors {
		fmt.Fprintln(w, "  -", e)
	}
}

func printResult(w io.Writer, asJSON bool, r *core.ImportResult) {
	if asJSON {
		writeJSON(w, r)
		return
	}
	if r.Options.DryRun {
		fmt.Fprintln(w, "dry run: nothing was saved")
	}
	if r.Error != "" {
		fmt.Fprintln(w, "error:", r.Error)
	}
	c := r.Created
	fmt.Fprintf(w, "rows: %d imported: %d errors: %d\n", r.TotalRows, r.Success, r.Errors)
	fmt.Fprintf(w, "created: %d authors, %d illustrators, %d books, %d placements (%d updated, %d backfilled)\n",
		c.Authors, c.Illustrators, c.Books, c.Placements, c.Updated, c.Backfilled)
	for _, re := range r.RowErrors {
		fmt.Fprintf(w, "  row %d (%s): %s\n", re.Row, re.Title, re.Reason)
	}
	fmt.Fprintf(w, "took %s\n", r.Duration)
}

func printPreview(w io.Writer, asJSON bool, p *core.PreviewResponse) {
	if asJSON {
		writeJSON(w, p)
		return
	}
	if p.Validation != nil && !p.Validation.IsValid && p.Summary.ValidRows == 0 {
		printReport(w, false, p.Validation)
		return
	}
	sum := p.Summary
	fmt.Fprintf(w, "rows: %d valid: %d with errors: %d\n", sum.TotalRows, sum.ValidRows, sum.ErrorRows)
	fmt.Fprintf(w, "books: %d new, %d existing\n", sum.NewBooks, sum.ExistingBooks)
	fmt.Fprintf(w, "people: %d new authors, %d new illustrators\n", sum.NewAuthors, sum.NewIllustrators)
	fmt.Fprintf(w, "ambiguous rows: %d duplicate placements: %d\n", sum.AmbiguousRows, sum.DuplicateInFile)
	for _, d := range p.DuplicateSamples {
		fmt.Fprintf(w, "  duplicate %q (category %s, %s) on rows %v\n", d.Title, d.Category, d.Year, d.LineNumbers)
	}
	for _, e := range p.ErrorSamples {
		for _, msg := range e.Errors {
			fmt.Fprintln(w, "  -", msg)
		}
	}
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
