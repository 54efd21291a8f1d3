package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/fortcodeproject/OCR/internal/common"
	"github.com/fortcodeproject/OCR/internal/document"
	"github.com/fortcodeproject/OCR/internal/export"
	"github.com/fortcodeproject/OCR/internal/footer"
	"github.com/fortcodeproject/OCR/internal/llm/openai"
	"github.com/fortcodeproject/OCR/internal/ocr"
	"github.com/fortcodeproject/OCR/internal/pipeline"
	"github.com/fortcodeproject/OCR/internal/reconcile"
	"github.com/fortcodeproject/OCR/internal/repository"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage(logger)
	}

	cfg := common.LoadConfig()

	switch os.Args[1] {
	case "extract":
		if len(os.Args) < 3 {
			usage(logger)
		}
		if err := cfg.Validate(); err != nil {
			logger.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
		runExtract(logger, cfg, os.Args[2:])
	case "export":
		if len(os.Args) != 3 {
			usage(logger)
		}
		runExport(logger, cfg, os.Args[2])
	case "jobs":
		runJobs(logger, cfg)
	default:
		usage(logger)
	}
}

func usage(logger *slog.Logger) {
	logger.Error("usage", "cmd", "invoicectl extract <file>... | invoicectl export <out.xlsx> | invoicectl jobs")
	os.Exit(2)
}

func runExtract(logger *slog.Logger, cfg *common.Config, paths []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := repository.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		logger.Error("open job store", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)
	jobs := repository.NewJobRepository(db, logger)

	runner := ocr.ExecRunner{}
	processor := pipeline.NewProcessor(
		logger,
		document.NewLoader(document.Config{Pdftoppm: cfg.OCR.Pdftoppm, DPI: cfg.OCR.DPI}, runner, logger),
		ocr.NewEngine(ocr.Config{
			Tesseract:     cfg.OCR.Tesseract,
			Languages:     cfg.OCR.Languages,
			Workers:       cfg.OCR.Workers,
			MinConfidence: cfg.OCR.MinConfidence,
		}, runner, logger),
		footer.NewExtractor(logger),
		openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger),
		reconcile.NewEngine(cfg.Reconcile, logger),
		cfg.LLM.MaxChars,
	)

	failed := 0
	for _, path := range paths {
		if err := extractOne(ctx, processor, jobs, path); err != nil {
			logger.Error("extraction failed", "file", path, "error", err)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func extractOne(ctx context.Context, processor *pipeline.Processor, jobs repository.JobRepository, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	filename := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(path))

	job, err := jobs.Start(ctx, filename)
	if err != nil {
		return err
	}
	res, err := processor.Process(ctx, data, filename, contentType)
	if err != nil {
		if ferr := jobs.FinishFailure(ctx, job.ID, err.Error()); ferr != nil {
			return fmt.Errorf("%w (and job update failed: %v)", err, ferr)
		}
		return err
	}
	if err := jobs.FinishSuccess(ctx, job.ID, res.OCRText, res.Record, res.Anomalies); err != nil {
		return err
	}

	out, err := json.MarshalIndent(res.Record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runJobs(logger *slog.Logger, cfg *common.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := repository.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		logger.Error("open job store", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)

	jobs, err := repository.NewJobRepository(db, logger).ListCompleted(ctx)
	if err != nil {
		logger.Error("list jobs", "error", err)
		os.Exit(1)
	}
	for _, job := range jobs {
		invoice, supplier := "", ""
		if job.Record != nil {
			invoice = job.Record.InvoiceNumber
			supplier = job.Record.SupplierName
		}
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
			job.ID, job.StartedAt.Format(time.RFC3339), job.Filename, invoice, supplier)
	}
}

func runExport(logger *slog.Logger, cfg *common.Config, outPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := repository.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		logger.Error("open job store", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)

	svc := export.NewService(repository.NewJobRepository(db, logger), logger)
	data, err := svc.ExportInvoicesXLSX(ctx)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		logger.Error("write workbook", "path", outPath, "error", err)
		os.Exit(1)
	}
	logger.Info("export written", "path", outPath, "bytes", len(data))
}
