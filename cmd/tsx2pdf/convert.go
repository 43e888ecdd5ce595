package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tsx2pdf "github.com/halloran/go-tsx2pdf"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput            = errors.New("no input specified")
	ErrReadInput          = errors.New("failed to read input file")
	ErrWritePDF           = errors.New("failed to write PDF file")
	ErrInvalidExtension   = errors.New("file must have a .md, .markdown, or .html extension")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// filePermissions is the mode for written PDFs (rw-r--r--).
const filePermissions = 0o644

// fileJob is one input/output pair to process.
type fileJob struct {
	inputPath  string
	outputPath string
}

// run converts the given input files. Multiple inputs are processed
// through a converter pool.
func run(args []string, flags *cliFlags, logger *slog.Logger) error {
	if len(args) == 0 {
		return ErrNoInput
	}
	if flags.workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkerCount, flags.workers)
	}

	cfg := DefaultConfig()
	if flags.config != "" {
		loaded, err := LoadConfig(flags.config)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	jobs, err := buildJobs(args, flags)
	if err != nil {
		return err
	}

	pdfCfg := toPDFConfig(cfg, flags)

	opts := []tsx2pdf.Option{tsx2pdf.WithLogger(logger)}
	if cfg.Fonts.CacheSize > 0 {
		opts = append(opts, tsx2pdf.WithFontCache(cfg.Fonts.CacheSize, 0))
	}
	if cfg.Fonts.Concurrency > 1 {
		opts = append(opts, tsx2pdf.WithFontConcurrency(cfg.Fonts.Concurrency))
	}

	if len(jobs) == 1 {
		conv := tsx2pdf.NewConverter(opts...)
		defer func() { _ = conv.Close() }()
		return convertOne(context.Background(), conv, jobs[0], pdfCfg, flags, logger)
	}

	return convertBatch(jobs, pdfCfg, flags, logger, opts)
}

// convertBatch runs jobs through a converter pool sized from --workers.
func convertBatch(jobs []fileJob, pdfCfg *tsx2pdf.PDFConfig, flags *cliFlags, logger *slog.Logger, opts []tsx2pdf.Option) error {
	poolSize := tsx2pdf.ResolvePoolSize(flags.workers)
	if poolSize > len(jobs) {
		poolSize = len(jobs)
	}
	logger.Debug("starting batch conversion", "jobs", len(jobs), "pool", poolSize)

	pool := tsx2pdf.NewConverterPool(poolSize, opts...)
	defer func() { _ = pool.Close() }()

	var wg sync.WaitGroup
	errs := make([]error, len(jobs))
	for i, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv := pool.Acquire()
			defer pool.Release(conv)
			errs[i] = convertOne(context.Background(), conv, job, pdfCfg, flags, logger)
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// convertOne converts a single file and writes the output PDF.
func convertOne(ctx context.Context, conv *tsx2pdf.Converter, job fileJob, pdfCfg *tsx2pdf.PDFConfig, flags *cliFlags, logger *slog.Logger) error {
	content, err := os.ReadFile(job.inputPath) // #nosec G304 -- input path is user-provided
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReadInput, err)
	}

	doc := tsx2pdf.Document{
		Content: string(content),
		Format:  documentFormat(job.inputPath, flags.format),
	}

	start := time.Now()
	var convertOpts []tsx2pdf.ConvertOption
	if flags.verbose {
		convertOpts = append(convertOpts,
			tsx2pdf.OnProgress(func(stage tsx2pdf.Stage, pct float64) {
				logger.Debug("progress", "stage", stage, "percent", fmt.Sprintf("%.0f", pct))
			}),
			tsx2pdf.OnFontProgress(func(fetched, total int, family string) {
				logger.Debug("font fetched", "family", family, "done", fetched, "total", total)
			}),
		)
	}

	result, err := conv.Convert(ctx, doc, pdfCfg, convertOpts...)
	if err != nil {
		return fmt.Errorf("converting %s: %w", job.inputPath, err)
	}

	for _, w := range result.Warnings {
		logger.Warn(w, "input", job.inputPath)
	}

	if err := os.WriteFile(job.outputPath, result.PDF, filePermissions); err != nil {
		return fmt.Errorf("%w: %v", ErrWritePDF, err)
	}

	if flags.strict {
		if err := verifyPDF(job.outputPath); err != nil {
			return err
		}
	}

	stats := conv.FontCacheStats()
	logger.Info("created",
		"output", job.outputPath,
		"bytes", len(result.PDF),
		"fonts", len(result.Fonts),
		"cacheHits", stats.Hits,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// buildJobs validates the inputs and derives output paths.
func buildJobs(args []string, flags *cliFlags) ([]fileJob, error) {
	if flags.output != "" && len(args) > 1 {
		return nil, fmt.Errorf("%w: --output cannot be combined with multiple inputs", ErrNoInput)
	}

	jobs := make([]fileJob, 0, len(args))
	for _, input := range args {
		if err := validateExtension(input); err != nil {
			return nil, err
		}
		output := flags.output
		if output == "" {
			output = strings.TrimSuffix(input, filepath.Ext(input)) + ".pdf"
		}
		jobs = append(jobs, fileJob{inputPath: input, outputPath: output})
	}
	return jobs, nil
}

// validateExtension checks for a supported input extension.
func validateExtension(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".html", ".htm":
		return nil
	}
	return fmt.Errorf("%w: got %q", ErrInvalidExtension, filepath.Ext(path))
}

// documentFormat picks the source format from --format or the file
// extension.
func documentFormat(path, explicit string) tsx2pdf.DocumentFormat {
	switch strings.ToLower(explicit) {
	case "markdown":
		return tsx2pdf.FormatMarkdown
	case "html":
		return tsx2pdf.FormatHTML
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return tsx2pdf.FormatHTML
	}
	return tsx2pdf.FormatMarkdown
}
