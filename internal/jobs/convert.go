// SPDX-License-Identifier: MIT

// Package jobs runs batch conversions between the binary and JSON
// document forms over whole directories.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Typecraft/tbf/internal/config"
	"github.com/Typecraft/tbf/internal/log"
	"github.com/Typecraft/tbf/internal/metrics"
	"github.com/Typecraft/tbf/internal/tbf"
	"github.com/Typecraft/tbf/internal/telemetry"
)

// Options controls a batch conversion run.
type Options struct {
	// InputDir is scanned non-recursively for .tbf and .json files.
	InputDir string
	// OutputDir receives converted files under the swapped extension.
	OutputDir string
	// Overwrite replaces existing outputs. When false, files whose
	// output already exists are counted as skipped.
	Overwrite bool
}

// FileResult records the outcome for a single input file.
type FileResult struct {
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	Status string `json:"status"` // converted, failed, skipped
	Error  string `json:"error,omitempty"`
}

// Status summarizes a completed batch run.
type Status struct {
	JobID      string       `json:"jobId"`
	Started    time.Time    `json:"started"`
	Finished   time.Time    `json:"finished"`
	DurationMS int64        `json:"durationMs"`
	Converted  int          `json:"converted"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	Files      []FileResult `json:"files"`
}

// Convert scans opts.InputDir and converts every .tbf file to JSON and
// every .json file to binary, writing results into opts.OutputDir.
// Per-file failures are recorded but do not abort the batch; the run
// stops early only when ctx is cancelled.
func Convert(ctx context.Context, cfg config.JobsConfig, opts Options) (*Status, error) {
	jobID := uuid.New().String()
	ctx = log.ContextWithJobID(ctx, jobID)
	logger := log.WithComponentFromContext(ctx, "jobs")

	ctx, span := telemetry.Tracer("tbf.jobs").Start(ctx, "jobs.convert")
	defer span.End()

	inputs, err := scanInputs(opts.InputDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	limit := rate.Inf
	if cfg.FilesPerSec > 0 {
		limit = rate.Limit(cfg.FilesPerSec)
	}
	limiter := rate.NewLimiter(limit, 1)

	status := &Status{JobID: jobID, Started: time.Now()}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Concurrency > 0 {
		g.SetLimit(cfg.Concurrency)
	}

	logger.Info().
		Str("event", "job.started").
		Int("files", len(inputs)).
		Str("inputDir", opts.InputDir).
		Str("outputDir", opts.OutputDir).
		Msg("batch conversion started")

	for _, input := range inputs {
		input := input
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}

			res := convertFile(gctx, input, opts)
			metrics.IncJobFile(res.Status)
			if res.Status == "failed" {
				logger.Warn().
					Str("event", "job.file_failed").
					Str("input", res.Input).
					Str("error", res.Error).
					Msg("conversion failed")
			}

			mu.Lock()
			status.Files = append(status.Files, res)
			switch res.Status {
			case "converted":
				status.Converted++
			case "failed":
				status.Failed++
			case "skipped":
				status.Skipped++
			}
			mu.Unlock()
			return nil
		})
	}

	err = g.Wait()
	status.Finished = time.Now()
	status.DurationMS = status.Finished.Sub(status.Started).Milliseconds()
	metrics.ObserveJob(status.Started)

	outcome := "completed"
	if err != nil {
		outcome = "aborted"
		span.SetAttributes(telemetry.ErrorAttributes(err, "job")...)
	}
	span.SetAttributes(telemetry.JobAttributes("convert", outcome, len(status.Files), status.DurationMS)...)

	sort.Slice(status.Files, func(i, j int) bool {
		return status.Files[i].Input < status.Files[j].Input
	})

	logger.Info().
		Str("event", "job.finished").
		Int("converted", status.Converted).
		Int("failed", status.Failed).
		Int("skipped", status.Skipped).
		Int64("durationMs", status.DurationMS).
		Msg("batch conversion finished")

	if err != nil {
		return status, err
	}
	return status, nil
}

// scanInputs lists convertible files in dir, sorted for deterministic
// scheduling.
func scanInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	var inputs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".tbf", ".json":
			inputs = append(inputs, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(inputs)
	return inputs, nil
}

func convertFile(ctx context.Context, input string, opts Options) FileResult {
	res := FileResult{Input: input}

	ext := filepath.Ext(input)
	base := strings.TrimSuffix(filepath.Base(input), ext)
	switch ext {
	case ".tbf":
		res.Output = filepath.Join(opts.OutputDir, base+".json")
	case ".json":
		res.Output = filepath.Join(opts.OutputDir, base+".tbf")
	}

	if !opts.Overwrite {
		if _, err := os.Stat(res.Output); err == nil {
			res.Status = "skipped"
			return res
		}
	}

	data, err := os.ReadFile(input)
	if err != nil {
		res.Status = "failed"
		res.Error = err.Error()
		return res
	}

	var out []byte
	switch ext {
	case ".tbf":
		doc, derr := tbf.Unmarshal(data)
		metrics.IncDecoded(derr, len(data))
		if derr != nil {
			err = derr
			break
		}
		out, err = json.MarshalIndent(doc, "", "  ")
	case ".json":
		doc := tbf.NewDocument()
		if err = json.Unmarshal(data, doc); err != nil {
			break
		}
		out, err = tbf.Marshal(doc)
		metrics.IncEncoded(err, len(out))
	}
	if err != nil {
		res.Status = "failed"
		res.Error = err.Error()
		return res
	}

	if err := writeAtomic(ctx, res.Output, out); err != nil {
		res.Status = "failed"
		res.Error = err.Error()
		return res
	}

	res.Status = "converted"
	return res
}
