// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert runs the LaTeX to MyST pipeline over files on disk: a
// single source file, or a tree of numbered chapter folders converted into
// a mirrored output tree.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/l2m/internal/ledger"
	"github.com/pdiddy/l2m/internal/transform"
	"github.com/pdiddy/l2m/internal/verify"
	"github.com/pdiddy/l2m/pkg/types"
)

const (
	// DefaultSuffix is appended to the source base name.
	DefaultSuffix = "_converted"
	// DefaultExtension is the output file extension.
	DefaultExtension = ".md"

	sourceExtension = ".tex"
)

// ErrNoChapters is returned when the input directory holds no chapter
// folders.
var ErrNoChapters = errors.New("no chapter folders found")

// chapterPattern matches folder names such as "01 Intro" or "02_Limits".
var chapterPattern = regexp.MustCompile(`^\d{2}[\s_-]+.+`)

// Converter turns LaTeX source into MyST Markdown. *transform.Engine
// implements it.
type Converter interface {
	Convert(raw string) transform.Result
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	RunID     string
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any file failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

func (r *BatchResult) count(status types.ConversionStatus) {
	switch status {
	case types.ConversionDone:
		r.Converted++
	case types.ConversionSkipped:
		r.Skipped++
	case types.ConversionFailed:
		r.Failed++
	}
}

// Option configures ConvertTree.
type Option func(*batch)

// WithLedger records every conversion in store and skips sources whose
// digest, computed over the source and rules, is unchanged.
func WithLedger(store *ledger.Store, rules []byte) Option {
	return func(b *batch) {
		b.ledger = store
		b.rules = rules
	}
}

// WithClock sets the time source for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *batch) { b.now = now }
}

// ConvertFile converts the LaTeX file src and writes the Markdown to dst,
// creating dst's directory if needed.
func ConvertFile(c Converter, src, dst string) (transform.Result, error) {
	raw, err := os.ReadFile(src)
	if err != nil {
		return transform.Result{}, fmt.Errorf("reading %s: %w", src, err)
	}
	res := c.Convert(string(raw))
	if err := writeOutput(dst, res.Text); err != nil {
		return transform.Result{}, err
	}
	return res, nil
}

func writeOutput(dst, text string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(dst, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

// OutputName returns the output file name for a source file name:
// "limits.tex" becomes "limits_converted.md" with the default settings.
func OutputName(source, suffix, ext string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return base + suffix + ext
}

// job is one source file scheduled in a batch.
type job struct {
	src     string
	dst     string
	display string
}

type batch struct {
	conv   Converter
	cfg    types.ConversionConfig
	out    io.Writer
	ledger *ledger.Store
	rules  []byte
	now    func() time.Time
	runID  string
}

// ConvertTree converts every .tex file in the chapter folders of
// cfg.InputDir into cfg.OutputDir/<chapter>/<name><suffix><ext>. Progress
// lines are written to w. A failing file is counted and reported but never
// stops the batch; the returned error is reserved for setup problems and
// cancellation.
func ConvertTree(ctx context.Context, c Converter, cfg types.ConversionConfig, w io.Writer, opts ...Option) (BatchResult, error) {
	cfg = withDefaults(cfg)
	b := &batch{conv: c, cfg: cfg, out: &syncWriter{w: w}, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}

	jobs, err := b.discover()
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	if b.ledger != nil {
		id, err := b.ledger.BeginRun(ctx, b.now())
		if err != nil {
			return BatchResult{}, err
		}
		b.runID = id
		result.RunID = id
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			status := b.convertOne(gctx, j)
			mu.Lock()
			result.count(status)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())

	if b.ledger != nil {
		if err := b.ledger.FinishRun(context.WithoutCancel(ctx), b.runID, b.now(),
			result.Converted, result.Skipped, result.Failed); err != nil {
			fmt.Fprintf(w, "warning: %v\n", err)
		}
	}
	return result, ctx.Err()
}

func withDefaults(cfg types.ConversionConfig) types.ConversionConfig {
	if cfg.InputDir == "" {
		cfg.InputDir = "."
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.InputDir
	}
	if cfg.Suffix == "" {
		cfg.Suffix = DefaultSuffix
	}
	if cfg.Extension == "" {
		cfg.Extension = DefaultExtension
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return cfg
}

// discover lists the chapter folders in name order and the .tex files
// directly inside each.
func (b *batch) discover() ([]job, error) {
	entries, err := os.ReadDir(b.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory %s: %w", b.cfg.InputDir, err)
	}

	var chapters []string
	for _, e := range entries {
		if e.IsDir() && chapterPattern.MatchString(e.Name()) {
			chapters = append(chapters, e.Name())
		}
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("%s: %w", b.cfg.InputDir, ErrNoChapters)
	}
	sort.Strings(chapters)

	var jobs []job
	for _, ch := range chapters {
		fmt.Fprintf(b.out, "chapter: %s\n", ch)
		files, err := os.ReadDir(filepath.Join(b.cfg.InputDir, ch))
		if err != nil {
			return nil, fmt.Errorf("reading chapter %s: %w", ch, err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), sourceExtension) {
				continue
			}
			jobs = append(jobs, job{
				src:     filepath.Join(b.cfg.InputDir, ch, f.Name()),
				dst:     filepath.Join(b.cfg.OutputDir, ch, OutputName(f.Name(), b.cfg.Suffix, b.cfg.Extension)),
				display: filepath.Join(ch, f.Name()),
			})
		}
	}
	return jobs, nil
}

// convertOne converts a single job and reports its status line.
func (b *batch) convertOne(ctx context.Context, j job) types.ConversionStatus {
	raw, err := os.ReadFile(j.src)
	if err != nil {
		return b.fail(ctx, j, "", err)
	}

	var digest string
	if b.ledger != nil {
		digest = ledger.Digest(raw, b.rules)
		if !b.cfg.Force {
			unchanged, err := b.ledger.Unchanged(ctx, j.src, j.dst, digest)
			if err != nil {
				fmt.Fprintf(b.out, "warning: %v\n", err)
			}
			if unchanged {
				fmt.Fprintf(b.out, "skipped: %s (unchanged)\n", j.display)
				return types.ConversionSkipped
			}
		}
	}

	res := b.conv.Convert(string(raw))
	if err := writeOutput(j.dst, res.Text); err != nil {
		return b.fail(ctx, j, digest, err)
	}

	b.record(ctx, j, digest, len(res.Footnotes), types.ConversionDone)
	fmt.Fprintf(b.out, "converted: %s -> %s\n", j.display, j.dst)

	if b.cfg.Verify {
		report := verify.Check(j.dst, []byte(res.Text))
		for _, p := range report.Problems {
			fmt.Fprintf(b.out, "warning: %s: %s\n", j.dst, p)
		}
	}
	return types.ConversionDone
}

func (b *batch) fail(ctx context.Context, j job, digest string, err error) types.ConversionStatus {
	fmt.Fprintf(b.out, "failed:  %s (%v)\n", j.display, err)
	b.record(ctx, j, digest, 0, types.ConversionFailed)
	return types.ConversionFailed
}

func (b *batch) record(ctx context.Context, j job, digest string, footnotes int, status types.ConversionStatus) {
	if b.ledger == nil {
		return
	}
	err := b.ledger.Record(ctx, types.ConversionRecord{
		SourcePath:  j.src,
		OutputPath:  j.dst,
		Digest:      digest,
		RunID:       b.runID,
		Footnotes:   footnotes,
		Status:      status,
		ConvertedAt: b.now(),
	})
	if err != nil {
		fmt.Fprintf(b.out, "warning: %v\n", err)
	}
}

// syncWriter serializes writes from concurrent workers so progress lines
// never interleave.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
