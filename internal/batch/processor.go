package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pbr-autowire/internal/autowire"
	"pbr-autowire/internal/graph"
	"pbr-autowire/internal/metrics"
)

var ErrNoShader = errors.New("batch: no shader to wire")

// Config holds all shared resources for a batch run.
type Config struct {
	InputDir  string
	OutputDir string
	Workers   int
	Wirer     *autowire.Wirer
	Metrics   *metrics.Recorder
	Logger    *zap.Logger
}

// Status of one processed document.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Result holds the outcome of processing one document.
type Result struct {
	Document  string            `json:"document"`
	Output    string            `json:"output,omitempty"`
	Material  string            `json:"material,omitempty"`
	Action    string            `json:"action,omitempty"`
	Status    string            `json:"status"`
	Summary   *autowire.Summary `json:"summary,omitempty"`
	Error     string            `json:"error,omitempty"`
	ElapsedMS int64             `json:"elapsed_ms"`
}

// Discover lists the graph documents under dir, sorted, relative to dir.
// Directories in skip, such as the output directory, are not descended.
func Discover(dir string, skip ...string) ([]string, error) {
	var docs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && slices.ContainsFunc(skip, func(s string) bool { return sameDir(s, path) }) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		docs = append(docs, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("batch: scan %s: %w", dir, err)
	}
	slices.Sort(docs)
	return docs, nil
}

func sameDir(a, b string) bool {
	a, errA := filepath.Abs(a)
	b, errB := filepath.Abs(b)
	return errA == nil && errB == nil && a == b
}

// Run wires every document using a worker pool. Each document gets its own
// host; results keep the order of docs. Cancelling ctx stops dispatching new
// documents and marks the rest failed.
func Run(ctx context.Context, cfg Config, docs []string) []Result {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	log := cfg.Logger.Named("batch")

	total := len(docs)
	results := make([]Result, total)
	var processed atomic.Int64
	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if p := processed.Load(); p > 0 {
					log.Info("Progress",
						zap.Int64("done", p),
						zap.Int("total", total),
						zap.Float64("per_sec", float64(p)/time.Since(start).Seconds()),
					)
				}
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, doc := range docs {
		if gctx.Err() != nil {
			results[i] = Result{Document: doc, Status: StatusFailed, Error: gctx.Err().Error()}
			continue
		}
		g.Go(func() error {
			results[i] = processDocument(cfg, log, doc)
			processed.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	close(done)

	log.Info("Batch finished",
		zap.Int("documents", total),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results
}

func processDocument(cfg Config, log *zap.Logger, rel string) Result {
	start := time.Now()
	res := Result{Document: rel}
	finish := func(status string, err error) Result {
		res.Status = status
		if err != nil {
			res.Error = err.Error()
			log.Warn("Document failed", zap.String("document", rel), zap.Error(err))
		}
		elapsed := time.Since(start)
		res.ElapsedMS = elapsed.Milliseconds()
		cfg.Metrics.ObserveGraph(status, elapsed.Seconds())
		return res
	}

	doc, err := graph.ReadDocument(filepath.Join(cfg.InputDir, rel))
	if err != nil {
		return finish(StatusFailed, err)
	}
	res.Material = doc.Material

	profile := cfg.Wirer.Profile()
	host, err := graph.LoadMemory(doc, profile.Catalog(), cfg.Logger)
	if err != nil {
		return finish(StatusFailed, err)
	}

	sum, action, err := wire(cfg.Wirer, host)
	if err != nil {
		return finish(StatusFailed, err)
	}
	res.Action = action
	res.Summary = sum

	out := filepath.Join(cfg.OutputDir, rel)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return finish(StatusFailed, err)
	}
	if err := graph.WriteDocument(out, host.Document(doc.Material)); err != nil {
		return finish(StatusFailed, err)
	}
	res.Output = out

	if len(sum.Failures) > 0 {
		return finish(StatusPartial, nil)
	}
	return finish(StatusOK, nil)
}

// wire picks the action for one document. A graph that already has a
// target shader gets every texture connected to it. Otherwise a target is
// created and the shader fed by the most textures is converted.
func wire(w *autowire.Wirer, host *graph.Memory) (*autowire.Summary, string, error) {
	snap, err := host.Snapshot()
	if err != nil {
		return nil, "", err
	}
	if target, ok := w.FindTarget(snap); ok {
		sum, err := w.ConnectExisting(host, target)
		return sum, "connect", err
	}

	source, ok := w.FindSource(snap)
	if !ok {
		return nil, "", ErrNoShader
	}
	target, err := w.CreateTarget(host)
	if err != nil {
		return nil, "", err
	}
	sum, err := w.ConvertExistingMaterial(host, source, target)
	return sum, "convert", err
}
