package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/globe40-course-data/internal/domain"
	"github.com/couchcryptid/globe40-course-data/internal/observability"
)

// LegSource yields legs one at a time and returns io.EOF when exhausted.
// A row that fails validation yields a *domain.ValidationError.
type LegSource interface {
	Next() (domain.Leg, error)
}

// Loader hands a retrieval request to its sink.
type Loader interface {
	Name() string
	Load(ctx context.Context, req domain.RetrievalRequest) error
}

// Options controls how a run dispatches requests.
type Options struct {
	// Workers is the number of loads allowed in flight at once.
	Workers int
	// SkipInvalid logs and skips legs that fail validation instead of
	// aborting the run.
	SkipInvalid bool
}

// Progress is a snapshot of a run's counters.
type Progress struct {
	Running           bool  `json:"running"`
	LegsRead          int64 `json:"legs_read"`
	LegsRejected      int64 `json:"legs_rejected"`
	RequestsPlanned   int64 `json:"requests_planned"`
	RequestsSucceeded int64 `json:"requests_succeeded"`
	RequestsFailed    int64 `json:"requests_failed"`
}

// Pipeline plans retrieval requests for each leg and dispatches them to a
// Loader.
type Pipeline struct {
	planner *Planner
	loader  Loader
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics

	ready     atomic.Bool
	running   atomic.Bool
	legsRead  atomic.Int64
	rejected  atomic.Int64
	planned   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// New creates a Pipeline with the given planner, sink and observability.
func New(planner *Planner, loader Loader, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{
		planner: planner,
		loader:  loader,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the pipeline has dispatched at least one
// request.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not dispatched any requests yet")
	}
	return nil
}

// Progress returns the current counters.
func (p *Pipeline) Progress() Progress {
	return Progress{
		Running:           p.running.Load(),
		LegsRead:          p.legsRead.Load(),
		LegsRejected:      p.rejected.Load(),
		RequestsPlanned:   p.planned.Load(),
		RequestsSucceeded: p.succeeded.Load(),
		RequestsFailed:    p.failed.Load(),
	}
}

// Run reads every leg from src and dispatches its requests. Load failures are
// logged and counted but do not stop the run. Invalid legs stop the run unless
// SkipInvalid is set. In-flight loads are waited for before Run returns; a
// cancelled context stops dispatching and is reported as the returned error.
func (p *Pipeline) Run(ctx context.Context, src LegSource) error {
	p.logger.Info("pipeline started", "sink", p.loader.Name(), "workers", p.opts.Workers)
	p.metrics.PipelineRunning.Set(1)
	p.running.Store(true)
	defer func() {
		p.running.Store(false)
		p.metrics.PipelineRunning.Set(0)
	}()

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)

	err := p.dispatchLegs(ctx, src, &g)
	_ = g.Wait() // workers never return errors

	prog := p.Progress()
	p.logger.Info("pipeline finished",
		"legs_read", prog.LegsRead,
		"legs_rejected", prog.LegsRejected,
		"requests_planned", prog.RequestsPlanned,
		"requests_succeeded", prog.RequestsSucceeded,
		"requests_failed", prog.RequestsFailed,
	)
	return err
}

func (p *Pipeline) dispatchLegs(ctx context.Context, src LegSource, g *errgroup.Group) error {
	for {
		if err := ctx.Err(); err != nil {
			p.logger.Info("pipeline stopping", "reason", err)
			return err
		}

		leg, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if p.skip(err) {
				continue
			}
			return err
		}
		p.legsRead.Add(1)
		p.metrics.LegsRead.Inc()

		plan, err := p.planner.Plan(leg)
		if err != nil {
			if p.skip(err) {
				continue
			}
			return err
		}

		for req := range plan.Requests() {
			if err := ctx.Err(); err != nil {
				p.logger.Info("pipeline stopping", "reason", err)
				return err
			}
			p.planned.Add(1)
			p.metrics.RequestsPlanned.Inc()
			g.Go(func() error {
				p.dispatch(ctx, req)
				return nil
			})
		}
	}
}

// skip reports whether err is a validation failure the run may continue past.
func (p *Pipeline) skip(err error) bool {
	if !p.opts.SkipInvalid || !domain.IsValidation(err) {
		return false
	}
	p.logger.Warn("invalid leg, skipping", "error", err)
	p.rejected.Add(1)
	p.metrics.LegsRejected.Inc()
	return true
}

func (p *Pipeline) dispatch(ctx context.Context, req domain.RetrievalRequest) {
	p.ready.Store(true)
	sink := p.loader.Name()
	start := time.Now()

	err := p.loader.Load(ctx, req)
	p.metrics.RetrievalDuration.WithLabelValues(sink).Observe(time.Since(start).Seconds())

	if err != nil {
		p.failed.Add(1)
		p.metrics.Retrievals.WithLabelValues(sink, "error").Inc()
		p.logger.Error("retrieval failed",
			"leg", req.Leg,
			"year", req.Year,
			"month", int(req.Month),
			"days", len(req.Days),
			"output", req.OutputPath(),
			"error", err,
		)
		return
	}

	p.succeeded.Add(1)
	p.metrics.Retrievals.WithLabelValues(sink, "success").Inc()
	p.logger.Info("retrieval complete",
		"leg", req.Leg,
		"year", req.Year,
		"month", int(req.Month),
		"days", len(req.Days),
		"output", req.OutputPath(),
		"duration", time.Since(start),
	)
}
