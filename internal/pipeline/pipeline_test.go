package pipeline_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/globe40-course-data/internal/domain"
	"github.com/couchcryptid/globe40-course-data/internal/observability"
	"github.com/couchcryptid/globe40-course-data/internal/pipeline"
)

// --- mocks ---

// sliceSource yields its items in order; an item with a non-nil err is
// returned as that error.
type sliceSource struct {
	items []sourceItem
	index int
}

type sourceItem struct {
	leg domain.Leg
	err error
}

func (s *sliceSource) Next() (domain.Leg, error) {
	if s.index >= len(s.items) {
		return domain.Leg{}, io.EOF
	}
	it := s.items[s.index]
	s.index++
	return it.leg, it.err
}

func legsSource(legs ...domain.Leg) *sliceSource {
	s := &sliceSource{}
	for _, l := range legs {
		s.items = append(s.items, sourceItem{leg: l})
	}
	return s
}

type mockLoader struct {
	mu       sync.Mutex
	loaded   []domain.RetrievalRequest
	err      error
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (m *mockLoader) Name() string { return "mock" }

func (m *mockLoader) Load(ctx context.Context, req domain.RetrievalRequest) error {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	if m.err != nil {
		return m.err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = append(m.loaded, req)
	return nil
}

func (m *mockLoader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// twoMonthLeg plans two requests per year shift with zero expansion.
func twoMonthLeg(t *testing.T, name string) domain.Leg {
	return testLeg(t, name, "2024-01-28", "2024-02-03")
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	p := pipeline.New(testPlanner(t, 0, 0, -2, -1), ldr, pipeline.Options{Workers: 4}, discardLogger(), metrics)

	require.Error(t, p.CheckReadiness(context.Background()))

	err := p.Run(context.Background(), legsSource(twoMonthLeg(t, "leg1"), twoMonthLeg(t, "leg2")))
	require.NoError(t, err)

	assert.Equal(t, 8, ldr.count())
	require.NoError(t, p.CheckReadiness(context.Background()))

	prog := p.Progress()
	assert.False(t, prog.Running)
	assert.Equal(t, int64(2), prog.LegsRead)
	assert.Equal(t, int64(8), prog.RequestsPlanned)
	assert.Equal(t, int64(8), prog.RequestsSucceeded)
	assert.Zero(t, prog.RequestsFailed)

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.LegsRead), 0)
	assert.InDelta(t, 8, testutil.ToFloat64(metrics.RequestsPlanned), 0)
	assert.InDelta(t, 8, testutil.ToFloat64(metrics.Retrievals.WithLabelValues("mock", "success")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_LoadErrorsAreCountedNotReturned(t *testing.T) {
	ldr := &mockLoader{err: errors.New("cds unavailable")}
	metrics := newTestMetrics()
	p := pipeline.New(testPlanner(t, 0, 0, -1), ldr, pipeline.Options{Workers: 2}, discardLogger(), metrics)

	err := p.Run(context.Background(), legsSource(twoMonthLeg(t, "leg1")))
	require.NoError(t, err)

	prog := p.Progress()
	assert.Equal(t, int64(2), prog.RequestsFailed)
	assert.Zero(t, prog.RequestsSucceeded)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Retrievals.WithLabelValues("mock", "error")), 0)
}

func TestPipeline_Run_InvalidLegAborts(t *testing.T) {
	ldr := &mockLoader{}
	src := legsSource(twoMonthLeg(t, "leg1"), testLeg(t, "leg2", "2024-03-10", "2024-03-01"), twoMonthLeg(t, "leg3"))
	p := pipeline.New(testPlanner(t, 0, 0, -1), ldr, pipeline.Options{Workers: 1}, discardLogger(), newTestMetrics())

	err := p.Run(context.Background(), src)
	require.ErrorIs(t, err, domain.ErrStartAfterEnd)
	assert.Contains(t, err.Error(), `leg "leg2"`)

	// leg1 was dispatched before leg2 was read; leg3 never was.
	assert.Equal(t, 2, ldr.count())
}

func TestPipeline_Run_SkipInvalid(t *testing.T) {
	ldr := &mockLoader{}
	rowErr := &domain.ValidationError{Leg: "leg2", Row: 2, Err: domain.ErrInvalidRecord}
	src := &sliceSource{items: []sourceItem{
		{leg: twoMonthLeg(t, "leg1")},
		{err: rowErr},
		{leg: testLeg(t, "leg3", "2024-03-10", "2024-03-01")},
		{leg: twoMonthLeg(t, "leg4")},
	}}
	metrics := newTestMetrics()
	p := pipeline.New(testPlanner(t, 0, 0, -1), ldr, pipeline.Options{Workers: 2, SkipInvalid: true}, discardLogger(), metrics)

	require.NoError(t, p.Run(context.Background(), src))

	assert.Equal(t, 4, ldr.count())
	prog := p.Progress()
	assert.Equal(t, int64(2), prog.LegsRejected)
	assert.Equal(t, int64(3), prog.LegsRead)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.LegsRejected), 0)
}

func TestPipeline_Run_SourceErrorAbortsEvenWhenSkipping(t *testing.T) {
	src := &sliceSource{items: []sourceItem{{err: errors.New("disk gone")}}}
	p := pipeline.New(testPlanner(t, 0, 0, -1), &mockLoader{}, pipeline.Options{SkipInvalid: true}, discardLogger(), newTestMetrics())

	err := p.Run(context.Background(), src)
	require.EqualError(t, err, "disk gone")
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(testPlanner(t, 0, 0, -1), ldr, pipeline.Options{}, discardLogger(), newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx, legsSource(twoMonthLeg(t, "leg1")))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ldr.count())
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_RespectsWorkerLimit(t *testing.T) {
	ldr := &mockLoader{delay: 20 * time.Millisecond}
	p := pipeline.New(testPlanner(t, 0, 0, -4, -3, -2, -1), ldr, pipeline.Options{Workers: 3}, discardLogger(), newTestMetrics())

	err := p.Run(context.Background(), legsSource(twoMonthLeg(t, "leg1"), twoMonthLeg(t, "leg2")))
	require.NoError(t, err)

	assert.Equal(t, 16, ldr.count())
	assert.LessOrEqual(t, ldr.maxSeen.Load(), int32(3))
	assert.Positive(t, ldr.maxSeen.Load())
}

func TestPrintLoader_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	ldr := pipeline.NewPrintLoader(&buf)
	assert.Equal(t, "stdout", ldr.Name())

	p := pipeline.New(testPlanner(t, 0, 0, -1), ldr, pipeline.Options{Workers: 1}, discardLogger(), newTestMetrics())
	require.NoError(t, p.Run(context.Background(), legsSource(twoMonthLeg(t, "leg1"))))

	var months []time.Month
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var req domain.RetrievalRequest
		require.NoError(t, json.Unmarshal(sc.Bytes(), &req))
		assert.Equal(t, "leg1", req.Leg)
		assert.Equal(t, 2023, req.Year)
		months = append(months, req.Month)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []time.Month{time.January, time.February}, months)
}
