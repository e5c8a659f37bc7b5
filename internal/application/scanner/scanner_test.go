package scanner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwmardis/ListingIQ/internal/adapters/sources"
	"github.com/mwmardis/ListingIQ/internal/adapters/storage"
	"github.com/mwmardis/ListingIQ/internal/application/alert"
	"github.com/mwmardis/ListingIQ/internal/application/tracker"
	"github.com/mwmardis/ListingIQ/internal/domain"
	"github.com/mwmardis/ListingIQ/internal/domain/strategy"
	"github.com/mwmardis/ListingIQ/internal/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingChannel acumula las alertas entregadas, para inspección.
type recordingChannel struct {
	mu      sync.Mutex
	intents []domain.AlertIntent
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Deliver(_ context.Context, intent domain.AlertIntent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents = append(c.intents, intent)
	return nil
}

func (c *recordingChannel) delivered() []domain.AlertIntent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.AlertIntent(nil), c.intents...)
}

// failingSource simula una fuente caída.
type failingSource struct{ source domain.Source }

func (f *failingSource) Source() domain.Source { return f.source }

func (f *failingSource) Fetch(context.Context, ports.SearchFilter) ([]ports.RawListing, error) {
	return nil, assert.AnError
}

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"source": "redfin",
		"listings": [
			{"mlsId": "900", "price": 200000, "streetLine": "5 Cycle Rd",
			 "city": "Columbus", "state": "OH", "zip": "43215",
			 "beds": 3, "baths": 2, "sqFt": 1400, "rentEstimate": 2200},
			{"mlsId": "901", "price": 400000, "streetLine": "7 Cycle Rd",
			 "city": "Columbus", "state": "OH", "zip": "43215",
			 "beds": 4, "baths": 3, "sqFt": 2400}
		]
	}`), 0o644))
	return path
}

type testHarness struct {
	repo    *storage.SQLiteRepository
	tracker *tracker.Tracker
	channel *recordingChannel
}

// newScanner arma un scanner completo sobre el harness; el dispatcher es
// nuevo en cada llamada porque Stop lo agota de forma terminal.
func (h *testHarness) newScanner(t *testing.T, srcs []ports.SourceAdapter) (*Scanner, *alert.Dispatcher) {
	t.Helper()
	log := testLogger()
	dispatcher := alert.NewDispatcher([]ports.Channel{h.channel}, log)
	analyzer := NewAnalyzer([]strategy.Strategy{
		strategy.NewCashFlow(strategy.DefaultCashFlowConfig()),
		strategy.NewBRRR(strategy.DefaultBRRRConfig(), strategy.DefaultCashFlowConfig()),
		strategy.NewFlip(strategy.DefaultFlipConfig()),
	}, strategy.NewOfferCalculator(strategy.DefaultOfferConfig()), log)
	sc := New(
		Config{ScanInterval: time.Minute, Once: true},
		srcs,
		h.repo,
		h.tracker,
		alert.NewGate(alert.Config{MinDealScore: 50, ImprovementMargin: 5}),
		dispatcher,
		analyzer,
		log,
	)
	return sc, dispatcher
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(":memory:", storage.DefaultRetentionConfig())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return &testHarness{
		repo:    repo,
		tracker: tracker.New(repo, testLogger()),
		channel: &recordingChannel{},
	}
}

func TestCycleEndToEnd(t *testing.T) {
	h := newHarness(t)
	fixture, err := sources.NewFixture(writeFixture(t))
	require.NoError(t, err)
	srcs := []ports.SourceAdapter{fixture}
	ctx := context.Background()

	// Primer ciclo: el listado con renta califica como NEW y alerta.
	sc, dispatcher := h.newScanner(t, srcs)
	require.NoError(t, sc.RunCycle(ctx))
	dispatcher.Stop()

	first := h.channel.delivered()
	require.NotEmpty(t, first)
	for _, intent := range first {
		assert.Equal(t, "new", intent.Classification)
		assert.GreaterOrEqual(t, intent.Score, 50)
	}

	rec, err := h.repo.Get(ctx, domain.Key{Source: domain.SourceRedfin, SourceID: "900"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.StatusActive, rec.Status)
	assert.NotEmpty(t, rec.LastAlerted)

	// Segundo ciclo idéntico: UNCHANGED en todo el mercado, cero alertas.
	sc, dispatcher = h.newScanner(t, srcs)
	require.NoError(t, sc.RunCycle(ctx))
	dispatcher.Stop()

	assert.Len(t, h.channel.delivered(), len(first))
}

func TestCycleMarksMissingStale(t *testing.T) {
	h := newHarness(t)
	fixture, err := sources.NewFixture(writeFixture(t))
	require.NoError(t, err)
	ctx := context.Background()

	sc, dispatcher := h.newScanner(t, []ports.SourceAdapter{fixture})
	require.NoError(t, sc.RunCycle(ctx))
	dispatcher.Stop()

	// Segundo ciclo con el mercado vacío: todo lo visto pasa a stale.
	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"source":"redfin","listings":[]}`), 0o644))
	emptyFixture, err := sources.NewFixture(empty)
	require.NoError(t, err)

	sc, dispatcher = h.newScanner(t, []ports.SourceAdapter{emptyFixture})
	require.NoError(t, sc.RunCycle(ctx))
	dispatcher.Stop()

	rec, err := h.repo.Get(ctx, domain.Key{Source: domain.SourceRedfin, SourceID: "900"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.StatusStale, rec.Status)
}

func TestCycleToleratesOneSourceDown(t *testing.T) {
	h := newHarness(t)
	fixture, err := sources.NewFixture(writeFixture(t))
	require.NoError(t, err)
	ctx := context.Background()

	down := &failingSource{source: domain.SourceZillow}
	sc, dispatcher := h.newScanner(t, []ports.SourceAdapter{fixture, down})
	require.NoError(t, sc.RunCycle(ctx))
	dispatcher.Stop()

	// La fuente sana se procesó con normalidad.
	rec, err := h.repo.Get(ctx, domain.Key{Source: domain.SourceRedfin, SourceID: "900"})
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestCycleAbortsWhenAllSourcesDown(t *testing.T) {
	h := newHarness(t)
	sc, dispatcher := h.newScanner(t, []ports.SourceAdapter{
		&failingSource{source: domain.SourceRedfin},
		&failingSource{source: domain.SourceZillow},
	})
	defer dispatcher.Stop()

	err := sc.RunCycle(context.Background())
	assert.Error(t, err)
}

func TestAnalyzerSkipsMissingInputs(t *testing.T) {
	analyzer := NewAnalyzer([]strategy.Strategy{
		strategy.NewCashFlow(strategy.DefaultCashFlowConfig()),
		strategy.NewFlip(strategy.DefaultFlipConfig()),
	}, nil, testLogger())

	// Sin renta ni ARV: ambas estrategias se omiten sin error.
	p := domain.Property{
		Source:   domain.SourceRedfin,
		SourceID: "x",
		Address:  "1 Empty St",
		Price:    domain.CentsFromDollars(100000),
		Sqft:     900,
	}
	scores, err := analyzer.Analyze(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, scores)
}
