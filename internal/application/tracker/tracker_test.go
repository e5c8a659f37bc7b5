package tracker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwmardis/ListingIQ/internal/domain"
	"github.com/mwmardis/ListingIQ/internal/ports"
)

// memRepo es un Repository en memoria con la misma semántica CAS que el
// adapter de sqlite: Version 0 inserta, cualquier otra exige coincidencia.
type memRepo struct {
	mu      sync.Mutex
	records map[string]*domain.DealRecord
	alerts  []domain.AlertIntent
	cycles  []domain.CycleSummary

	failPuts int // Puts que fallarán con ErrConflict antes de funcionar
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*domain.DealRecord)}
}

func cloneRecord(r *domain.DealRecord) *domain.DealRecord {
	c := *r
	c.PriceHistory = append([]domain.PricePoint(nil), r.PriceHistory...)
	c.BestScores = make(map[domain.StrategyName]int, len(r.BestScores))
	for k, v := range r.BestScores {
		c.BestScores[k] = v
	}
	c.LastAlerted = make(map[domain.StrategyName]int, len(r.LastAlerted))
	for k, v := range r.LastAlerted {
		c.LastAlerted[k] = v
	}
	return &c
}

func (m *memRepo) Get(_ context.Context, key domain.Key) (*domain.DealRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[key.String()]
	if !ok {
		return nil, nil
	}
	return cloneRecord(r), nil
}

func (m *memRepo) Put(_ context.Context, rec *domain.DealRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPuts > 0 {
		m.failPuts--
		return ports.ErrConflict
	}
	stored, exists := m.records[rec.Key.String()]
	if rec.Version == 0 {
		if exists {
			return ports.ErrConflict
		}
	} else if !exists || stored.Version != rec.Version {
		return ports.ErrConflict
	}
	c := cloneRecord(rec)
	c.Version++
	m.records[rec.Key.String()] = c
	rec.Version = c.Version
	return nil
}

func (m *memRepo) AppendPrice(_ context.Context, _ domain.Key, _ domain.PricePoint) error {
	return nil
}

func (m *memRepo) ListActiveKeys(_ context.Context) ([]domain.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []domain.Key
	for _, r := range m.records {
		if r.Status == domain.StatusActive {
			keys = append(keys, r.Key)
		}
	}
	return keys, nil
}

func (m *memRepo) SaveAlert(_ context.Context, intent domain.AlertIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, intent)
	return nil
}

func (m *memRepo) SaveCycle(_ context.Context, summary domain.CycleSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, summary)
	return nil
}

func (m *memRepo) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProp(priceDollars float64) domain.Property {
	return domain.Property{
		Source:   domain.SourceRedfin,
		SourceID: "777",
		Address:  "12 Test Ln",
		Price:    domain.CentsFromDollars(priceDollars),
		Beds:     3,
		Baths:    2,
		Sqft:     1400,
	}
}

func scoresOf(cf, brrr int) []domain.DealScore {
	return []domain.DealScore{
		{Strategy: domain.StrategyCashFlow, Score: cf, ComputedAt: time.Now()},
		{Strategy: domain.StrategyBRRR, Score: brrr, ComputedAt: time.Now()},
	}
}

func TestObserveNew(t *testing.T) {
	repo := newMemRepo()
	tr := New(repo, testLogger())

	class, rec, err := tr.Observe(context.Background(), testProp(250000), scoresOf(60, 45))
	require.NoError(t, err)

	assert.Equal(t, domain.ClassNew, class)
	assert.Equal(t, domain.StatusActive, rec.Status)
	assert.Equal(t, int64(1), rec.Version)
	assert.Len(t, rec.PriceHistory, 1)
	assert.Equal(t, 60, rec.BestScores[domain.StrategyCashFlow])
	assert.Equal(t, 45, rec.BestScores[domain.StrategyBRRR])
	assert.False(t, rec.FirstSeenAt.IsZero())
}

func TestObserveUnchanged(t *testing.T) {
	repo := newMemRepo()
	tr := New(repo, testLogger())
	ctx := context.Background()

	_, _, err := tr.Observe(ctx, testProp(250000), scoresOf(60, 45))
	require.NoError(t, err)

	class, rec, err := tr.Observe(ctx, testProp(250000), scoresOf(60, 45))
	require.NoError(t, err)

	assert.Equal(t, domain.ClassUnchanged, class)
	assert.Len(t, rec.PriceHistory, 1) // mismo precio, sin punto nuevo
	assert.Equal(t, int64(2), rec.Version)
}

func TestObservePriceChange(t *testing.T) {
	repo := newMemRepo()
	tr := New(repo, testLogger())
	ctx := context.Background()

	_, _, err := tr.Observe(ctx, testProp(250000), scoresOf(60, 45))
	require.NoError(t, err)

	class, rec, err := tr.Observe(ctx, testProp(240000), scoresOf(60, 45))
	require.NoError(t, err)

	assert.Equal(t, domain.ClassUpdatedPrice, class)
	require.Len(t, rec.PriceHistory, 2)
	assert.Equal(t, domain.CentsFromDollars(240000), rec.LastPrice())
}

func TestObserveScoreImprovement(t *testing.T) {
	repo := newMemRepo()
	tr := New(repo, testLogger())
	ctx := context.Background()

	_, _, err := tr.Observe(ctx, testProp(250000), scoresOf(60, 45))
	require.NoError(t, err)

	class, rec, err := tr.Observe(ctx, testProp(250000), scoresOf(72, 45))
	require.NoError(t, err)

	assert.Equal(t, domain.ClassUpdatedScore, class)
	assert.Equal(t, 72, rec.BestScores[domain.StrategyCashFlow])
}

func TestObserveScoreDropKeepsBest(t *testing.T) {
	repo := newMemRepo()
	tr := New(repo, testLogger())
	ctx := context.Background()

	_, _, err := tr.Observe(ctx, testProp(250000), scoresOf(60, 45))
	require.NoError(t, err)

	class, rec, err := tr.Observe(ctx, testProp(250000), scoresOf(40, 45))
	require.NoError(t, err)

	// Un score peor no es una actualización y no baja el best.
	assert.Equal(t, domain.ClassUnchanged, class)
	assert.Equal(t, 60, rec.BestScores[domain.StrategyCashFlow])
}

func TestObserveRelisted(t *testing.T) {
	repo := newMemRepo()
	tr := New(repo, testLogger())
	ctx := context.Background()

	_, rec, err := tr.Observe(ctx, testProp(250000), scoresOf(60, 45))
	require.NoError(t, err)

	swept, err := tr.SweepStale(ctx, map[domain.Key]struct{}{})
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	class, rec, err := tr.Observe(ctx, testProp(250000), scoresOf(60, 45))
	require.NoError(t, err)

	assert.Equal(t, domain.ClassRelisted, class)
	assert.Equal(t, domain.StatusActive, rec.Status)
}

func TestSweepStaleSkipsSeen(t *testing.T) {
	repo := newMemRepo()
	tr := New(repo, testLogger())
	ctx := context.Background()

	p1 := testProp(250000)
	p2 := testProp(180000)
	p2.SourceID = "888"

	_, _, err := tr.Observe(ctx, p1, scoresOf(60, 45))
	require.NoError(t, err)
	_, _, err = tr.Observe(ctx, p2, scoresOf(30, 20))
	require.NoError(t, err)

	swept, err := tr.SweepStale(ctx, map[domain.Key]struct{}{p1.Key(): {}})
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	rec, err := repo.Get(ctx, p2.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStale, rec.Status)

	rec, err = repo.Get(ctx, p1.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, rec.Status)
}

func TestRecordAlertsMergesMax(t *testing.T) {
	repo := newMemRepo()
	tr := New(repo, testLogger())
	ctx := context.Background()

	p := testProp(250000)
	_, _, err := tr.Observe(ctx, p, scoresOf(60, 45))
	require.NoError(t, err)

	require.NoError(t, tr.RecordAlerts(ctx, p.Key(), map[domain.StrategyName]int{
		domain.StrategyCashFlow: 60,
	}))
	// Una marca más baja no pisa la existente.
	require.NoError(t, tr.RecordAlerts(ctx, p.Key(), map[domain.StrategyName]int{
		domain.StrategyCashFlow: 50,
		domain.StrategyBRRR:     45,
	}))

	rec, err := repo.Get(ctx, p.Key())
	require.NoError(t, err)
	assert.Equal(t, 60, rec.LastAlerted[domain.StrategyCashFlow])
	assert.Equal(t, 45, rec.LastAlerted[domain.StrategyBRRR])
}

func TestObserveRetriesOnConflict(t *testing.T) {
	repo := newMemRepo()
	repo.failPuts = 2
	tr := New(repo, testLogger())

	class, rec, err := tr.Observe(context.Background(), testProp(250000), scoresOf(60, 45))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassNew, class)
	assert.Equal(t, int64(1), rec.Version)
}

func TestObserveGivesUpAfterRetries(t *testing.T) {
	repo := newMemRepo()
	repo.failPuts = 10
	tr := New(repo, testLogger())

	_, _, err := tr.Observe(context.Background(), testProp(250000), scoresOf(60, 45))
	assert.ErrorIs(t, err, ports.ErrConflict)
}
