package alert

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwmardis/ListingIQ/internal/domain"
	"github.com/mwmardis/ListingIQ/internal/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecord(lastAlerted map[domain.StrategyName]int) *domain.DealRecord {
	if lastAlerted == nil {
		lastAlerted = make(map[domain.StrategyName]int)
	}
	return &domain.DealRecord{
		Key: domain.Key{Source: domain.SourceRedfin, SourceID: "42"},
		Property: domain.Property{
			Source:   domain.SourceRedfin,
			SourceID: "42",
			Address:  "9 Gate St",
			Price:    domain.CentsFromDollars(200000),
		},
		LastAlerted: lastAlerted,
		Status:      domain.StatusActive,
	}
}

func score(s domain.StrategyName, v int) domain.DealScore {
	return domain.DealScore{Strategy: s, Score: v, ComputedAt: time.Now()}
}

func TestDecideNewAlertsQualifying(t *testing.T) {
	g := NewGate(Config{MinDealScore: 60, ImprovementMargin: 5})
	rec := testRecord(nil)

	intents := g.Decide(rec, domain.ClassNew, []domain.DealScore{
		score(domain.StrategyCashFlow, 72),
		score(domain.StrategyBRRR, 40), // bajo el mínimo
		score(domain.StrategyFlip, 60), // justo en el mínimo
	})

	require.Len(t, intents, 2)
	assert.Equal(t, domain.StrategyCashFlow, intents[0].Strategy)
	assert.Equal(t, domain.StrategyFlip, intents[1].Strategy)
	assert.Equal(t, "new", intents[0].Classification)
	assert.NotEmpty(t, intents[0].ID)
	assert.NotEqual(t, intents[0].ID, intents[1].ID)
}

func TestDecideUnchangedNeverAlerts(t *testing.T) {
	g := NewGate(DefaultConfig())
	rec := testRecord(nil)

	intents := g.Decide(rec, domain.ClassUnchanged, []domain.DealScore{
		score(domain.StrategyCashFlow, 95),
	})
	assert.Empty(t, intents)

	intents = g.Decide(rec, domain.ClassStale, []domain.DealScore{
		score(domain.StrategyCashFlow, 95),
	})
	assert.Empty(t, intents)
}

func TestDecideAllBelowMinimum(t *testing.T) {
	g := NewGate(Config{MinDealScore: 60, ImprovementMargin: 5})
	rec := testRecord(nil)

	intents := g.Decide(rec, domain.ClassNew, []domain.DealScore{
		score(domain.StrategyCashFlow, 59),
		score(domain.StrategyBRRR, 12),
	})
	assert.Empty(t, intents)
}

func TestDecideUpdatedRequiresMargin(t *testing.T) {
	g := NewGate(Config{MinDealScore: 60, ImprovementMargin: 5})
	rec := testRecord(map[domain.StrategyName]int{domain.StrategyCashFlow: 70})

	// 73 < 70+5: no alerta.
	intents := g.Decide(rec, domain.ClassUpdatedScore, []domain.DealScore{
		score(domain.StrategyCashFlow, 73),
	})
	assert.Empty(t, intents)

	// 75 >= 70+5: alerta.
	intents = g.Decide(rec, domain.ClassUpdatedPrice, []domain.DealScore{
		score(domain.StrategyCashFlow, 75),
	})
	require.Len(t, intents, 1)
	assert.Equal(t, 75, intents[0].Score)
}

func TestDecideUpdatedWithoutWatermark(t *testing.T) {
	// Nunca alertó: marca de agua 0, así que cualquier score >= max(min, margen) pasa.
	g := NewGate(Config{MinDealScore: 60, ImprovementMargin: 5})
	rec := testRecord(nil)

	intents := g.Decide(rec, domain.ClassUpdatedPrice, []domain.DealScore{
		score(domain.StrategyCashFlow, 61),
	})
	require.Len(t, intents, 1)
}

func TestDecideRelistedIgnoresWatermark(t *testing.T) {
	g := NewGate(Config{MinDealScore: 60, ImprovementMargin: 5})
	rec := testRecord(map[domain.StrategyName]int{domain.StrategyCashFlow: 80})

	// Relistado se trata como nuevo: alerta aunque no supere la marca + margen.
	intents := g.Decide(rec, domain.ClassRelisted, []domain.DealScore{
		score(domain.StrategyCashFlow, 65),
	})
	require.Len(t, intents, 1)
	assert.Equal(t, "relisted", intents[0].Classification)
}

// recordingChannel acumula las alertas entregadas.
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

func TestDispatcherDeliversAndDrains(t *testing.T) {
	ch := &recordingChannel{}
	d := NewDispatcher([]ports.Channel{ch}, testLogger())

	for i := 0; i < 5; i++ {
		d.Enqueue(domain.AlertIntent{ID: uuid.NewString(), Strategy: domain.StrategyCashFlow})
	}
	d.Stop()

	ch.mu.Lock()
	defer ch.mu.Unlock()
	assert.Len(t, ch.intents, 5)
}
