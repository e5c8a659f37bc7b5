// Package tracker mantiene el estado de cada deal entre scans: clasifica
// cada observación (nuevo, actualizado, sin cambios, stale) y persiste el
// registro con escrituras compare-and-set.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mwmardis/ListingIQ/internal/domain"
	"github.com/mwmardis/ListingIQ/internal/ports"
)

// maxRetries limita los reintentos por conflicto de versión en un Put.
const maxRetries = 3

// Tracker es el único componente que muta DealRecords.
type Tracker struct {
	repo ports.Repository
	log  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New crea un Tracker sobre el repository dado.
func New(repo ports.Repository, log *slog.Logger) *Tracker {
	return &Tracker{
		repo:  repo,
		log:   log.With("component", "tracker"),
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor devuelve el mutex por clave, para serializar observaciones del
// mismo listado dentro de un ciclo (fuentes duplicadas, workers concurrentes).
func (t *Tracker) lockFor(key domain.Key) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key.String()]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key.String()] = l
	}
	return l
}

// Observe registra una observación del listado con sus scores del ciclo y
// devuelve la clasificación más el registro ya persistido.
//
// Prioridad de clasificación: nuevo > relistado > cambio de precio >
// mejora de score > sin cambios. BestScores siempre absorbe el máximo
// por estrategia, gane quien gane la clasificación.
func (t *Tracker) Observe(ctx context.Context, p domain.Property, scores []domain.DealScore) (domain.Classification, *domain.DealRecord, error) {
	key := p.Key()
	l := t.lockFor(key)
	l.Lock()
	defer l.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		rec, err := t.repo.Get(ctx, key)
		if err != nil {
			return 0, nil, fmt.Errorf("tracker: get %s: %w", key, err)
		}

		now := time.Now().UTC()
		var class domain.Classification
		if rec == nil {
			class = domain.ClassNew
			rec = &domain.DealRecord{
				Key:          key,
				Property:     p,
				PriceHistory: []domain.PricePoint{{Price: p.Price, ObservedAt: now}},
				BestScores:   make(map[domain.StrategyName]int),
				LastAlerted:  make(map[domain.StrategyName]int),
				Status:       domain.StatusActive,
				FirstSeenAt:  now,
			}
		} else {
			class = t.classify(rec, p, scores)
			if p.Price != rec.LastPrice() {
				point := domain.PricePoint{Price: p.Price, ObservedAt: now}
				rec.PriceHistory = append(rec.PriceHistory, point)
				if err := t.repo.AppendPrice(ctx, key, point); err != nil {
					return 0, nil, fmt.Errorf("tracker: append price %s: %w", key, err)
				}
			}
			rec.Status = domain.StatusActive
			rec.Property = p
		}
		rec.LastSeenAt = now
		if rec.BestScores == nil {
			rec.BestScores = make(map[domain.StrategyName]int)
		}
		if rec.LastAlerted == nil {
			rec.LastAlerted = make(map[domain.StrategyName]int)
		}
		for _, s := range scores {
			if s.Score > rec.BestScores[s.Strategy] {
				rec.BestScores[s.Strategy] = s.Score
			}
		}

		err = t.repo.Put(ctx, rec)
		if err == nil {
			return class, rec, nil
		}
		if !errors.Is(err, ports.ErrConflict) {
			return 0, nil, fmt.Errorf("tracker: put %s: %w", key, err)
		}
		lastErr = err
		t.log.Debug("conflicto de versión, reintentando", "key", key.String(), "attempt", attempt+1)
	}
	return 0, nil, fmt.Errorf("tracker: put %s: agotados los reintentos: %w", key, lastErr)
}

func (t *Tracker) classify(rec *domain.DealRecord, p domain.Property, scores []domain.DealScore) domain.Classification {
	if rec.Status == domain.StatusStale {
		return domain.ClassRelisted
	}
	if p.Price != rec.LastPrice() {
		return domain.ClassUpdatedPrice
	}
	for _, s := range scores {
		if s.Score > rec.BestScores[s.Strategy] {
			return domain.ClassUpdatedScore
		}
	}
	return domain.ClassUnchanged
}

// RecordAlerts persiste las marcas de agua de alerta tras un envío exitoso.
// En conflicto se fusiona por máximo: una marca de agua nunca baja.
func (t *Tracker) RecordAlerts(ctx context.Context, key domain.Key, alerted map[domain.StrategyName]int) error {
	l := t.lockFor(key)
	l.Lock()
	defer l.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		rec, err := t.repo.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("tracker: get %s: %w", key, err)
		}
		if rec == nil {
			return fmt.Errorf("tracker: record alerts %s: registro inexistente", key)
		}
		if rec.LastAlerted == nil {
			rec.LastAlerted = make(map[domain.StrategyName]int)
		}
		for strat, score := range alerted {
			if score > rec.LastAlerted[strat] {
				rec.LastAlerted[strat] = score
			}
		}

		err = t.repo.Put(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ports.ErrConflict) {
			return fmt.Errorf("tracker: put %s: %w", key, err)
		}
		lastErr = err
	}
	return fmt.Errorf("tracker: record alerts %s: agotados los reintentos: %w", key, lastErr)
}

// SweepStale marca como stale todo registro activo que el ciclo no volvió a
// ver. Devuelve cuántos registros pasaron a stale.
func (t *Tracker) SweepStale(ctx context.Context, seen map[domain.Key]struct{}) (int, error) {
	keys, err := t.repo.ListActiveKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("tracker: list active: %w", err)
	}

	swept := 0
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		if err := t.markStale(ctx, key); err != nil {
			t.log.Warn("no se pudo marcar stale", "key", key.String(), "error", err)
			continue
		}
		swept++
	}
	return swept, nil
}

func (t *Tracker) markStale(ctx context.Context, key domain.Key) error {
	l := t.lockFor(key)
	l.Lock()
	defer l.Unlock()

	for attempt := 0; attempt < maxRetries; attempt++ {
		rec, err := t.repo.Get(ctx, key)
		if err != nil {
			return err
		}
		if rec == nil || rec.Status == domain.StatusStale {
			return nil
		}
		rec.Status = domain.StatusStale
		err = t.repo.Put(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ports.ErrConflict) {
			return err
		}
	}
	return ports.ErrConflict
}
