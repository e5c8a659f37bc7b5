// Package scanner orquesta el ciclo completo: fetch de todas las fuentes,
// normalización, análisis concurrente, tracking, decisión de alertas y
// barrido de listados desaparecidos.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mwmardis/ListingIQ/internal/application/alert"
	"github.com/mwmardis/ListingIQ/internal/application/tracker"
	"github.com/mwmardis/ListingIQ/internal/domain"
	"github.com/mwmardis/ListingIQ/internal/normalize"
	"github.com/mwmardis/ListingIQ/internal/ports"
)

// Config contiene la configuración del scanner.
type Config struct {
	ScanInterval    time.Duration
	Filter          ports.SearchFilter
	AnalysisWorkers int // goroutines para análisis paralelo (0 = NumCPU*2)
	Once            bool
}

// Scanner es el orquestador principal del loop de escaneo.
type Scanner struct {
	cfg        Config
	sources    []ports.SourceAdapter
	repo       ports.Repository
	tracker    *tracker.Tracker
	gate       *alert.Gate
	dispatcher *alert.Dispatcher
	analyzer   *Analyzer
	log        *slog.Logger
}

// New crea un Scanner con todas las dependencias inyectadas.
// Las estrategias se inyectan desde cmd/ vía el Analyzer.
func New(
	cfg Config,
	sources []ports.SourceAdapter,
	repo ports.Repository,
	tr *tracker.Tracker,
	gate *alert.Gate,
	dispatcher *alert.Dispatcher,
	analyzer *Analyzer,
	log *slog.Logger,
) *Scanner {
	return &Scanner{
		cfg:        cfg,
		sources:    sources,
		repo:       repo,
		tracker:    tr,
		gate:       gate,
		dispatcher: dispatcher,
		analyzer:   analyzer,
		log:        log.With("component", "scanner"),
	}
}

// Run ejecuta el loop de escaneo hasta que el contexto se cancele.
// Con cfg.Once solo corre un ciclo.
func (s *Scanner) Run(ctx context.Context) error {
	s.log.Info("scanner arrancando",
		"interval", s.cfg.ScanInterval,
		"once", s.cfg.Once,
		"sources", len(s.sources),
		"workers", s.cfg.AnalysisWorkers)

	if err := s.RunCycle(ctx); err != nil {
		s.log.Error("ciclo de scan falló", "error", err)
		if s.cfg.Once {
			return err
		}
	}
	if s.cfg.Once {
		return nil
	}

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scanner detenido")
			return nil
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				s.log.Error("ciclo de scan falló", "error", err)
			}
		}
	}
}

// RunCycle ejecuta exactamente un ciclo completo.
func (s *Scanner) RunCycle(ctx context.Context) error {
	start := time.Now()
	summary := domain.CycleSummary{ScannedAt: start.UTC()}

	raws, sourcesUp, err := s.fetchAll(ctx)
	if err != nil {
		return err
	}

	props, skipped := s.normalizeAll(raws)
	summary.Skipped = skipped

	results := analyzeConcurrent(ctx, s.analyzer, props, s.cfg.AnalysisWorkers)

	seen := make(map[domain.Key]struct{}, len(results))
	for _, r := range results {
		if r.err != nil {
			summary.Failed++
			s.log.Warn("análisis falló", "key", r.property.Key().String(), "error", r.err)
			continue
		}
		summary.Analyzed++
		seen[r.property.Key()] = struct{}{}

		alerted, err := s.processResult(ctx, r)
		if err != nil {
			summary.Failed++
			s.log.Warn("procesamiento falló", "key", r.property.Key().String(), "error", err)
			continue
		}
		summary.Alerted += alerted
	}

	// Solo se barre si todas las fuentes respondieron: con una fuente caída
	// no se puede distinguir "desapareció" de "no lo vimos".
	if sourcesUp == len(s.sources) {
		stale, err := s.tracker.SweepStale(ctx, seen)
		if err != nil {
			s.log.Warn("barrido de stale falló", "error", err)
		}
		summary.Stale = stale
	} else {
		s.log.Warn("barrido de stale omitido por fuentes caídas",
			"up", sourcesUp, "total", len(s.sources))
	}

	if err := s.repo.SaveCycle(ctx, summary); err != nil {
		s.log.Warn("no se pudo guardar el resumen del ciclo", "error", err)
	}

	s.log.Info("ciclo de scan completo",
		"analyzed", summary.Analyzed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"alerted", summary.Alerted,
		"stale", summary.Stale,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// fetchAll consulta todas las fuentes en paralelo. Una fuente caída se
// tolera; si caen todas, el ciclo aborta.
func (s *Scanner) fetchAll(ctx context.Context) ([]ports.RawListing, int, error) {
	type fetchResult struct {
		listings []ports.RawListing
		err      error
		source   domain.Source
	}

	resultCh := make(chan fetchResult, len(s.sources))
	var wg sync.WaitGroup
	for _, src := range s.sources {
		wg.Add(1)
		go func(src ports.SourceAdapter) {
			defer wg.Done()
			listings, err := src.Fetch(ctx, s.cfg.Filter)
			resultCh <- fetchResult{listings: listings, err: err, source: src.Source()}
		}(src)
	}
	wg.Wait()
	close(resultCh)

	var raws []ports.RawListing
	up := 0
	for r := range resultCh {
		if r.err != nil {
			s.log.Warn("fuente caída en este ciclo", "source", r.source, "error", r.err)
			continue
		}
		up++
		raws = append(raws, r.listings...)
	}
	if up == 0 {
		return nil, 0, fmt.Errorf("scanner.fetchAll: todas las fuentes fallaron")
	}
	return raws, up, nil
}

// normalizeAll convierte los crudos a Property, descartando los inválidos
// y deduplicando por clave (gana la primera aparición).
func (s *Scanner) normalizeAll(raws []ports.RawListing) ([]domain.Property, int) {
	now := time.Now().UTC()
	props := make([]domain.Property, 0, len(raws))
	dedup := make(map[domain.Key]struct{}, len(raws))
	skipped := 0

	for _, raw := range raws {
		p, err := normalize.Listing(raw, now)
		if err != nil {
			skipped++
			s.log.Debug("listado descartado", "source", raw.Source, "error", err)
			continue
		}
		if _, dup := dedup[p.Key()]; dup {
			continue
		}
		dedup[p.Key()] = struct{}{}
		props = append(props, p)
	}
	return props, skipped
}

// processResult registra la observación, decide alertas y las despacha.
// Devuelve cuántas alertas se emitieron para el listado.
func (s *Scanner) processResult(ctx context.Context, r analysis) (int, error) {
	class, rec, err := s.tracker.Observe(ctx, r.property, r.scores)
	if err != nil {
		return 0, err
	}

	intents := s.gate.Decide(rec, class, r.scores)
	if len(intents) == 0 {
		return 0, nil
	}

	alerted := make(map[domain.StrategyName]int, len(intents))
	for _, intent := range intents {
		if err := s.repo.SaveAlert(ctx, intent); err != nil {
			s.log.Warn("no se pudo persistir la alerta", "alert_id", intent.ID, "error", err)
		}
		s.dispatcher.Enqueue(intent)
		alerted[intent.Strategy] = intent.Score
	}

	// La marca de agua se registra tras encolar: si esto falla, el peor caso
	// es una alerta repetida en el próximo ciclo, nunca una perdida.
	if err := s.tracker.RecordAlerts(ctx, rec.Key, alerted); err != nil {
		return len(intents), err
	}
	return len(intents), nil
}
