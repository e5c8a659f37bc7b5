package scanner

// concurrent.go — worker pool para análisis paralelo de listados.
//
// Las fórmulas son puras y baratas, pero un mercado grande trae cientos de
// listados por fuente; el pool mantiene el ciclo por debajo del intervalo
// de scan sin complicar el código de las estrategias.

import (
	"context"
	"runtime"
	"sync"

	"github.com/mwmardis/ListingIQ/internal/domain"
)

// analysis es el resultado de analizar un listado.
type analysis struct {
	property domain.Property
	scores   []domain.DealScore
	err      error
}

// analyzeConcurrent analiza todos los listados en paralelo.
// Si workers <= 0 usa runtime.NumCPU() × 2.
func analyzeConcurrent(ctx context.Context, analyzer *Analyzer, props []domain.Property, workers int) []analysis {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	workCh := make(chan domain.Property, len(props))
	resultCh := make(chan analysis, len(props))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range workCh {
				scores, err := analyzer.Analyze(ctx, p)
				resultCh <- analysis{property: p, scores: scores, err: err}
			}
		}()
	}

	for _, p := range props {
		workCh <- p
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]analysis, 0, len(props))
	for r := range resultCh {
		results = append(results, r)
	}
	return results
}
