// Package notify implementa los ports.Channel de salida de alertas.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/mwmardis/ListingIQ/internal/domain"
)

// Console implementa ports.Channel escribiendo alertas legibles a stdout.
type Console struct {
	out io.Writer
}

// NewConsole crea el canal de consola.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea el canal sobre un writer arbitrario, para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Name implementa ports.Channel.
func (c *Console) Name() string { return "console" }

// Deliver implementa ports.Channel: cabecera con el deal y tabla de métricas.
func (c *Console) Deliver(_ context.Context, intent domain.AlertIntent) error {
	p := intent.Property
	fmt.Fprintf(c.out, "\n═══ DEAL ALERT [%s] %s ═══\n",
		strings.ToUpper(string(intent.Strategy)), strings.ToUpper(intent.Classification))
	fmt.Fprintf(c.out, "  %s\n", p.FullAddress())
	fmt.Fprintf(c.out, "  %s | %db/%.1fba | %d sqft | %s\n",
		p.Price, p.Beds, p.Baths, p.Sqft, p.Source)
	fmt.Fprintf(c.out, "  Score: %d/100\n", intent.Score)
	if p.URL != "" {
		fmt.Fprintf(c.out, "  %s\n", p.URL)
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	for _, name := range sortedMetricNames(intent.Metrics) {
		table.Append(name, formatMetric(name, intent.Metrics[name]))
	}
	table.Render()
	return nil
}

func sortedMetricNames(metrics map[string]float64) []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// formatMetric decide el formato por el nombre: los ratios conocidos van
// sin símbolo de dólar, el resto son montos.
func formatMetric(name string, v float64) string {
	switch name {
	case "cap_rate", "cash_on_cash", "roi":
		return fmt.Sprintf("%.2f%%", v)
	case "dscr", "grm", "capital_recovery", "offer_discount":
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}
