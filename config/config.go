package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mwmardis/ListingIQ/internal/adapters/storage"
	"github.com/mwmardis/ListingIQ/internal/application/alert"
	"github.com/mwmardis/ListingIQ/internal/domain/strategy"
	"github.com/mwmardis/ListingIQ/internal/ports"
)

// Config es la configuración completa del scanner.
type Config struct {
	Scanner    ScannerConfig           `yaml:"scanner"`
	Search     ports.SearchFilter      `yaml:"search"`
	Sources    SourcesConfig           `yaml:"sources"`
	Strategies StrategiesConfig        `yaml:"strategies"`
	Offer      strategy.OfferConfig    `yaml:"offer"`
	Alerts     AlertsConfig            `yaml:"alerts"`
	Storage    StorageConfig           `yaml:"storage"`
	Log        LogConfig               `yaml:"log"`
}

// ScannerConfig controla el loop de escaneo.
type ScannerConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
	AnalysisWorkers int `yaml:"analysis_workers"` // 0 = NumCPU*2
}

// SourcesConfig controla qué fuentes se consultan.
type SourcesConfig struct {
	Redfin RedfinConfig `yaml:"redfin"`
	// FixturePath carga listados de un archivo JSON en vez de la red.
	FixturePath string `yaml:"fixture_path"`
}

// RedfinConfig configura el adapter de Redfin.
type RedfinConfig struct {
	Enabled bool   `yaml:"enabled"`
	Base    string `yaml:"base"` // vacío = producción
}

// StrategiesConfig agrupa la configuración de las tres estrategias.
type StrategiesConfig struct {
	CashFlow strategy.CashFlowConfig `yaml:"cash_flow"`
	BRRR     strategy.BRRRConfig     `yaml:"brrr"`
	Flip     strategy.FlipConfig     `yaml:"flip"`
}

// AlertsConfig configura el gate y los canales de salida.
type AlertsConfig struct {
	Gate        alert.Config `yaml:"gate"`
	WebhookURLs []string     `yaml:"webhook_urls"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN       string                  `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
	Retention storage.RetentionConfig `yaml:"retention"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Los defaults se aplican primero y el YAML pisa solo lo presente,
// así un archivo parcial sigue siendo válido.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Default devuelve la configuración por defecto completa, lista para usar
// sin archivo (tests, dry-runs).
func Default() *Config {
	return defaults()
}

func defaults() *Config {
	return &Config{
		Scanner: ScannerConfig{IntervalMinutes: 30},
		Search: ports.SearchFilter{
			MinPrice: 50000,
			MaxPrice: 500000,
		},
		Sources: SourcesConfig{
			Redfin: RedfinConfig{Enabled: true},
		},
		Strategies: StrategiesConfig{
			CashFlow: strategy.DefaultCashFlowConfig(),
			BRRR:     strategy.DefaultBRRRConfig(),
			Flip:     strategy.DefaultFlipConfig(),
		},
		Offer:  strategy.DefaultOfferConfig(),
		Alerts: AlertsConfig{Gate: alert.DefaultConfig()},
		Storage: StorageConfig{
			DSN:       "listingiq.db",
			Retention: storage.DefaultRetentionConfig(),
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// ScanInterval devuelve el intervalo de escaneo como time.Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scanner.IntervalMinutes) * time.Minute
}

// Validate verifica lo que el YAML puede romper: escalas no monótonas,
// intervalos sin sentido, región ausente con fuentes de red activas.
func (c *Config) Validate() error {
	if c.Scanner.IntervalMinutes <= 0 {
		return fmt.Errorf("scanner.interval_minutes debe ser positivo")
	}
	if c.Sources.Redfin.Enabled && c.Sources.FixturePath == "" && c.Search.Region == "" {
		return fmt.Errorf("search.region es requerido con fuentes de red activas")
	}

	scales := map[string]strategy.Scale{
		"cash_flow.cash_flow_scale":    c.Strategies.CashFlow.CashFlowScale,
		"cash_flow.cap_rate_scale":     c.Strategies.CashFlow.CapRateScale,
		"cash_flow.cash_on_cash_scale": c.Strategies.CashFlow.CoCScale,
		"cash_flow.dscr_scale":         c.Strategies.CashFlow.DSCRScale,
		"cash_flow.grm_scale":          c.Strategies.CashFlow.GRMScale,
		"brrr.cash_on_cash_scale":      c.Strategies.BRRR.CoCScale,
		"brrr.cash_flow_scale":         c.Strategies.BRRR.CashFlowScale,
		"brrr.equity_scale":            c.Strategies.BRRR.EquityScale,
		"flip.profit_scale":            c.Strategies.Flip.ProfitScale,
		"flip.roi_scale":               c.Strategies.Flip.ROIScale,
		"flip.profit_per_month_scale":  c.Strategies.Flip.ProfitPerMonScale,
		"flip.arv_spread_scale":        c.Strategies.Flip.SpreadScale,
	}
	for name, s := range scales {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("strategies.%s: %w", name, err)
		}
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LISTINGIQ_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}
