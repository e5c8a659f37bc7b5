package domain

import "time"

// StrategyName identifica una estrategia de inversión. Set cerrado.
type StrategyName string

const (
	StrategyBRRR     StrategyName = "brrr"
	StrategyCashFlow StrategyName = "cash_flow"
	StrategyFlip     StrategyName = "flip"
)

// DealScore es el resultado de aplicar una estrategia a un Property.
// Metrics contiene solo valores derivados determinísticamente de
// (Property, config): mismo input → mapa bit-idéntico tras el redondeo.
type DealScore struct {
	Strategy   StrategyName       `json:"strategy"`
	Score      int                `json:"score"` // 0-100
	Metrics    map[string]float64 `json:"metrics"`
	ComputedAt time.Time          `json:"computed_at"`
}

// RecordStatus es el estado de ciclo de vida de un DealRecord.
type RecordStatus string

const (
	StatusActive RecordStatus = "active"
	StatusStale  RecordStatus = "stale"
)

// Classification es el veredicto de un scan sobre un listado ya rastreado.
type Classification int

const (
	ClassNew Classification = iota
	ClassUpdatedPrice
	ClassUpdatedScore
	ClassRelisted
	ClassUnchanged
	ClassStale
)

func (c Classification) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassUpdatedPrice:
		return "updated_price"
	case ClassUpdatedScore:
		return "updated_score"
	case ClassRelisted:
		return "relisted"
	case ClassUnchanged:
		return "unchanged"
	case ClassStale:
		return "stale"
	}
	return "unknown"
}

// IsUpdated devuelve true para las variantes UPDATED (precio, score o relist).
func (c Classification) IsUpdated() bool {
	return c == ClassUpdatedPrice || c == ClassUpdatedScore || c == ClassRelisted
}

// PricePoint es una observación de precio, append-only y cronológica.
type PricePoint struct {
	Price      Cents     `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// DealRecord es el agregado persistido por identidad (source, source_id).
// Solo el tracker lo muta; el resto del pipeline lo lee.
type DealRecord struct {
	Key          Key                  `json:"key"`
	Property     Property             `json:"property"`
	PriceHistory []PricePoint         `json:"price_history"`
	BestScores   map[StrategyName]int `json:"best_scores"`
	LastAlerted  map[StrategyName]int `json:"last_alerted"`
	Status       RecordStatus         `json:"status"`
	FirstSeenAt  time.Time            `json:"first_seen_at"`
	LastSeenAt   time.Time            `json:"last_seen_at"`

	// Version es el contador de escrituras para el compare-and-set optimista
	// del repository. 0 = registro nuevo, nunca persistido.
	Version int64 `json:"version"`
}

// LastPrice devuelve el último precio observado, o el del snapshot si no hay historia.
func (r *DealRecord) LastPrice() Cents {
	if n := len(r.PriceHistory); n > 0 {
		return r.PriceHistory[n-1].Price
	}
	return r.Property.Price
}

// AlertIntent es lo que el gate entrega a los channels. Los channels son
// dueños del formato y la entrega; el core no conoce el transporte.
type AlertIntent struct {
	ID             string             `json:"id"`
	Property       Property           `json:"property"`
	Strategy       StrategyName       `json:"strategy"`
	Score          int                `json:"score"`
	Metrics        map[string]float64 `json:"metrics"`
	Classification string             `json:"classification"`
	CreatedAt      time.Time          `json:"created_at"`
}

// CycleSummary es el resumen ligero de un ciclo de scan completo.
type CycleSummary struct {
	ScannedAt time.Time `json:"scanned_at"`
	Analyzed  int       `json:"analyzed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Alerted   int       `json:"alerted"`
	Stale     int       `json:"stale"`
}
