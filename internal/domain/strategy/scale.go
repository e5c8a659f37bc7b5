package strategy

// scale.go — mapeo configurable de métrica → sub-score.
//
// Cada métrica se mapea a puntos mediante una tabla de umbrales (Band).
// Las tablas vienen de la config y son tunables; los defaults viven junto a
// cada estrategia. La validación exige monotonía para que "mejor métrica"
// nunca pueda bajar el score.

import "fmt"

// Band asigna puntos cuando la métrica alcanza el umbral.
type Band struct {
	Threshold float64 `yaml:"threshold"`
	Points    float64 `yaml:"points"`
}

// Scale es una tabla de bandas ordenada de mejor a peor.
// En modo normal gana la primera banda con valor >= threshold;
// con LowerIsBetter gana la primera con valor <= threshold (GRM, cash left).
type Scale struct {
	Bands         []Band `yaml:"bands"`
	LowerIsBetter bool   `yaml:"lower_is_better,omitempty"`
}

// Eval devuelve los puntos de la primera banda que el valor satisface, o 0.
func (s Scale) Eval(v float64) float64 {
	for _, b := range s.Bands {
		if s.LowerIsBetter {
			if v <= b.Threshold {
				return b.Points
			}
		} else if v >= b.Threshold {
			return b.Points
		}
	}
	return 0
}

// MaxPoints devuelve el techo de la escala (los puntos de la mejor banda).
func (s Scale) MaxPoints() float64 {
	max := 0.0
	for _, b := range s.Bands {
		if b.Points > max {
			max = b.Points
		}
	}
	return max
}

// Validate verifica que la tabla sea monótona: umbrales y puntos
// estrictamente decrecientes (o umbrales crecientes con LowerIsBetter).
func (s Scale) Validate() error {
	for i := 1; i < len(s.Bands); i++ {
		prev, cur := s.Bands[i-1], s.Bands[i]
		if cur.Points >= prev.Points {
			return fmt.Errorf("scale: points must decrease (band %d: %.1f >= %.1f)", i, cur.Points, prev.Points)
		}
		if s.LowerIsBetter {
			if cur.Threshold <= prev.Threshold {
				return fmt.Errorf("scale: thresholds must increase for lower-is-better (band %d)", i)
			}
		} else if cur.Threshold >= prev.Threshold {
			return fmt.Errorf("scale: thresholds must decrease (band %d)", i)
		}
	}
	return nil
}

// clampPoints recorta un sub-score al rango [0, max].
func clampPoints(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// finalScore redondea la suma de sub-scores a entero (half-up) en [0, 100].
func finalScore(points float64) int {
	score := int(points + 0.5)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
