// Package storage implementa ports.Repository sobre SQLite (pure Go, sin CGo).
package storage

// sqlite.go — persistencia de deals entre scans.
//
// Estrategia:
//   - `deal_records`: UNA fila por listado, clave (source, source_id).
//     Los mapas (scores, marcas de agua) van como JSON: se leen y escriben
//     siempre completos, no se consultan por dentro.
//   - `price_history`: tabla append-only aparte, para que el registro no
//     crezca sin límite dentro de una sola fila.
//   - CAS optimista: la columna `version` respalda los Put concurrentes.
//   - Prune automático al arrancar: registros stale viejos fuera, historia
//     de precios compactada a los últimos N puntos.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mwmardis/ListingIQ/internal/domain"
	"github.com/mwmardis/ListingIQ/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por listado rastreado
CREATE TABLE IF NOT EXISTS deal_records (
    source        TEXT     NOT NULL,
    source_id     TEXT     NOT NULL,
    property      TEXT     NOT NULL,
    best_scores   TEXT     NOT NULL DEFAULT '{}',
    last_alerted  TEXT     NOT NULL DEFAULT '{}',
    status        TEXT     NOT NULL,
    first_seen_at DATETIME NOT NULL,
    last_seen_at  DATETIME NOT NULL,
    version       INTEGER  NOT NULL,
    PRIMARY KEY (source, source_id)
);

-- Observaciones de precio, append-only
CREATE TABLE IF NOT EXISTS price_history (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    source      TEXT     NOT NULL,
    source_id   TEXT     NOT NULL,
    price_cents INTEGER  NOT NULL,
    observed_at DATETIME NOT NULL
);

-- Alertas emitidas (auditoría)
CREATE TABLE IF NOT EXISTS alerts (
    id             TEXT PRIMARY KEY,
    source         TEXT     NOT NULL,
    source_id      TEXT     NOT NULL,
    strategy       TEXT     NOT NULL,
    score          INTEGER  NOT NULL,
    classification TEXT     NOT NULL,
    metrics        TEXT     NOT NULL DEFAULT '{}',
    created_at     DATETIME NOT NULL
);

-- Resumen ligero por ciclo de scan
CREATE TABLE IF NOT EXISTS cycles (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    scanned_at DATETIME NOT NULL,
    analyzed   INTEGER  NOT NULL DEFAULT 0,
    skipped    INTEGER  NOT NULL DEFAULT 0,
    failed     INTEGER  NOT NULL DEFAULT 0,
    alerted    INTEGER  NOT NULL DEFAULT 0,
    stale      INTEGER  NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_records_status ON deal_records(status, last_seen_at);
CREATE INDEX IF NOT EXISTS idx_history_key    ON price_history(source, source_id, observed_at);
CREATE INDEX IF NOT EXISTS idx_alerts_key     ON alerts(source, source_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_cycles_at      ON cycles(scanned_at DESC);
`

const retentionCycles = 90 * 24 * time.Hour

// RetentionConfig controla el prune de arranque.
type RetentionConfig struct {
	// StaleRetentionDays: los registros stale no vistos en este plazo se borran.
	StaleRetentionDays int `yaml:"stale_retention_days"`
	// MaxHistoryPoints: puntos de precio que se conservan por listado.
	MaxHistoryPoints int `yaml:"max_history_points"`
}

// DefaultRetentionConfig devuelve la retención por defecto.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{StaleRetentionDays: 90, MaxHistoryPoints: 50}
}

// SQLiteRepository implementa ports.Repository.
type SQLiteRepository struct {
	db  *sql.DB
	cfg RetentionConfig
}

var _ ports.Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository abre (o crea) la base en la ruta dada, aplica el
// schema y limpia datos antiguos. Usar ":memory:" para tests.
func NewSQLiteRepository(path string, cfg RetentionConfig) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteRepository: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteRepository: apply schema: %w", err)
	}

	s := &SQLiteRepository{db: db, cfg: cfg}
	s.pruneOld(context.Background())
	return s, nil
}

// Get implementa ports.Repository. Devuelve nil sin error si no existe.
func (s *SQLiteRepository) Get(ctx context.Context, key domain.Key) (*domain.DealRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT property, best_scores, last_alerted, status, first_seen_at, last_seen_at, version
		FROM deal_records WHERE source = ? AND source_id = ?`,
		string(key.Source), key.SourceID)

	var (
		propJSON, scoresJSON, alertedJSON, status string
		firstSeen, lastSeen                       time.Time
		version                                   int64
	)
	err := row.Scan(&propJSON, &scoresJSON, &alertedJSON, &status, &firstSeen, &lastSeen, &version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.Get %s: %w", key, err)
	}

	rec := &domain.DealRecord{
		Key:         key,
		Status:      domain.RecordStatus(status),
		FirstSeenAt: firstSeen.UTC(),
		LastSeenAt:  lastSeen.UTC(),
		Version:     version,
	}
	if err := json.Unmarshal([]byte(propJSON), &rec.Property); err != nil {
		return nil, fmt.Errorf("storage.Get %s: decode property: %w", key, err)
	}
	if err := json.Unmarshal([]byte(scoresJSON), &rec.BestScores); err != nil {
		return nil, fmt.Errorf("storage.Get %s: decode best_scores: %w", key, err)
	}
	if err := json.Unmarshal([]byte(alertedJSON), &rec.LastAlerted); err != nil {
		return nil, fmt.Errorf("storage.Get %s: decode last_alerted: %w", key, err)
	}
	if rec.BestScores == nil {
		rec.BestScores = make(map[domain.StrategyName]int)
	}
	if rec.LastAlerted == nil {
		rec.LastAlerted = make(map[domain.StrategyName]int)
	}

	rec.PriceHistory, err = s.loadHistory(ctx, key)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteRepository) loadHistory(ctx context.Context, key domain.Key) ([]domain.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT price_cents, observed_at FROM price_history
		WHERE source = ? AND source_id = ?
		ORDER BY observed_at, id`,
		string(key.Source), key.SourceID)
	if err != nil {
		return nil, fmt.Errorf("storage.loadHistory %s: %w", key, err)
	}
	defer rows.Close()

	var history []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		var cents int64
		var at time.Time
		if err := rows.Scan(&cents, &at); err != nil {
			return nil, fmt.Errorf("storage.loadHistory %s: scan: %w", key, err)
		}
		p.Price = domain.Cents(cents)
		p.ObservedAt = at.UTC()
		history = append(history, p)
	}
	return history, rows.Err()
}

// Put implementa ports.Repository con CAS sobre version.
func (s *SQLiteRepository) Put(ctx context.Context, rec *domain.DealRecord) error {
	propJSON, err := json.Marshal(rec.Property)
	if err != nil {
		return fmt.Errorf("storage.Put %s: encode property: %w", rec.Key, err)
	}
	scoresJSON, err := json.Marshal(rec.BestScores)
	if err != nil {
		return fmt.Errorf("storage.Put %s: encode best_scores: %w", rec.Key, err)
	}
	alertedJSON, err := json.Marshal(rec.LastAlerted)
	if err != nil {
		return fmt.Errorf("storage.Put %s: encode last_alerted: %w", rec.Key, err)
	}

	if rec.Version == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("storage.Put %s: begin: %w", rec.Key, err)
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, `
			INSERT INTO deal_records
			(source, source_id, property, best_scores, last_alerted, status, first_seen_at, last_seen_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT(source, source_id) DO NOTHING`,
			string(rec.Key.Source), rec.Key.SourceID,
			string(propJSON), string(scoresJSON), string(alertedJSON),
			string(rec.Status), rec.FirstSeenAt.UTC(), rec.LastSeenAt.UTC())
		if err != nil {
			return fmt.Errorf("storage.Put %s: insert: %w", rec.Key, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ports.ErrConflict
		}
		// El primer punto de precio viene dentro del registro nuevo.
		for _, point := range rec.PriceHistory {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO price_history (source, source_id, price_cents, observed_at)
				VALUES (?, ?, ?, ?)`,
				string(rec.Key.Source), rec.Key.SourceID,
				int64(point.Price), point.ObservedAt.UTC()); err != nil {
				return fmt.Errorf("storage.Put %s: insert history: %w", rec.Key, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("storage.Put %s: commit: %w", rec.Key, err)
		}
		rec.Version = 1
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE deal_records
		SET property = ?, best_scores = ?, last_alerted = ?, status = ?,
		    last_seen_at = ?, version = version + 1
		WHERE source = ? AND source_id = ? AND version = ?`,
		string(propJSON), string(scoresJSON), string(alertedJSON),
		string(rec.Status), rec.LastSeenAt.UTC(),
		string(rec.Key.Source), rec.Key.SourceID, rec.Version)
	if err != nil {
		return fmt.Errorf("storage.Put %s: update: %w", rec.Key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ports.ErrConflict
	}
	rec.Version++
	return nil
}

// AppendPrice implementa ports.Repository.
func (s *SQLiteRepository) AppendPrice(ctx context.Context, key domain.Key, point domain.PricePoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_history (source, source_id, price_cents, observed_at)
		VALUES (?, ?, ?, ?)`,
		string(key.Source), key.SourceID, int64(point.Price), point.ObservedAt.UTC())
	if err != nil {
		return fmt.Errorf("storage.AppendPrice %s: %w", key, err)
	}
	return nil
}

// ListActiveKeys implementa ports.Repository.
func (s *SQLiteRepository) ListActiveKeys(ctx context.Context) ([]domain.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, source_id FROM deal_records WHERE status = ?`,
		string(domain.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("storage.ListActiveKeys: %w", err)
	}
	defer rows.Close()

	var keys []domain.Key
	for rows.Next() {
		var source, id string
		if err := rows.Scan(&source, &id); err != nil {
			return nil, fmt.Errorf("storage.ListActiveKeys: scan: %w", err)
		}
		keys = append(keys, domain.Key{Source: domain.Source(source), SourceID: id})
	}
	return keys, rows.Err()
}

// SaveAlert implementa ports.Repository.
func (s *SQLiteRepository) SaveAlert(ctx context.Context, intent domain.AlertIntent) error {
	metricsJSON, err := json.Marshal(intent.Metrics)
	if err != nil {
		return fmt.Errorf("storage.SaveAlert %s: encode metrics: %w", intent.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, source, source_id, strategy, score, classification, metrics, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		intent.ID, string(intent.Property.Source), intent.Property.SourceID,
		string(intent.Strategy), intent.Score, intent.Classification,
		string(metricsJSON), intent.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("storage.SaveAlert %s: %w", intent.ID, err)
	}
	return nil
}

// SaveCycle implementa ports.Repository.
func (s *SQLiteRepository) SaveCycle(ctx context.Context, summary domain.CycleSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles (scanned_at, analyzed, skipped, failed, alerted, stale)
		VALUES (?, ?, ?, ?, ?, ?)`,
		summary.ScannedAt.UTC(), summary.Analyzed, summary.Skipped,
		summary.Failed, summary.Alerted, summary.Stale)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: %w", err)
	}
	return nil
}

// Close implementa ports.Repository.
func (s *SQLiteRepository) Close() error {
	return s.db.Close()
}

// pruneOld borra lo que ya no aporta: registros stale fuera de retención
// (con su historia y alertas), ciclos viejos, e historia de precios por
// encima del máximo de puntos por listado. Best-effort.
func (s *SQLiteRepository) pruneOld(ctx context.Context) {
	staleCutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.StaleRetentionDays)

	s.db.ExecContext(ctx, `
		DELETE FROM price_history WHERE (source, source_id) IN (
			SELECT source, source_id FROM deal_records
			WHERE status = 'stale' AND last_seen_at < ?)`, staleCutoff)
	s.db.ExecContext(ctx, `
		DELETE FROM alerts WHERE (source, source_id) IN (
			SELECT source, source_id FROM deal_records
			WHERE status = 'stale' AND last_seen_at < ?)`, staleCutoff)
	s.db.ExecContext(ctx, `
		DELETE FROM deal_records WHERE status = 'stale' AND last_seen_at < ?`, staleCutoff)

	s.db.ExecContext(ctx, `
		DELETE FROM cycles WHERE scanned_at < ?`,
		time.Now().UTC().Add(-retentionCycles))

	if s.cfg.MaxHistoryPoints > 0 {
		s.db.ExecContext(ctx, `
			DELETE FROM price_history WHERE id IN (
				SELECT id FROM (
					SELECT id, ROW_NUMBER() OVER (
						PARTITION BY source, source_id
						ORDER BY observed_at DESC, id DESC) AS rn
					FROM price_history)
				WHERE rn > ?)`, s.cfg.MaxHistoryPoints)
	}
}
