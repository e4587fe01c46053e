// Package ledger implements Ledger (C6): the durable predictions store
// supporting insert, per-timeframe outcome update, and failure ranking,
// backed by a single Postgres database via sqlx.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Config mirrors the teacher's database connection configuration shape.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
	Enabled         bool
}

func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    30 * time.Second,
		Enabled:         false,
	}
}

// Prediction is a single durable row. Timeframe-specific fields are
// nil until the reconciliation auditor fills them in.
type Prediction struct {
	ID                 int64      `db:"id"`
	Timestamp          time.Time  `db:"timestamp"`
	PredictedBias      string     `db:"predicted_bias"`
	PredictedOutcome   string     `db:"predicted_outcome"`
	Confidence         float64    `db:"confidence"`
	MarketRegime       string     `db:"market_regime"`
	Archetype          string     `db:"archetype"`
	Signal             string     `db:"signal"`
	PriceAtPrediction  float64    `db:"price_at_prediction"`
	ActualPrice1h      *float64   `db:"actual_price_1h"`
	ActualPrice4h      *float64   `db:"actual_price_4h"`
	ActualPrice12h     *float64   `db:"actual_price_12h"`
	SuccessScore1h     *float64   `db:"success_score_1h"`
	SuccessScore4h     *float64   `db:"success_score_4h"`
	SuccessScore12h    *float64   `db:"success_score_12h"`
	Audited            bool       `db:"audited"`
	CreatedAt          time.Time  `db:"created_at"`
	CorrelationID      string     `db:"correlation_id"`
}

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id SERIAL PRIMARY KEY,
	timestamp TIMESTAMPTZ NOT NULL,
	predicted_bias TEXT,
	predicted_outcome TEXT,
	confidence DOUBLE PRECISION NOT NULL,
	market_regime TEXT,
	archetype TEXT,
	signal TEXT NOT NULL,
	price_at_prediction DOUBLE PRECISION NOT NULL,
	actual_price_1h DOUBLE PRECISION,
	actual_price_4h DOUBLE PRECISION,
	actual_price_12h DOUBLE PRECISION,
	success_score_1h DOUBLE PRECISION,
	success_score_4h DOUBLE PRECISION,
	success_score_12h DOUBLE PRECISION,
	audited BOOLEAN NOT NULL DEFAULT FALSE,
	correlation_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp);
CREATE INDEX IF NOT EXISTS idx_predictions_audited ON predictions(audited);
`

// Ledger owns the predictions table. Reads/writes serialize through the
// database engine; each mutation is a single statement.
type Ledger struct {
	db     *sqlx.DB
	log    zerolog.Logger
	cfg    Config
}

// Open connects to Postgres, applies the schema, and configures the
// connection pool per cfg.
func Open(cfg Config, log zerolog.Logger) (*Ledger, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger db: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}

	return &Ledger{db: db, log: log.With().Str("component", "ledger").Logger(), cfg: cfg}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Record inserts a new prediction and returns its id.
func (l *Ledger) Record(ctx context.Context, p Prediction) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.QueryTimeout)
	defer cancel()

	var id int64
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO predictions (timestamp, predicted_bias, predicted_outcome, confidence,
			market_regime, archetype, signal, price_at_prediction, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, p.Timestamp, p.PredictedBias, p.PredictedOutcome, p.Confidence,
		p.MarketRegime, p.Archetype, p.Signal, p.PriceAtPrediction, p.CorrelationID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("record prediction: %w", err)
	}
	return id, nil
}

// timeframeColumn maps a timeframe string to its fixed column names,
// avoiding unsafe string interpolation into SQL.
func timeframeColumn(tf string) (actual, score string, hours int, err error) {
	switch tf {
	case "1h":
		return "actual_price_1h", "success_score_1h", 1, nil
	case "4h":
		return "actual_price_4h", "success_score_4h", 4, nil
	case "12h":
		return "actual_price_12h", "success_score_12h", 12, nil
	default:
		return "", "", 0, fmt.Errorf("unknown timeframe %q", tf)
	}
}

// SetActualPrice records the observed price for a given timeframe.
func (l *Ledger) SetActualPrice(ctx context.Context, id int64, timeframe string, price float64) error {
	col, _, _, err := timeframeColumn(timeframe)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, l.cfg.QueryTimeout)
	defer cancel()

	query := fmt.Sprintf(`UPDATE predictions SET %s = $1 WHERE id = $2`, col)
	_, err = l.db.ExecContext(ctx, query, price, id)
	if err != nil {
		return fmt.Errorf("set actual price: %w", err)
	}
	return nil
}

// SetScore records the success score for a given timeframe, then marks
// the row audited once all three timeframes are present.
func (l *Ledger) SetScore(ctx context.Context, id int64, timeframe string, score float64) error {
	_, col, _, err := timeframeColumn(timeframe)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, l.cfg.QueryTimeout)
	defer cancel()

	query := fmt.Sprintf(`UPDATE predictions SET %s = $1 WHERE id = $2`, col)
	if _, err := l.db.ExecContext(ctx, query, score, id); err != nil {
		return fmt.Errorf("set score: %w", err)
	}

	fullyAudited, err := l.isFullyAudited(ctx, id)
	if err != nil {
		return err
	}
	if fullyAudited {
		return l.markAuditedLocked(ctx, id)
	}
	return nil
}

func (l *Ledger) isFullyAudited(ctx context.Context, id int64) (bool, error) {
	var count int
	err := l.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM predictions
		WHERE id = $1
		AND success_score_1h IS NOT NULL
		AND success_score_4h IS NOT NULL
		AND success_score_12h IS NOT NULL
	`, id)
	if err != nil {
		return false, fmt.Errorf("check fully audited: %w", err)
	}
	return count == 1, nil
}

func (l *Ledger) markAuditedLocked(ctx context.Context, id int64) error {
	_, err := l.db.ExecContext(ctx, `UPDATE predictions SET audited = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark audited: %w", err)
	}
	return nil
}

// Unaudited returns rows at least minAgeHours old whose score for the
// given timeframe is still null, newest first, capped at 100.
func (l *Ledger) Unaudited(ctx context.Context, timeframe string, minAgeHours int) ([]Prediction, error) {
	_, scoreCol, _, err := timeframeColumn(timeframe)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, l.cfg.QueryTimeout)
	defer cancel()

	cutoff := time.Now().Add(-time.Duration(minAgeHours) * time.Hour)
	query := fmt.Sprintf(`
		SELECT * FROM predictions
		WHERE timestamp <= $1 AND %s IS NULL
		ORDER BY timestamp DESC
		LIMIT 100
	`, scoreCol)

	var rows []Prediction
	if err := l.db.SelectContext(ctx, &rows, query, cutoff); err != nil {
		return nil, fmt.Errorf("unaudited: %w", err)
	}
	return rows, nil
}

// Failed returns up to limit scored predictions with confidence at least
// minConfidence, lowest average score first (the mean of the three
// timeframe scores, a missing score counting as 0), used by
// EvolutionaryMutator.
func (l *Ledger) Failed(ctx context.Context, limit int, minConfidence float64) ([]Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.QueryTimeout)
	defer cancel()

	var rows []Prediction
	err := l.db.Unsafe().SelectContext(ctx, &rows, `
		SELECT *,
			(COALESCE(success_score_1h, 0) + COALESCE(success_score_4h, 0) + COALESCE(success_score_12h, 0)) / 3 AS avg_score
		FROM predictions
		WHERE confidence >= $1
		AND (success_score_1h IS NOT NULL OR success_score_4h IS NOT NULL OR success_score_12h IS NOT NULL)
		ORDER BY avg_score ASC
		LIMIT $2
	`, minConfidence, limit)
	if err != nil {
		return nil, fmt.Errorf("failed predictions: %w", err)
	}
	return rows, nil
}

// Statistics mirrors the original's ledger-level statistics surface.
type Statistics struct {
	TotalPredictions   int
	AuditedPredictions int
	PendingAudit       int
	AvgScore1h         float64
	AvgScore4h         float64
	AvgScore12h        float64
}

func (l *Ledger) Statistics(ctx context.Context) (Statistics, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.QueryTimeout)
	defer cancel()

	var stats Statistics
	if err := l.db.GetContext(ctx, &stats.TotalPredictions, `SELECT COUNT(*) FROM predictions`); err != nil {
		return stats, fmt.Errorf("count predictions: %w", err)
	}
	if err := l.db.GetContext(ctx, &stats.AuditedPredictions, `SELECT COUNT(*) FROM predictions WHERE audited = TRUE`); err != nil {
		return stats, fmt.Errorf("count audited: %w", err)
	}
	stats.PendingAudit = stats.TotalPredictions - stats.AuditedPredictions

	row := struct {
		Avg1h  *float64 `db:"avg_1h"`
		Avg4h  *float64 `db:"avg_4h"`
		Avg12h *float64 `db:"avg_12h"`
	}{}
	err := l.db.GetContext(ctx, &row, `
		SELECT AVG(success_score_1h) AS avg_1h, AVG(success_score_4h) AS avg_4h, AVG(success_score_12h) AS avg_12h
		FROM predictions WHERE success_score_1h IS NOT NULL
	`)
	if err != nil {
		return stats, fmt.Errorf("average scores: %w", err)
	}
	if row.Avg1h != nil {
		stats.AvgScore1h = *row.Avg1h
	}
	if row.Avg4h != nil {
		stats.AvgScore4h = *row.Avg4h
	}
	if row.Avg12h != nil {
		stats.AvgScore12h = *row.Avg12h
	}
	return stats, nil
}
