package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"docwatch/internal/models"

	"github.com/klauspost/compress/zstd"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// timeLayout is fixed-width so that created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// PostgresConfig holds connection details for the postgres driver.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"` // "disable", "require"
}

// DSN renders the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
}

// RunRecord is the index entry of a persisted run.
type RunRecord struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	TableCount    int       `json:"table_count"`
	FailedCount   int       `json:"failed_count"`
	Modifications int       `json:"modifications"`
	SystemRisk    float64   `json:"system_risk"`
	Quality       float64   `json:"quality"`
	Degraded      bool      `json:"degraded"`
}

// Store persists score sets and clustered heatmaps. Payloads are stored as
// zstd-compressed JSON next to a small queryable index row.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

// Open connects to driver ("sqlite" or "postgres") and creates the schema
// if needed.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// One connection keeps pragmas and in-memory databases consistent.
		db.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA cache_size=-16000", // 16MB cache
		}
		if dsn != ":memory:" {
			pragmas = append([]string{"PRAGMA journal_mode=WAL"}, pragmas...)
		}
		for _, pragma := range pragmas {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to set pragma: %w", err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:     db,
		driver: driver,
		logger: logger.With("component", "store"),
		enc:    enc,
		dec:    dec,
	}
	if err := s.initializeSchema(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initializeSchema(ctx context.Context) error {
	blob := "BLOB"
	if s.driver == DriverPostgres {
		blob = "BYTEA"
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			table_count INTEGER NOT NULL,
			failed_count INTEGER NOT NULL,
			modifications INTEGER NOT NULL,
			system_risk DOUBLE PRECISION NOT NULL,
			quality DOUBLE PRECISION NOT NULL,
			degraded INTEGER NOT NULL DEFAULT 0,
			score_set ` + blob + ` NOT NULL,
			heatmap ` + blob + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.dec.Close()
	encErr := s.enc.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return encErr
}

// SaveRun stores a score set and its heatmap under the set's run ID.
func (s *Store) SaveRun(ctx context.Context, set *models.ComprehensiveScoreSet, heatmap *models.ClusteredHeatmap) error {
	if set == nil || set.Metadata.RunID == "" {
		return errors.New("score set has no run id")
	}

	setBlob, err := s.compress(set)
	if err != nil {
		return fmt.Errorf("encode score set: %w", err)
	}
	var heatmapBlob []byte
	var quality float64
	degraded := 0
	if heatmap != nil {
		if heatmapBlob, err = s.compress(heatmap); err != nil {
			return fmt.Errorf("encode heatmap: %w", err)
		}
		quality = heatmap.Quality
		if heatmap.Degraded {
			degraded = 1
		}
	}
	if set.Statistics.DegradedTables > 0 {
		degraded = 1
	}

	createdAt := set.Metadata.GeneratedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO runs (id, created_at, table_count, failed_count, modifications, system_risk, quality, degraded, score_set, heatmap)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		set.Metadata.RunID,
		createdAt.UTC().Format(timeLayout),
		set.Metadata.TableCount,
		len(set.Failures),
		set.Statistics.TotalModifications,
		set.Statistics.SystemRiskScore,
		quality,
		degraded,
		setBlob,
		heatmapBlob,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", set.Metadata.RunID, err)
	}

	s.logger.Debug("run saved", "run_id", set.Metadata.RunID, "bytes", len(setBlob)+len(heatmapBlob))
	return nil
}

// LoadScoreSet returns the score set of a run.
func (s *Store) LoadScoreSet(ctx context.Context, id string) (*models.ComprehensiveScoreSet, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT score_set FROM runs WHERE id = ?`), id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	var set models.ComprehensiveScoreSet
	if err := s.decompress(blob, &set); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &set, nil
}

// LoadHeatmap returns the clustered heatmap of a run.
func (s *Store) LoadHeatmap(ctx context.Context, id string) (*models.ClusteredHeatmap, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT heatmap FROM runs WHERE id = ?`), id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(blob) == 0) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load heatmap %s: %w", id, err)
	}

	var heatmap models.ClusteredHeatmap
	if err := s.decompress(blob, &heatmap); err != nil {
		return nil, fmt.Errorf("decode heatmap %s: %w", id, err)
	}
	return &heatmap, nil
}

// Latest returns the most recent run.
func (s *Store) Latest(ctx context.Context) (*RunRecord, error) {
	runs, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return &runs[0], nil
}

// List returns up to limit runs, newest first. A non-positive limit
// returns 50.
func (s *Store) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, created_at, table_count, failed_count, modifications, system_risk, quality, degraded
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		var createdAt string
		var degraded int
		if err := rows.Scan(&r.ID, &createdAt, &r.TableCount, &r.FailedCount, &r.Modifications,
			&r.SystemRisk, &r.Quality, &degraded); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			r.CreatedAt = t
		}
		r.Degraded = degraded != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) compress(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return s.enc.EncodeAll(data, nil), nil
}

func (s *Store) decompress(blob []byte, v any) error {
	data, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// rebind rewrites '?' placeholders as $1, $2, ... for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
