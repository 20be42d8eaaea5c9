package postgresql

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/ton-vote/verifier/internal/models"
	"github.com/ton-vote/verifier/internal/output"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	selectSnapshotQuery = `SELECT metadata, result, max_lt, updated_at FROM proposal_snapshots WHERE address = $1`
	upsertSnapshotQuery = `INSERT INTO proposal_snapshots (address, metadata, result, max_lt, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (address) DO UPDATE SET
    metadata = EXCLUDED.metadata,
    result = EXCLUDED.result,
    max_lt = EXCLUDED.max_lt,
    updated_at = EXCLUDED.updated_at
WHERE proposal_snapshots.max_lt <= EXCLUDED.max_lt`
	listProposalsQuery = `SELECT address FROM proposal_snapshots ORDER BY address`
)

// PostgresOutputHandler stores one snapshot row per proposal in proposal_snapshots.
type PostgresOutputHandler struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to dsn through the pgx stdlib driver and applies pending migrations.
func Open(ctx context.Context, dsn string) (*PostgresOutputHandler, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("Connected to PostgreSQL snapshot store")
	return NewWithDB(db), nil
}

// NewWithDB wraps an already migrated database.
func NewWithDB(db *sql.DB) *PostgresOutputHandler {
	return &PostgresOutputHandler{db: db, now: time.Now}
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// GetSnapshot loads the snapshot of address, or output.ErrSnapshotNotFound.
func (h *PostgresOutputHandler) GetSnapshot(ctx context.Context, address string) (*models.Snapshot, error) {
	var (
		metadata, result []byte
		maxLt            int64
		updatedAt        time.Time
	)
	err := h.db.QueryRowContext(ctx, selectSnapshotQuery, address).Scan(&metadata, &result, &maxLt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, output.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	snap := &models.Snapshot{Address: address, MaxLt: uint64(maxLt), UpdatedAt: updatedAt}
	if err := json.Unmarshal(metadata, &snap.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if err := json.Unmarshal(result, &snap.Result); err != nil {
		return nil, fmt.Errorf("failed to decode proposal result: %w", err)
	}
	return snap, nil
}

// WriteSnapshot upserts snapshot unless the stored watermark is ahead of it.
func (h *PostgresOutputHandler) WriteSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if snapshot.MaxLt > math.MaxInt64 {
		return fmt.Errorf("watermark %d does not fit the max_lt column", snapshot.MaxLt)
	}
	metadata, err := json.Marshal(snapshot.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	result := snapshot.Result
	if result == nil {
		result = models.ProposalResult{}
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode proposal result: %w", err)
	}

	res, err := h.db.ExecContext(ctx, upsertSnapshotQuery,
		snapshot.Address, metadata, resultJSON, int64(snapshot.MaxLt), h.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return output.ErrWatermarkRegression
	}
	return nil
}

func (h *PostgresOutputHandler) ListProposals(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, listProposalsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("failed to scan proposal address: %w", err)
		}
		addresses = append(addresses, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate proposals: %w", err)
	}
	return addresses, nil
}

func (h *PostgresOutputHandler) Close() error {
	slog.Info("Closing PostgreSQL snapshot store")
	return h.db.Close()
}
