package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	// pgx registers itself under the "pgx" database/sql driver name; sqlx
	// then drives it exactly the way the test suite's own
	// mustConnectPostgreSQL does.
	_ "github.com/jackc/pgx/v5/stdlib"

	"cloudcost/core/types"
	"cloudcost/internal/config"
	"cloudcost/internal/errors"
)

// PostgresStore is the production Store: a write-once cost_results table
// plus an append-only audit_log table, both behind goose-managed
// migrations. Update and Delete have no SQL statements backing them at
// all — the immutability guarantee is enforced by the absence of a code
// path, not by a runtime check.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore opens a connection pool against cfg.DSN, tunes it per
// cfg, and applies any pending migrations before returning.
func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(errors.TypeNetwork, "connect to result store database", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.TypeNetwork, "ping result store database", err)
	}

	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type resultRow struct {
	ResultID      string         `db:"result_id"`
	JobID         string         `db:"job_id"`
	ProjectID     string         `db:"project_id"`
	InputHash     string         `db:"input_hash"`
	FCM           []byte         `db:"fcm"`
	PolicyVerdict sql.NullString `db:"policy_verdict"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r *resultRow) toResult() (*types.ImmutableCostResult, error) {
	var fcm types.FCM
	if err := json.Unmarshal(r.FCM, &fcm); err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "decode stored fcm", err)
	}

	result := &types.ImmutableCostResult{
		ResultID:  r.ResultID,
		JobID:     r.JobID,
		ProjectID: r.ProjectID,
		InputHash: r.InputHash,
		FCM:       fcm,
		CreatedAt: r.CreatedAt,
	}

	if r.PolicyVerdict.Valid {
		var verdict types.PolicyVerdict
		if err := json.Unmarshal([]byte(r.PolicyVerdict.String), &verdict); err != nil {
			return nil, errors.Wrap(errors.TypeInternal, "decode stored policy verdict", err)
		}
		result.PolicyVerdict = &verdict
	}

	return result, nil
}

// Create persists result via INSERT ... ON CONFLICT DO NOTHING, so a
// repeated result_id (or job_id, via the table's UNIQUE constraint) never
// overwrites the first write. Zero rows returned means the conflict fired,
// reported as errors.TypeConflict. A successful insert appends a "create"
// audit entry before returning.
func (s *PostgresStore) Create(ctx context.Context, result types.ImmutableCostResult) error {
	fcmJSON, err := json.Marshal(result.FCM)
	if err != nil {
		return errors.Wrap(errors.TypeInternal, "encode fcm for storage", err)
	}

	var verdictJSON sql.NullString
	if result.PolicyVerdict != nil {
		data, err := json.Marshal(result.PolicyVerdict)
		if err != nil {
			return errors.Wrap(errors.TypeInternal, "encode policy verdict for storage", err)
		}
		verdictJSON = sql.NullString{String: string(data), Valid: true}
	}

	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	var returnedID string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO cost_results (result_id, job_id, project_id, input_hash, fcm, policy_verdict, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (result_id) DO NOTHING
		RETURNING result_id
	`, result.ResultID, result.JobID, result.ProjectID, result.InputHash, fcmJSON, verdictJSON, result.CreatedAt).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return errors.Conflict("a result with this result_id or job_id already exists")
	}
	if err != nil {
		return errors.Wrap(errors.TypeInternal, "insert cost result", err)
	}

	entry := types.AuditLogEntry{
		JobID:     result.JobID,
		ResultID:  result.ResultID,
		Action:    "create",
		Severity:  types.AuditSeverityInfo,
		Detail:    "cost result created",
		Timestamp: result.CreatedAt,
	}
	if aerr := s.AppendAudit(ctx, entry); aerr != nil {
		return aerr
	}
	return nil
}

// Update always fails: no UPDATE statement exists against cost_results.
func (s *PostgresStore) Update(ctx context.Context, result types.ImmutableCostResult) error {
	return errors.New(errors.TypeImmutabilityViolation, "cost results cannot be updated once created")
}

// Delete always fails: no DELETE statement exists against cost_results.
func (s *PostgresStore) Delete(ctx context.Context, resultID string) error {
	return errors.New(errors.TypeImmutabilityViolation, "cost results cannot be deleted once created")
}

// GetByJobID returns the one result created for jobID, if any.
func (s *PostgresStore) GetByJobID(ctx context.Context, jobID string) (*types.ImmutableCostResult, error) {
	var row resultRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM cost_results WHERE job_id = $1`, jobID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("cost_result", jobID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "query cost result by job id", err)
	}
	return row.toResult()
}

// GetByID returns the result identified by resultID.
func (s *PostgresStore) GetByID(ctx context.Context, resultID string) (*types.ImmutableCostResult, error) {
	var row resultRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM cost_results WHERE result_id = $1`, resultID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("cost_result", resultID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "query cost result by id", err)
	}
	return row.toResult()
}

// ListByProject returns up to limit results for projectID, newest first,
// starting after offset.
func (s *PostgresStore) ListByProject(ctx context.Context, projectID string, limit, offset int) ([]types.ImmutableCostResult, error) {
	var rows []resultRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM cost_results
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, projectID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "list cost results by project", err)
	}

	out := make([]types.ImmutableCostResult, 0, len(rows))
	for i := range rows {
		result, err := rows[i].toResult()
		if err != nil {
			return nil, err
		}
		out = append(out, *result)
	}
	return out, nil
}

// AppendAudit inserts one audit log row. The audit log has no update or
// delete path either, for the same write-once reason as cost_results.
func (s *PostgresStore) AppendAudit(ctx context.Context, entry types.AuditLogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (entry_id, job_id, result_id, action, actor, severity, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (entry_id) DO NOTHING
	`, entry.EntryID, entry.JobID, entry.ResultID, entry.Action, entry.Actor, entry.Severity, entry.Detail, entry.Timestamp)
	if err != nil {
		return errors.Wrap(errors.TypeInternal, "append audit log entry", err)
	}
	return nil
}

// AuditLog returns every entry recorded against jobID, in write order. An
// empty jobID returns the full log.
func (s *PostgresStore) AuditLog(ctx context.Context, jobID string) ([]types.AuditLogEntry, error) {
	query := `SELECT entry_id, job_id, result_id, action, actor, severity, detail, created_at AS timestamp FROM audit_log`
	args := []interface{}{}
	if jobID != "" {
		query += ` WHERE job_id = $1`
		args = append(args, jobID)
	}
	query += ` ORDER BY created_at ASC`

	var rows []struct {
		EntryID   string              `db:"entry_id"`
		JobID     string              `db:"job_id"`
		ResultID  string              `db:"result_id"`
		Action    string              `db:"action"`
		Actor     string              `db:"actor"`
		Severity  types.AuditSeverity `db:"severity"`
		Detail    string              `db:"detail"`
		Timestamp time.Time           `db:"timestamp"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "query audit log", err)
	}

	out := make([]types.AuditLogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.AuditLogEntry{
			EntryID:   r.EntryID,
			JobID:     r.JobID,
			ResultID:  r.ResultID,
			Action:    r.Action,
			Actor:     r.Actor,
			Severity:  r.Severity,
			Detail:    r.Detail,
			Timestamp: r.Timestamp,
		})
	}
	return out, nil
}

