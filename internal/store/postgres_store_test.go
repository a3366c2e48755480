package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"cloudcost/core/types"
	"cloudcost/internal/errors"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PostgresStore{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func TestPostgresStoreCreateSucceedsOnInsert(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	result := sampleResult("result-1", "job-1", "proj-1")

	mock.ExpectQuery(`INSERT INTO cost_results`).
		WillReturnRows(sqlmock.NewRows([]string{"result_id"}).AddRow("result-1"))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Create(ctx, result); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreCreateReportsConflictOnNoRowsReturned(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	result := sampleResult("result-1", "job-1", "proj-1")

	mock.ExpectQuery(`INSERT INTO cost_results`).
		WillReturnRows(sqlmock.NewRows([]string{"result_id"}))

	err := store.Create(ctx, result)
	if err == nil || !errors.IsType(err, errors.TypeConflict) {
		t.Fatalf("expected a conflict error when ON CONFLICT DO NOTHING fires, got %v", err)
	}
}

func TestPostgresStoreUpdateAndDeleteNeverTouchTheDatabase(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	if err := store.Update(ctx, sampleResult("result-1", "job-1", "proj-1")); err == nil || !errors.IsType(err, errors.TypeImmutabilityViolation) {
		t.Fatalf("expected Update to fail with an immutability violation, got %v", err)
	}
	if err := store.Delete(ctx, "result-1"); err == nil || !errors.IsType(err, errors.TypeImmutabilityViolation) {
		t.Fatalf("expected Delete to fail with an immutability violation, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("Update/Delete issued SQL, but none was expected: %v", err)
	}
}

func TestPostgresStoreGetByIDDecodesStoredFCM(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	fcmJSON, err := json.Marshal(fcmWithExpected(99, types.ConfidenceMedium))
	if err != nil {
		t.Fatalf("marshal fcm: %v", err)
	}

	mock.ExpectQuery(`SELECT \* FROM cost_results WHERE result_id`).
		WillReturnRows(sqlmock.NewRows([]string{"result_id", "job_id", "project_id", "input_hash", "fcm", "policy_verdict", "created_at"}).
			AddRow("result-1", "job-1", "proj-1", "hash-1", fcmJSON, nil, time.Now().UTC()))

	result, err := store.GetByID(ctx, "result-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if result.JobID != "job-1" {
		t.Fatalf("expected job-1, got %s", result.JobID)
	}
	if result.FCM.OverallConfidence != types.ConfidenceMedium {
		t.Fatalf("expected decoded confidence MEDIUM, got %s", result.FCM.OverallConfidence)
	}
}

func TestPostgresStoreGetByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM cost_results WHERE result_id`).
		WillReturnRows(sqlmock.NewRows([]string{"result_id", "job_id", "project_id", "input_hash", "fcm", "policy_verdict", "created_at"}))

	_, err := store.GetByID(ctx, "missing")
	if err == nil || !errors.IsType(err, errors.TypeNotFound) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}
