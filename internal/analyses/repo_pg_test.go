package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	analysis := Analysis{
		ID:             "a-1",
		ProjectCode:    "OBRA-001",
		Status:         StatusPending,
		RequestPayload: map[string]any{"proyecto_codigo": "OBRA-001"},
		Temperature:    0.3,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs("a-1", "OBRA-001", StatusPending, sqlmock.AnyArg(), "", float32(0.3), "", "", now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := &PGRepo{DB: db}
	if err := repo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("FROM analyses").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := &PGRepo{DB: db}
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPGRepoUpdateStatusGuarded(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("UPDATE analyses").
		WithArgs(StatusProcessing, sqlmock.AnyArg(), "a-1", StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := &PGRepo{DB: db}
	if err := repo.UpdateStatus(context.Background(), "a-1", StatusPending, StatusProcessing); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateStatusLostRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("UPDATE analyses").
		WithArgs(StatusProcessing, sqlmock.AnyArg(), "a-1", StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{
		"id", "project_code", "status", "error_message", "request_payload", "model_override", "temperature",
		"system_prompt_override", "extra_instructions", "started_at", "completed_at", "created_at", "updated_at",
	}).AddRow("a-1", "OBRA-001", StatusProcessing, nil, []byte(`{}`), "", float32(0.3), "", "", nil, nil, time.Now(), time.Now())
	mock.ExpectQuery("FROM analyses").WithArgs("a-1").WillReturnRows(rows)

	repo := &PGRepo{DB: db}
	err = repo.UpdateStatus(context.Background(), "a-1", StatusPending, StatusProcessing)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestPGRepoRecordOutcomeSingleTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	score := 90
	outcome := Outcome{
		AnalysisID: "a-1",
		Invocation: Invocation{ID: "inv-1", AnalysisID: "a-1", ModelUsed: "alpha", Success: true, CreatedAt: time.Now().UTC()},
		Prompt:     PromptRecord{ID: "p-1", InvocationID: "inv-1", SystemPrompt: "sys", UserPrompt: "usr"},
		Response:   ResponseRecord{ID: "r-1", InvocationID: "inv-1", RawText: `{"resumen":"ok"}`, Parsed: map[string]any{"resumen": "ok"}},
		Result:     &Result{ID: "res-1", AnalysisID: "a-1", Summary: "ok", CoherenceScore: &score, CreatedAt: time.Now().UTC()},
		Findings: []Finding{
			{ID: "f-1", ResultID: "res-1", Position: 0, Title: "t", Description: "d", Severity: SeverityWarning},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invocations").
		WithArgs("inv-1", "a-1", "alpha", nil, nil, nil, int64(0), true, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO prompt_records").
		WithArgs("p-1", "inv-1", "sys", "usr").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO response_records").
		WithArgs("r-1", "inv-1", `{"resumen":"ok"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO results").
		WithArgs("res-1", "a-1", "ok", &score, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO findings").
		WithArgs("f-1", "res-1", 0, "t", "d", SeverityWarning).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE analyses").
		WithArgs(StatusCompleted, sqlmock.AnyArg(), "a-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := &PGRepo{DB: db}
	if err := repo.RecordOutcome(context.Background(), outcome); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoRecordOutcomeRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	outcome := Outcome{
		AnalysisID: "a-1",
		Invocation: Invocation{ID: "inv-1", AnalysisID: "a-1", ModelUsed: "alpha", CreatedAt: time.Now().UTC()},
		Prompt:     PromptRecord{ID: "p-1", InvocationID: "inv-1", SystemPrompt: "sys", UserPrompt: "usr"},
		Response:   ResponseRecord{ID: "r-1", InvocationID: "inv-1", RawText: "raw"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invocations").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	repo := &PGRepo{DB: db}
	if err := repo.RecordOutcome(context.Background(), outcome); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkErrorWithStagedInvocation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	detail := "all candidate models exhausted"
	outcome := &Outcome{
		AnalysisID: "a-1",
		Invocation: Invocation{ID: "inv-1", AnalysisID: "a-1", ModelUsed: "alpha", ErrorDetail: &detail, CreatedAt: time.Now().UTC()},
		Prompt:     PromptRecord{ID: "p-1", InvocationID: "inv-1", SystemPrompt: "sys", UserPrompt: "usr"},
		Response:   ResponseRecord{ID: "r-1", InvocationID: "inv-1"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invocations").
		WithArgs("inv-1", "a-1", "alpha", nil, nil, nil, int64(0), false, &detail, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO prompt_records").
		WithArgs("p-1", "inv-1", "sys", "usr").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO response_records").
		WithArgs("r-1", "inv-1", "", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE analyses").
		WithArgs(StatusError, "llm cascade failed", sqlmock.AnyArg(), "a-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := &PGRepo{DB: db}
	if err := repo.MarkError(context.Background(), "a-1", "llm cascade failed", outcome); err != nil {
		t.Fatalf("MarkError: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
