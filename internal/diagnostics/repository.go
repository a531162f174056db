package diagnostics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/statecraft-labs/gavel/pkg/pagination"
	"github.com/statecraft-labs/gavel/pkg/query"
	"github.com/statecraft-labs/gavel/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a diagnostic journal backed by Postgres.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "diagnostics"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Record(ctx context.Context, rec Record) error {
	if len(rec.Entries) == 0 {
		return ErrEmptyRecord
	}

	now := time.Now().UTC()

	q := `
		INSERT INTO diagnostics(id, correlation_id, workflow_id, code, context, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	// All entries of one record land in a single transaction so a
	// multi-issue failure is journaled completely or not at all.
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		for _, entry := range rec.Entries {
			contextRaw, err := json.Marshal(entry.Context)
			if err != nil {
				return struct{}{}, fmt.Errorf("marshal diagnostic context: %w", err)
			}

			if err := repository.ExecExpectOne(
				ctx, tx, q,
				uuid.New(),
				rec.CorrelationID,
				rec.WorkflowID,
				entry.Code,
				contextRaw,
				now,
			); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})

	if err != nil {
		return fmt.Errorf("record diagnostics: %w", err)
	}

	r.logger.Info(
		"diagnostics recorded",
		"correlation_id", rec.CorrelationID,
		"entries", len(rec.Entries),
	)
	return nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Diagnostic], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereContains("Code", page.Search)

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count diagnostics: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	entries, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDiagnostic)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}

	result := pagination.NewPageResult(entries, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) ListByWorkflow(
	ctx context.Context,
	workflowID uuid.UUID,
	page pagination.PageRequest,
) (*pagination.PageResult[Diagnostic], error) {
	return r.List(ctx, page, Filters{WorkflowID: &workflowID})
}
