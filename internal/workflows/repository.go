package workflows

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/statecraft-labs/gavel/internal/spine"
	"github.com/statecraft-labs/gavel/pkg/pagination"
	"github.com/statecraft-labs/gavel/pkg/query"
	"github.com/statecraft-labs/gavel/pkg/repository"
)

// Store persists workflow aggregates. Updates are guarded by the revision the
// caller read, so a concurrent writer surfaces as ErrRevisionConflict rather
// than a lost update.
type Store interface {
	Insert(ctx context.Context, w *spine.Workflow) error
	Get(ctx context.Context, id uuid.UUID) (*spine.Workflow, error)
	Update(ctx context.Context, w *spine.Workflow) error
	SetStatus(ctx context.Context, id uuid.UUID, status spine.OrchestratorStatus, now time.Time) error

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (items []*spine.Workflow, total int, err error)
}

type store struct {
	db         *sql.DB
	pagination pagination.Config
}

// NewStore creates a Postgres-backed workflow store.
func NewStore(db *sql.DB, pagination pagination.Config) Store {
	return &store{db: db, pagination: pagination}
}

func (s *store) Insert(ctx context.Context, w *spine.Workflow) error {
	document, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}

	q := `
		INSERT INTO workflows(id, current_stage, orchestrator_status, revision, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	err = repository.ExecExpectOne(
		ctx, s.db, q,
		w.ID,
		w.CurrentStage,
		w.Status,
		w.Revision,
		document,
		w.CreatedAt,
		w.UpdatedAt,
	)
	return repository.MapError(err, ErrNotFound, ErrRevisionConflict)
}

func (s *store) Get(ctx context.Context, id uuid.UUID) (*spine.Workflow, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	w, err := repository.QueryOne(ctx, s.db, q, args, scanWorkflow)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrRevisionConflict)
	}
	return w, nil
}

// Update writes the mutated aggregate in a single statement conditioned on
// the revision the caller loaded. Zero rows affected means another writer
// got there first. On success the in-memory revision is bumped to match.
func (s *store) Update(ctx context.Context, w *spine.Workflow) error {
	loaded := w.Revision
	w.Revision = loaded + 1

	document, err := json.Marshal(w)
	if err != nil {
		w.Revision = loaded
		return fmt.Errorf("marshal workflow: %w", err)
	}

	q := `
		UPDATE workflows
		SET current_stage = $1, orchestrator_status = $2, revision = $3, document = $4, updated_at = $5
		WHERE id = $6 AND revision = $7`

	err = repository.ExecExpectOne(
		ctx, s.db, q,
		w.CurrentStage,
		w.Status,
		w.Revision,
		document,
		w.UpdatedAt,
		w.ID,
		loaded,
	)
	if err != nil {
		w.Revision = loaded
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: revision %d is stale", ErrRevisionConflict, loaded)
		}
		return err
	}

	return nil
}

// SetStatus force-updates the operational status without a revision guard.
// Used for best-effort ERROR marking when an internal fault interrupts a
// mutation mid-flight. The document is patched in place so column and
// aggregate never disagree.
func (s *store) SetStatus(
	ctx context.Context,
	id uuid.UUID,
	status spine.OrchestratorStatus,
	now time.Time,
) error {
	q := `
		UPDATE workflows
		SET orchestrator_status = $1,
			revision = revision + 1,
			document = jsonb_set(
				jsonb_set(document, '{orchestrator_status}', to_jsonb($1::text)),
				'{revision}', to_jsonb(revision + 1)
			),
			updated_at = $2
		WHERE id = $3`

	err := repository.ExecExpectOne(ctx, s.db, q, status, now, id)
	return repository.MapError(err, ErrNotFound, ErrRevisionConflict)
}

func (s *store) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) ([]*spine.Workflow, int, error) {
	page.Normalize(s.pagination)

	qb := query.NewBuilder(projection, defaultSort)
	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count workflows: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, s.db, pageSQL, pageArgs, scanWorkflow)
	if err != nil {
		return nil, 0, fmt.Errorf("query workflows: %w", err)
	}

	return items, total, nil
}
