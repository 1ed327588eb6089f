package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	CreateSchema(ctx context.Context) error
	Migrate(ctx context.Context) (*migrate.MigrationGroup, error)
	Users() UserRepository
	CarePlans() CarePlans
	Surveys() Surveys
}

// CarePlans stores care plans. Their count drives User.HasCarePlan.
type CarePlans interface {
	CreateTx(ctx context.Context, tx bun.IDB, plan *CarePlan) (*CarePlan, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*CarePlan, error)
}

// Surveys stores survey submissions
type Surveys interface {
	CreateTx(ctx context.Context, tx bun.IDB, survey *Survey) (*Survey, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Survey, error)
}

type mngr struct {
	db        *bun.DB
	users     UserRepository
	carePlans CarePlans
	surveys   Surveys
}

// NewRepositoryManager wires every repository on top of db
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:        db,
		users:     NewUsersRepository(db),
		carePlans: &carePlans{db: db, now: time.Now},
		surveys:   &surveys{db: db, now: time.Now},
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager requires a database")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.carePlans == nil {
		return errors.New("repository carePlans should be initialized")
	}

	if m.surveys == nil {
		return errors.New("repository surveys should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

// CreateSchema creates the tables if they do not exist yet
func (m mngr) CreateSchema(ctx context.Context) error {
	models := []any{
		(*User)(nil),
		(*CarePlan)(nil),
		(*Survey)(nil),
	}

	for _, model := range models {
		if _, err := m.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return internalError(err, "failed to create table")
		}
	}

	indexes := []struct {
		model  any
		name   string
		column string
	}{
		{(*CarePlan)(nil), "care_plans_user_id_idx", "user_id"},
		{(*Survey)(nil), "surveys_user_id_idx", "user_id"},
	}

	for _, idx := range indexes {
		_, err := m.db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return internalError(err, "failed to create index")
		}
	}

	return nil
}

// Migrate applies the embedded SQL migrations that have not run yet.
// The returned group is empty when the schema is up to date.
func (m mngr) Migrate(ctx context.Context) (*migrate.MigrationGroup, error) {
	migrations := migrate.NewMigrations()
	if err := migrations.Discover(GetMigrationsFS()); err != nil {
		return nil, internalError(err, "failed to load migrations")
	}

	migrator := migrate.NewMigrator(m.db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, internalError(err, "failed to init migrations")
	}

	if err := migrator.Lock(ctx); err != nil {
		return nil, internalError(err, "failed to lock migrations")
	}
	defer migrator.Unlock(ctx)

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return group, internalError(err, "failed to run migrations")
	}
	return group, nil
}

func (m mngr) Users() UserRepository {
	return m.users
}

func (m mngr) CarePlans() CarePlans {
	return m.carePlans
}

func (m mngr) Surveys() Surveys {
	return m.surveys
}

type carePlans struct {
	db  *bun.DB
	now func() time.Time
}

func (r *carePlans) CreateTx(ctx context.Context, tx bun.IDB, plan *CarePlan) (*CarePlan, error) {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	if plan.Status == "" {
		plan.Status = CarePlanStatusDraft
	}
	if plan.CreatedAt == nil {
		now := r.now()
		plan.CreatedAt = &now
	}

	if _, err := tx.NewInsert().Model(plan).Exec(ctx); err != nil {
		return nil, internalError(err, "failed to create care plan")
	}
	return plan, nil
}

func (r *carePlans) ListByUser(ctx context.Context, userID uuid.UUID) ([]*CarePlan, error) {
	records := []*CarePlan{}
	err := r.db.NewSelect().
		Model(&records).
		Where(`"cp"."user_id" = ?`, userID).
		OrderExpr(`"cp"."created_at" DESC`).
		Scan(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list care plans")
	}
	return records, nil
}

type surveys struct {
	db  *bun.DB
	now func() time.Time
}

func (r *surveys) CreateTx(ctx context.Context, tx bun.IDB, survey *Survey) (*Survey, error) {
	if survey.ID == uuid.Nil {
		survey.ID = uuid.New()
	}
	if survey.Answers == nil {
		survey.Answers = map[string]any{}
	}
	if survey.CreatedAt == nil {
		now := r.now()
		survey.CreatedAt = &now
	}

	if _, err := tx.NewInsert().Model(survey).Exec(ctx); err != nil {
		return nil, internalError(err, "failed to store survey")
	}
	return survey, nil
}

func (r *surveys) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Survey, error) {
	records := []*Survey{}
	err := r.db.NewSelect().
		Model(&records).
		Where(`"srv"."user_id" = ?`, userID).
		OrderExpr(`"srv"."created_at" DESC`).
		Scan(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list surveys")
	}
	return records, nil
}
