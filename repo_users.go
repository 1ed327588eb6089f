package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// carePlanCountExpr feeds the scan only care_plan_count column
const carePlanCountExpr = `(SELECT COUNT(*) FROM "care_plans" AS "cp" WHERE "cp"."user_id" = "usr"."id") AS "care_plan_count"`

// UserRepository is the bun backed Users store with transaction aware variants
type UserRepository interface {
	Users

	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	InsertIfAbsentTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	UpdateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	MarkSurveyCompletedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var _ UserRepository = (*users)(nil)

// NewUsersRepository returns a UserRepository backed by db
func NewUsersRepository(db *bun.DB) UserRepository {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

// withCarePlanCount selects every user column plus the care plan count
func withCarePlanCount(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		ColumnExpr(`"usr".*`).
		ColumnExpr(carePlanCountExpr)
}

// withProfileColumns limits an update to the mutable profile columns
func withProfileColumns(q *bun.UpdateQuery) *bun.UpdateQuery {
	return q.Column("first_name", "last_name", "name", "user_type", "phone_number", "has_completed_survey", "updated_at")
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *users) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record, err := a.Repository.GetByIdentifierTx(ctx, tx, NormalizeEmail(email), withCarePlanCount)
	if err != nil {
		return nil, a.lookupError(err, "email", email)
	}
	return record, nil
}

func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *users) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record, err := a.Repository.GetByIDTx(ctx, tx, id.String(), withCarePlanCount)
	if err != nil {
		return nil, a.lookupError(err, "id", id.String())
	}
	return record, nil
}

func (a *users) InsertIfAbsent(ctx context.Context, user *User) (*User, error) {
	return a.InsertIfAbsentTx(ctx, a.db, user)
}

// InsertIfAbsentTx relies on the unique email index, so two concurrent
// inserts for the same email can never both affect a row. The conflict
// target is left open: hashid IDs are derived from the email, so the
// losing insert may hit the primary key first.
func (a *users) InsertIfAbsentTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil {
		return nil, internalError(errors.New("user must not be nil"), "failed to insert user")
	}

	prepareUserDefaults(user, a.now())

	res, err := tx.NewInsert().
		Model(user).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, internalError(err, "failed to insert user")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, internalError(err, "failed to insert user")
	}

	if n == 0 {
		return nil, ErrDuplicateEmail.WithMetadata(map[string]any{"email": user.Email})
	}

	return user, nil
}

func (a *users) Update(ctx context.Context, user *User) (*User, error) {
	return a.UpdateTx(ctx, a.db, user)
}

// UpdateTx writes the mutable profile columns. Email and password hash
// are never touched here.
func (a *users) UpdateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if _, err := a.FindByIDTx(ctx, tx, user.ID); err != nil {
		return nil, err
	}

	now := a.now()
	user.UpdatedAt = &now

	_, err := a.Repository.UpdateTx(ctx, tx, user,
		repository.UpdateByID(user.ID.String()),
		withProfileColumns,
	)
	if err != nil {
		return nil, internalError(err, "failed to update user")
	}

	return a.FindByIDTx(ctx, tx, user.ID)
}

func (a *users) MarkSurveyCompletedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model(&User{ID: id}).
		Set("has_completed_survey = ?", true).
		Set("updated_at = ?", a.now()).
		WherePK().
		Exec(ctx)
	if err != nil {
		return internalError(err, "failed to mark survey completed")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound.WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *users) List(ctx context.Context) ([]*User, error) {
	records := []*User{}
	err := a.db.NewSelect().
		Model(&records).
		Apply(withCarePlanCount).
		OrderExpr(`"usr"."created_at" ASC`).
		Scan(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list users")
	}
	return records, nil
}

func (a *users) lookupError(err error, column, value string) error {
	if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound.WithMetadata(map[string]any{column: value})
	}
	return internalError(err, "failed to retrieve user")
}

func prepareUserDefaults(record *User, now time.Time) {
	record.Email = NormalizeEmail(record.Email)

	if record.Role == "" {
		record.Role = RolePatient
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.Name == "" {
		record.Name = record.DisplayName()
	}

	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}

	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}
