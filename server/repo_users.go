package server

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	signup "github.com/goliatone/go-signup"
)

// Users is the account repository.
type Users interface {
	Create(ctx context.Context, user *signup.User) (*signup.User, error)
	CreateTx(ctx context.Context, tx bun.IDB, user *signup.User) (*signup.User, error)
	GetByEmail(ctx context.Context, email string) (*signup.User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*signup.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error)
}

type users struct {
	db  bun.IDB
	now func() time.Time
}

var _ Users = (*users)(nil)

// NewUsersRepository returns a bun backed Users.
func NewUsersRepository(db bun.IDB) Users {
	return &users{
		db:  db,
		now: time.Now,
	}
}

func (u *users) Create(ctx context.Context, user *signup.User) (*signup.User, error) {
	return u.CreateTx(ctx, u.db, user)
}

// CreateTx inserts user. A duplicate email is reported as ErrEmailInUse.
func (u *users) CreateTx(ctx context.Context, tx bun.IDB, user *signup.User) (*signup.User, error) {
	if user == nil {
		return nil, goerrors.New("user record is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	user.Email = strings.TrimSpace(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = u.now().UTC()
	}

	if _, err := tx.NewInsert().Model(user).Returning("*").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, signup.WithErrorMetadata(ErrEmailInUse, map[string]any{"email": user.Email})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert user")
	}
	return user, nil
}

func (u *users) GetByEmail(ctx context.Context, email string) (*signup.User, error) {
	return u.GetByEmailTx(ctx, u.db, email)
}

func (u *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*signup.User, error) {
	record := &signup.User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, signup.WithErrorMetadata(ErrUserNotFound, map[string]any{"email": email})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}
	return record, nil
}

func (u *users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return u.ExistsByEmailTx(ctx, u.db, email)
}

func (u *users) ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	exists, err := tx.NewSelect().
		Model((*signup.User)(nil)).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Exists(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up email")
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint failed: unique")
}
