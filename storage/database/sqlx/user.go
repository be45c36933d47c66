package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/user"
)

const profilesTable = "profiles"

var profileColumns = []string{
	"id", "name", "email", "phone", "role", "is_active", "password_hash",
	"email_confirmed_at", "last_login", "created_at", "updated_at",
}

type profileRow struct {
	ID               string      `db:"id"`
	Name             string      `db:"name"`
	Email            string      `db:"email"`
	Phone            null.String `db:"phone"`
	Role             string      `db:"role"`
	IsActive         bool        `db:"is_active"`
	PasswordHash     []byte      `db:"password_hash"`
	EmailConfirmedAt null.Time   `db:"email_confirmed_at"`
	LastLogin        null.Time   `db:"last_login"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

func toProfileRow(usr user.User) profileRow {
	return profileRow{
		ID:               usr.ID,
		Name:             usr.Name,
		Email:            usr.Email,
		Phone:            null.NewString(usr.Phone, usr.Phone != ""),
		Role:             usr.Role,
		IsActive:         usr.IsActive,
		PasswordHash:     usr.PasswordHash,
		EmailConfirmedAt: null.NewTime(usr.EmailConfirmedAt.UTC(), !usr.EmailConfirmedAt.IsZero()),
		LastLogin:        null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
		CreatedAt:        usr.CreatedAt.UTC(),
		UpdatedAt:        usr.UpdatedAt.UTC(),
	}
}

func (r profileRow) user() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone.String,
		Role:         r.Role,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.EmailConfirmedAt.Valid {
		usr.EmailConfirmedAt = r.EmailConfirmedAt.Time.UTC()
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

func (r profileRow) values() []interface{} {
	return []interface{}{
		r.ID, r.Name, r.Email, r.Phone, r.Role, r.IsActive, r.PasswordHash,
		r.EmailConfirmedAt, r.LastLogin, r.CreatedAt, r.UpdatedAt,
	}
}

type userRepository struct {
	db sqlx.ExtContext
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db sqlx.ExtContext) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	qb := psql.Select("1").From(profilesTable).Where(sq.Eq{"email": email}).Limit(1)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		qb = qb.Where(sq.NotEq{"id": ids})
	}

	var exists int
	if err := get(ctx, repo.db, &exists, qb); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := toProfileRow(usr)
	qb := psql.Insert(profilesTable).Columns(profileColumns...).Values(row.values()...)
	if _, err := exec(ctx, repo.db, qb); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo *userRepository) getUser(ctx context.Context, where sq.Sqlizer, msg string) (user.User, error) {
	var row profileRow
	qb := psql.Select(profileColumns...).From(profilesTable).Where(where)
	if err := get(ctx, repo.db, &row, qb); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, msg)
	}
	return row.user(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, sq.Eq{"id": id}, "finding user by ID")
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"email": email}, "finding user by email")
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	qb := psql.Select(profileColumns...).From(profilesTable)

	if filter != nil {
		// users with Name, Email or Phone matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			qb = qb.Where(sq.Or{sq.ILike{"name": val}, sq.ILike{"email": val}, sq.ILike{"phone": val}})
		}
		if len(filter.Roles) > 0 {
			qb = qb.Where(sq.Eq{"role": filter.Roles})
		}
		if filter.IsActive != nil {
			qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if !filter.CreatedFrom.IsZero() {
			qb = qb.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			qb = qb.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}

	var rows []profileRow
	if err := selectAll(ctx, repo.db, &rows, orderBy(qb, ordering)); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if _, err := uuid.Parse(usr.ID); err != nil {
		return user.User{}, user.ErrNotFound
	}
	row := toProfileRow(usr)
	qb := psql.Update(profilesTable).
		SetMap(map[string]interface{}{
			"name":               row.Name,
			"email":              row.Email,
			"phone":              row.Phone,
			"role":               row.Role,
			"is_active":          row.IsActive,
			"password_hash":      row.PasswordHash,
			"email_confirmed_at": row.EmailConfirmedAt,
			"last_login":         row.LastLogin,
			"updated_at":         row.UpdatedAt,
		}).
		Where(sq.Eq{"id": row.ID})

	if err := execOne(ctx, repo.db, qb, user.ErrNotFound); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		if err == user.ErrNotFound {
			return user.User{}, err
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return row.user(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := exec(ctx, repo.db, psql.Delete(profilesTable).Where(sq.Eq{"id": ids})); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
