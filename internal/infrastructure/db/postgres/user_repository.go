package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldreport/reporting-api/internal/core/domain"
	"github.com/fieldreport/reporting-api/internal/core/ports"
)

const identityColumns = `id, username, password_hash, role, first_name, last_name, position, odoo_batch_id, created_at, updated_at`

// UserRepository implements ports.UserRepository on the identities table.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Role,
		&u.FirstName, &u.LastName, &u.Position, &u.OdooBatchID,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts the identity. The UNIQUE constraint on username is the
// only duplicate check; a violation is reported as domain.ErrUserExists.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO identities (`+identityColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+identityColumns,
		user.ID, user.Username, user.PasswordHash, string(user.Role),
		user.FirstName, user.LastName, user.Position, user.OdooBatchID,
		user.CreatedAt, user.UpdatedAt,
	)
	created, err := scanUser(row)
	if err != nil {
		if hasCode(err, codeUniqueViolation) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}
	return created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if !isUUID(id) {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE username = $1`, username)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) || hasCode(err, codeInvalidTextRepresentation) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	return users, nil
}

// Update applies the non-nil fields of patch in one statement.
func (r *UserRepository) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	if !isUUID(id) {
		return nil, domain.ErrUserNotFound
	}

	var role *string
	if patch.Role != nil {
		s := patch.Role.String()
		role = &s
	}

	row := r.db.QueryRowContext(ctx,
		`UPDATE identities SET
		     username      = COALESCE($2, username),
		     role          = COALESCE($3, role),
		     password_hash = COALESCE($4, password_hash),
		     first_name    = COALESCE($5, first_name),
		     last_name     = COALESCE($6, last_name),
		     position      = COALESCE($7, position),
		     odoo_batch_id = COALESCE($8, odoo_batch_id),
		     updated_at    = $9
		 WHERE id = $1
		 RETURNING `+identityColumns,
		id, patch.Username, role, patch.PasswordHash,
		patch.FirstName, patch.LastName, patch.Position, patch.OdooBatchID,
		patch.UpdatedAt,
	)
	updated, err := scanUser(row)
	switch {
	case errors.Is(err, sql.ErrNoRows), hasCode(err, codeInvalidTextRepresentation):
		return nil, domain.ErrUserNotFound
	case hasCode(err, codeUniqueViolation):
		return nil, domain.ErrUserExists
	case err != nil:
		return nil, fmt.Errorf("update identity: %w", err)
	}
	return updated, nil
}

// Delete removes the identity. Owned reports are removed by ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id string) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if hasCode(err, codeInvalidTextRepresentation) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete identity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete identity: %w", err)
	}
	return n > 0, nil
}

var _ ports.UserRepository = (*UserRepository)(nil)
