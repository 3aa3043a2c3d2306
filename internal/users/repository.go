package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/platform/db"
	"github.com/dropzone-hq/dropzone/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, req ListUsersRequest) ([]User, int, error)
	Create(ctx context.Context, user User) (int64, error)
	Update(ctx context.Context, user User) error
	ReplaceRoles(ctx context.Context, userID int64, roles []authz.Role) error
	Delete(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `u.id, u.telegram_id, u.username, u.first_name, u.last_name,
	u.display_name, u.email, u.phone, u.password_hash, u.license_document_url,
	u.avatar_url, u.created_at, u.updated_at,
	COALESCE(array_agg(ur.role ORDER BY ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}')`

const userJoin = `FROM users u LEFT JOIN user_roles ur ON ur.user_id = u.id`

const userGroup = `GROUP BY u.id`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var roles []string
	err := row.Scan(
		&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName,
		&u.DisplayName, &u.Email, &u.Phone, &u.PasswordHash,
		&u.LicenseDocumentURL, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt, &roles,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	u.Roles = make([]authz.Role, 0, len(roles))
	for _, r := range roles {
		u.Roles = append(u.Roles, authz.Role(r))
	}
	return &u, nil
}

// Get fetches one user with their role set.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE u.id = $1 %s", userColumns, userJoin, userGroup)
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetByTelegramID fetches a user by their Telegram account id.
func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE u.telegram_id = $1 %s", userColumns, userJoin, userGroup)
	return scanUser(r.pool.QueryRow(ctx, query, telegramID))
}

// GetByUsername fetches a user by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE lower(u.username) = lower($1) %s", userColumns, userJoin, userGroup)
	return scanUser(r.pool.QueryRow(ctx, query, username))
}

// List returns users matching the filter plus the unpaged total.
func (r *Repository) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if req.Search != "" {
		pattern := "%" + req.Search + "%"
		conditions = append(conditions, fmt.Sprintf("(u.first_name ILIKE $%d OR u.last_name ILIKE $%d OR u.username ILIKE $%d OR u.display_name ILIKE $%d)", argPos, argPos, argPos, argPos))
		args = append(args, pattern)
		argPos++
	}
	if req.Role != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM user_roles f WHERE f.user_id = u.id AND f.role = $%d)", argPos))
		args = append(args, string(req.Role))
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM users u %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s %s %s %s ORDER BY u.id LIMIT $%d OFFSET $%d",
		userColumns, userJoin, where, userGroup, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Create inserts the user and their role assignments in one transaction.
func (r *Repository) Create(ctx context.Context, user User) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (telegram_id, username, first_name, last_name, display_name,
				email, phone, password_hash, license_document_url, avatar_url, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
			RETURNING id`,
			user.TelegramID, user.Username, user.FirstName, user.LastName, user.DisplayName,
			user.Email, user.Phone, user.PasswordHash, user.LicenseDocumentURL, user.AvatarURL,
		).Scan(&id)
		if err != nil {
			return translateUniqueViolation(err)
		}
		for _, role := range dedupeRoles(user.Roles) {
			if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role, created_at) VALUES ($1, $2, NOW())`, id, string(role)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update rewrites the user's profile columns. Roles are managed separately.
func (r *Repository) Update(ctx context.Context, user User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET username = $2, first_name = $3, last_name = $4,
			display_name = $5, email = $6, phone = $7, license_document_url = $8,
			avatar_url = $9, updated_at = NOW()
		WHERE id = $1`,
		user.ID, user.Username, user.FirstName, user.LastName, user.DisplayName,
		user.Email, user.Phone, user.LicenseDocumentURL, user.AvatarURL,
	)
	if err != nil {
		return translateUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReplaceRoles swaps the user's whole role set atomically.
func (r *Repository) ReplaceRoles(ctx context.Context, userID int64, roles []authz.Role) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return shared.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for _, role := range dedupeRoles(roles) {
			if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role, created_at) VALUES ($1, $2, NOW())`, userID, string(role)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the user; role assignments cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func dedupeRoles(roles []authz.Role) []authz.Role {
	seen := make(map[authz.Role]struct{}, len(roles))
	out := make([]authz.Role, 0, len(roles))
	for _, role := range roles {
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "telegram"):
			return shared.Invalid("A user with this Telegram account already exists.")
		case strings.Contains(pgErr.ConstraintName, "username"):
			return shared.Invalid("This username is already taken.")
		case strings.Contains(pgErr.ConstraintName, "email"):
			return shared.Invalid("A user with this email already exists.")
		default:
			return shared.Invalid("A user with these details already exists.")
		}
	}
	return err
}
