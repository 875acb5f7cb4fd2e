package database

import (
	"context"
	"database/sql"
	"strings"

	apperrors "dashchat/internal/errors"
	"dashchat/internal/models"
)

const userColumns = `id, name, email, role, company_id, password_hash, created_at`

// SaveUser inserts or updates a user. An empty PasswordHash keeps the stored hash.
func (d *Database) SaveUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = d.timestamp()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	err := retryableDBOperationNoReturn(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `
			INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				email = excluded.email,
				role = excluded.role,
				company_id = excluded.company_id,
				password_hash = CASE WHEN excluded.password_hash != '' THEN excluded.password_hash ELSE users.password_hash END`,
			user.ID, user.Name, nullString(user.Email), user.Role, nullString(user.CompanyID),
			user.PasswordHash, user.CreatedAt.UTC(),
		)
		return err
	}, "save user")
	if err != nil {
		return apperrors.NewDatabaseError("save user", err)
	}
	return nil
}

// GetUser returns the user with id, or nil when it does not exist.
func (d *Database) GetUser(ctx context.Context, id string) (*models.User, error) {
	return d.getUserWhere(ctx, "get user", `id = ?`, id)
}

// GetUserByEmail returns the user with email (case-insensitive), or nil.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return d.getUserWhere(ctx, "get user by email", `email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

func (d *Database) getUserWhere(ctx context.Context, op, where string, arg interface{}) (*models.User, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	user, err := scanUser(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(op, err)
	}
	return user, nil
}

// ListUsers returns every user ordered by name.
func (d *Database) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list users", err)
	}
	defer func() { _ = rows.Close() }()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("list users", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list users", err)
	}
	return users, nil
}

func scanUser(row scanner) (*models.User, error) {
	var user models.User
	var email, companyID sql.NullString
	if err := row.Scan(&user.ID, &user.Name, &email, &user.Role, &companyID,
		&user.PasswordHash, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.Email = email.String
	user.CompanyID = companyID.String
	return &user, nil
}
