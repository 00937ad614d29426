package store

import (
	"context"
	"database/sql"
)

const getDisplayNameSQL = "SELECT display_name FROM users WHERE id = ?"

// userDirectory implements interface `IUserDirectory`.
type userDirectory struct {
	*sql.DB
}

func NewUserDirectory(db *sql.DB) *userDirectory {
	return &userDirectory{db}
}

func (d *userDirectory) ResolveDisplayName(ctx context.Context, userId string) (string, error) {
	var name string
	if err := d.QueryRowContext(ctx, getDisplayNameSQL, userId).Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", err
	}
	return name, nil
}
