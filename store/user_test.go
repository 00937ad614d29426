package store

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestResolveDisplayName(t *testing.T) {
	db, mock := newSQLMock(t)
	d := NewUserDirectory(db)

	mock.ExpectQuery(`SELECT display_name FROM users WHERE id = \?`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"display_name"}).AddRow("Alice"))
	name, err := d.ResolveDisplayName(testCtx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, "Alice", name)

	mock.ExpectQuery(`SELECT display_name FROM users`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"display_name"}))
	_, err = d.ResolveDisplayName(testCtx, "ghost")
	assert.Equal(t, ErrNotFound, err)

	mock.ExpectQuery(`SELECT display_name FROM users`).
		WithArgs("u2").
		WillReturnError(errors.New("timeout"))
	_, err = d.ResolveDisplayName(testCtx, "u2")
	assert.Error(t, err)
	assert.NotEqual(t, ErrNotFound, err)
}
