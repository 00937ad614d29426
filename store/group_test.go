package store

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGroupStore(t *testing.T) (*groupStore, sqlmock.Sqlmock) {
	db, mock := newSQLMock(t)
	s := NewGroupStore(db)
	s.now = fixedNow
	s.newId = seqIds("g1", "g2")
	return s, mock
}

func TestCreateGroup(t *testing.T) {
	s, mock := newTestGroupStore(t)

	mock.ExpectExec(`INSERT INTO chat_groups`).
		WithArgs("g1", "ops", "u1", testNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	g, err := s.CreateGroup(testCtx, "ops", "u1")
	require.NoError(t, err)
	assert.Equal(t, "g1", g.Id)
	assert.Equal(t, "u1", g.CreatedBy)
	assert.Empty(t, g.Members)
}

func TestAddMembersSkipsDuplicates(t *testing.T) {
	s, mock := newTestGroupStore(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO group_members`)
	prep.ExpectExec().WithArgs("g1", "u1", testNow).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("g1", "u2", testNow).WillReturnError(&mysql.MySQLError{Number: 1062})
	prep.ExpectExec().WithArgs("g1", "u3", testNow).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assert.NoError(t, s.AddMembers(testCtx, "g1", []string{"u1", "u2", "u3"}))
}

func TestAddMembersRollback(t *testing.T) {
	s, mock := newTestGroupStore(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO group_members`)
	prep.ExpectExec().WithArgs("g1", "u1", testNow).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("g1", "u2", testNow).WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	assert.Error(t, s.AddMembers(testCtx, "g1", []string{"u1", "u2"}))
}

func TestDeleteGroup(t *testing.T) {
	t.Run("creator", func(t *testing.T) {
		s, mock := newTestGroupStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT created_by FROM chat_groups WHERE id = \? FOR UPDATE`).
			WithArgs("g1").
			WillReturnRows(sqlmock.NewRows([]string{"created_by"}).AddRow("u1"))
		mock.ExpectExec(`DELETE FROM messages WHERE chat_type = 'group'`).
			WithArgs("g1").WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectExec(`DELETE FROM group_members WHERE group_id = \?`).
			WithArgs("g1").WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`DELETE FROM chat_groups WHERE id = \?`).
			WithArgs("g1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, s.DeleteGroup(testCtx, "g1", "u1"))
	})

	t.Run("member", func(t *testing.T) {
		s, mock := newTestGroupStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT created_by FROM chat_groups`).
			WithArgs("g1").
			WillReturnRows(sqlmock.NewRows([]string{"created_by"}).AddRow("u1"))
		mock.ExpectRollback()

		assert.Equal(t, ErrPermissionDenied, s.DeleteGroup(testCtx, "g1", "u2"))
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newTestGroupStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT created_by FROM chat_groups`).
			WithArgs("g9").
			WillReturnRows(sqlmock.NewRows([]string{"created_by"}))
		mock.ExpectRollback()

		assert.Equal(t, ErrNotFound, s.DeleteGroup(testCtx, "g9", "u1"))
	})
}

func TestRemoveMember(t *testing.T) {
	s, mock := newTestGroupStore(t)

	mock.ExpectExec(`DELETE FROM group_members WHERE group_id = \? AND user_id = \?`).
		WithArgs("g1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, s.RemoveMember(testCtx, "g1", "u2"))

	mock.ExpectExec(`DELETE FROM group_members WHERE group_id = \? AND user_id = \?`).
		WithArgs("g1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Equal(t, ErrNotFound, s.RemoveMember(testCtx, "g1", "u2"))
}

func TestListGroupsForUser(t *testing.T) {
	s, mock := newTestGroupStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM chat_groups AS g, group_members AS gm`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_by", "created_at"}).
			AddRow("g1", "ops", "u1", testNow).
			AddRow("g2", "dev", "u3", testNow))
	mock.ExpectQuery(`SELECT group_id, user_id FROM group_members WHERE group_id IN \(\?,\?\)`).
		WithArgs("g1", "g2").
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "user_id"}).
			AddRow("g1", "u1").
			AddRow("g2", "u3").
			AddRow("g1", "u2").
			AddRow("g2", "u1"))
	mock.ExpectCommit()

	groups, err := s.ListGroupsForUser(testCtx, "u1")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"u1", "u2"}, groups[0].Members)
	assert.Equal(t, []string{"u3", "u1"}, groups[1].Members)
	assert.True(t, groups[1].HasMember("u1"))
}

func TestListGroupsForUserNone(t *testing.T) {
	s, mock := newTestGroupStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM chat_groups AS g`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_by", "created_at"}))
	mock.ExpectCommit()

	groups, err := s.ListGroupsForUser(testCtx, "u1")
	require.NoError(t, err)
	assert.Empty(t, groups)
}
