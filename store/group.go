package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/mqy/minichat/chatstore"
)

const (
	insertGroupSQL        = "INSERT INTO chat_groups (id, name, created_by, created_at) VALUES (?,?,?,?)"
	insertMemberSQL       = "INSERT INTO group_members (group_id, user_id, joined_at) VALUES (?,?,?)"
	lockGroupSQL          = "SELECT created_by FROM chat_groups WHERE id = ? FOR UPDATE"
	deleteGroupMsgsSQL    = "DELETE FROM messages WHERE chat_type = 'group' AND chat_id = ?"
	deleteGroupMembersSQL = "DELETE FROM group_members WHERE group_id = ?"
	deleteGroupSQL        = "DELETE FROM chat_groups WHERE id = ?"
	deleteMemberSQL       = "DELETE FROM group_members WHERE group_id = ? AND user_id = ?"
	listGroupsSQL         = "SELECT g.id, g.name, g.created_by, g.created_at " +
		"FROM chat_groups AS g, group_members AS gm " +
		"WHERE gm.user_id = ? AND gm.group_id = g.id ORDER BY g.created_at ASC"
	listMembersSQL = "SELECT group_id, user_id FROM group_members WHERE group_id IN (%s) ORDER BY joined_at ASC"
)

// groupStore implements interface `IGroupStore` on MySQL.
type groupStore struct {
	*sql.DB
	now   func() time.Time
	newId func() string
}

func NewGroupStore(db *sql.DB) *groupStore {
	return &groupStore{
		DB:    db,
		now:   time.Now,
		newId: newId,
	}
}

func (s *groupStore) CreateGroup(ctx context.Context, name, creatorId string) (*chatstore.Group, error) {
	g := &chatstore.Group{
		Id:        s.newId(),
		Name:      name,
		CreatedBy: creatorId,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.ExecContext(ctx, insertGroupSQL, g.Id, g.Name, g.CreatedBy, g.CreatedAt); err != nil {
		glog.Errorf("insert group exec err: %v", err)
		return nil, err
	}
	return g, nil
}

func (s *groupStore) AddMembers(ctx context.Context, groupId string, userIds []string) error {
	now := s.now().UTC().Truncate(time.Millisecond)
	return withTx(ctx, s.DB, func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertMemberSQL)
		if err != nil {
			glog.Errorf("prepare insert member err: %v", err)
			return err
		}
		defer stmt.Close()

		for _, uid := range userIds {
			if _, err := stmt.ExecContext(ctx, groupId, uid, now); err != nil {
				if IsDupKeyError(err) {
					continue // already a member.
				}
				glog.Errorf("insert member exec err: %v", err)
				return err
			}
		}
		return nil
	})
}

func (s *groupStore) DeleteGroup(ctx context.Context, groupId, requesterId string) error {
	return withTx(ctx, s.DB, func(ctx context.Context, tx *sql.Tx) error {
		var creator string
		if err := tx.QueryRowContext(ctx, lockGroupSQL, groupId).Scan(&creator); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
		if creator != requesterId {
			return ErrPermissionDenied
		}

		for _, q := range []string{deleteGroupMsgsSQL, deleteGroupMembersSQL, deleteGroupSQL} {
			if _, err := tx.ExecContext(ctx, q, groupId); err != nil {
				glog.Errorf("delete group `%s` exec err: %v", groupId, err)
				return err
			}
		}
		return nil
	})
}

func (s *groupStore) RemoveMember(ctx context.Context, groupId, userId string) error {
	res, err := s.ExecContext(ctx, deleteMemberSQL, groupId, userId)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *groupStore) ListGroupsForUser(ctx context.Context, userId string) ([]*chatstore.Group, error) {
	var groups []*chatstore.Group
	byId := make(map[string]*chatstore.Group)

	if err := withTx(ctx, s.DB, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, listGroupsSQL, userId)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var g chatstore.Group
			if err := rows.Scan(&g.Id, &g.Name, &g.CreatedBy, &g.CreatedAt); err != nil {
				glog.Errorf("list groups scan err: %v", err)
				return err
			}
			groups = append(groups, &g)
			byId[g.Id] = &g
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(groups) == 0 {
			return nil
		}

		args := make([]interface{}, 0, len(groups))
		for _, g := range groups {
			args = append(args, g.Id)
		}
		mrows, err := tx.QueryContext(ctx, fmt.Sprintf(listMembersSQL, placeholders(len(args))), args...)
		if err != nil {
			return err
		}
		defer mrows.Close()

		for mrows.Next() {
			var gid, uid string
			if err := mrows.Scan(&gid, &uid); err != nil {
				glog.Errorf("list members scan err: %v", err)
				return err
			}
			if g, ok := byId[gid]; ok {
				g.Members = append(g.Members, uid)
			}
		}
		return mrows.Err()
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}); err != nil {
		return nil, err
	}
	return groups, nil
}
