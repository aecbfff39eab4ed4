package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// UpsertFriendTabs replaces the full tab list of a friend.
// Receiving tabs implies the friend is online.
func (db *DB) UpsertFriendTabs(friendID string, tabs []TabRef) error {
	if tabs == nil {
		tabs = []TabRef{}
	}
	data, err := json.Marshal(tabs)
	if err != nil {
		return fmt.Errorf("encode tabs: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO friend_presence (friend_id, online, tabs_json, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(friend_id) DO UPDATE SET
			online = 1,
			tabs_json = excluded.tabs_json,
			updated_at = excluded.updated_at`,
		friendID, string(data), time.Now().UnixMilli())
	return err
}

// UpsertFriendActiveTab sets the focused tab of a friend.
func (db *DB) UpsertFriendActiveTab(friendID string, tab TabRef) error {
	_, err := db.Exec(`
		INSERT INTO friend_presence (friend_id, online, active_tab_id, active_title, active_url, has_active_tab, updated_at)
		VALUES (?, 1, ?, ?, ?, 1, ?)
		ON CONFLICT(friend_id) DO UPDATE SET
			online = 1,
			active_tab_id = excluded.active_tab_id,
			active_title = excluded.active_title,
			active_url = excluded.active_url,
			has_active_tab = 1,
			updated_at = excluded.updated_at`,
		friendID, tab.ID, tab.Title, tab.URL, time.Now().UnixMilli())
	return err
}

// ReplaceFriends swaps the whole presence cache for a fresh friends snapshot.
// Offline friends keep their profile but lose any tab data.
func (db *DB) ReplaceFriends(friends []FriendPresence) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM friend_presence`); err != nil {
		return fmt.Errorf("clear friend_presence: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, f := range friends {
		tabs := f.Tabs
		var active TabRef
		hasActive := f.ActiveTab != nil
		if !f.Online {
			tabs, hasActive = nil, false
		}
		if hasActive {
			active = *f.ActiveTab
		}
		if tabs == nil {
			tabs = []TabRef{}
		}
		data, err := json.Marshal(tabs)
		if err != nil {
			return fmt.Errorf("encode tabs for %q: %w", f.FriendID, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO friend_presence (friend_id, username, display_name, online, last_seen,
				active_tab_id, active_title, active_url, has_active_tab, tabs_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.FriendID, f.Username, f.DisplayName, f.Online, f.LastSeen,
			active.ID, active.Title, active.URL, hasActive, string(data), now); err != nil {
			return fmt.Errorf("insert friend %q: %w", f.FriendID, err)
		}
	}
	return tx.Commit()
}

// ListFriendPresence returns every cached friend, most recently updated first.
func (db *DB) ListFriendPresence() ([]FriendPresence, error) {
	rows, err := db.Query(presenceSelect + ` ORDER BY updated_at DESC, friend_id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []FriendPresence
	for rows.Next() {
		f, err := scanPresence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// GetFriendPresence returns one friend, or nil if not cached.
func (db *DB) GetFriendPresence(friendID string) (*FriendPresence, error) {
	f, err := scanPresence(db.QueryRow(presenceSelect+` WHERE friend_id = ?`, friendID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

// ClearFriendPresence empties the cache, e.g. on logout.
func (db *DB) ClearFriendPresence() error {
	_, err := db.Exec(`DELETE FROM friend_presence`)
	return err
}

const presenceSelect = `
	SELECT friend_id, username, display_name, online, last_seen,
		active_tab_id, active_title, active_url, has_active_tab, tabs_json, updated_at
	FROM friend_presence`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPresence(row rowScanner) (*FriendPresence, error) {
	var (
		f         FriendPresence
		active    TabRef
		hasActive bool
		tabsJSON  string
	)
	if err := row.Scan(&f.FriendID, &f.Username, &f.DisplayName, &f.Online, &f.LastSeen,
		&active.ID, &active.Title, &active.URL, &hasActive, &tabsJSON, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if hasActive {
		f.ActiveTab = &active
	}
	if err := json.Unmarshal([]byte(tabsJSON), &f.Tabs); err != nil {
		return nil, fmt.Errorf("decode tabs for %q: %w", f.FriendID, err)
	}
	return &f, nil
}
