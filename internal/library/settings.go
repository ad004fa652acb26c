package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Setting keys used by the CLI and watcher.
const (
	SettingColours = "colours"
	SettingMethod  = "method"
)

// subscriberBuffer is the per-subscriber queue length. Changes are dropped
// for subscribers that fall this far behind.
const subscriberBuffer = 8

// Change is delivered to subscribers when a setting is written.
type Change struct {
	Key   string
	Value string
}

// Get returns the value stored under key. ok is false when the key is unset.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key and notifies subscribers of that key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("setting key cannot be empty")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}

	s.publish(Change{Key: key, Value: value})
	return nil
}

// Subscribe returns a channel receiving changes to key and a function that
// cancels the subscription. The channel is closed on cancel or Store.Close.
func (s *Store) Subscribe(key string) (<-chan Change, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++

	ch := make(chan Change, subscriberBuffer)
	if s.subscribers[key] == nil {
		s.subscribers[key] = make(map[int]chan Change)
	}
	s.subscribers[key][id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[key][id]; ok {
			close(c)
			delete(s.subscribers[key], id)
		}
	}
	return ch, cancel
}

func (s *Store) publish(c Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subscribers[c.Key] {
		select {
		case ch <- c:
		default:
		}
	}
}
