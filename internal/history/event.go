package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a history event.
type Kind string

const (
	Activated   Kind = "activated"
	Deactivated Kind = "deactivated"
	Started     Kind = "started"
	Stopped     Kind = "stopped"
)

// Event is one recorded observation.
type Event struct {
	ID           int64
	SessionID    string
	DeviceSerial string
	Kind         Kind
	Enabled      bool
	Connected    bool
	At           time.Time
}

// Active reports whether USB debugging was on at the time of the event.
func (e Event) Active() bool {
	return e.Enabled && e.Connected
}

// Record inserts an event. A zero At is set to now.
func (h *DB) Record(e Event) (int64, error) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	res, err := h.db.Exec(
		`INSERT INTO events (session_id, device_serial, kind, enabled, connected, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.DeviceSerial, string(e.Kind), e.Enabled, e.Connected, e.At.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("record event: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit events for serial, newest first. An empty
// serial matches all devices.
func (h *DB) Recent(serial string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.Query(
		`SELECT id, session_id, device_serial, kind, enabled, connected, at
		 FROM events
		 WHERE ? = '' OR device_serial = ?
		 ORDER BY at DESC, id DESC
		 LIMIT ?`,
		serial, serial, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get recent: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Last returns the newest event for serial, nil if there is none.
func (h *DB) Last(serial string) (*Event, error) {
	row := h.db.QueryRow(
		`SELECT id, session_id, device_serial, kind, enabled, connected, at
		 FROM events WHERE device_serial = ?
		 ORDER BY at DESC, id DESC LIMIT 1`,
		serial,
	)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last: %w", err)
	}
	return &e, nil
}

// Stats counts transitions recorded for a device.
type Stats struct {
	Activations   int
	Deactivations int
	Sessions      int
}

// GetStats returns transition counts for serial.
func (h *DB) GetStats(serial string) (Stats, error) {
	var s Stats
	err := h.db.QueryRow(
		`SELECT
		   COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
		   COUNT(DISTINCT session_id)
		 FROM events WHERE device_serial = ?`,
		string(Activated), string(Deactivated), serial,
	).Scan(&s.Activations, &s.Deactivations, &s.Sessions)
	if err != nil {
		return s, fmt.Errorf("get stats: %w", err)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (Event, error) {
	var e Event
	var kind string
	err := s.Scan(&e.ID, &e.SessionID, &e.DeviceSerial, &kind, &e.Enabled, &e.Connected, &e.At)
	e.Kind = Kind(kind)
	return e, err
}
