// Package opslog is OpsLogStore: an append-only structured log of
// operational events, durable on SQLite via GORM, queried in reverse
// chronological order by StallDetector and the /v1/ops/logs endpoint.
package opslog

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/clawgate/clawgate/internal/sqlstore"
)

// Entry is one ops-log row. Message follows a key=value convention; at
// minimum trace_id=, stage=, action=, status=, latency_ms=, error_code=.
type Entry struct {
	ID      uint `gorm:"primaryKey"`
	Ts      time.Time
	Level   string `gorm:"size:16;index"`
	Event   string `gorm:"size:64;index"`
	Role    string `gorm:"size:32"`
	Script  string `gorm:"size:128"`
	Message string
	TraceID string `gorm:"size:64;index"`
	Project string `gorm:"size:128;index"`
}

func (Entry) TableName() string { return "ops_log" }

type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	gdb, err := sqlstore.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &Store{db: gdb}, nil
}

// Fields is the ordered key=value payload for one log line.
type Fields map[string]string

// Append records one ops-log entry. traceID, if present in fields under
// "trace_id", is extracted into its own indexed column so StallDetector
// can correlate without parsing Message.
func (s *Store) Append(level, event, role, script string, fields Fields) error {
	entry := Entry{
		Ts:      time.Now().UTC(),
		Level:   level,
		Event:   event,
		Role:    role,
		Script:  script,
		Message: formatFields(fields),
		TraceID: fields["trace_id"],
		Project: fields["project"],
	}
	return s.db.Create(&entry).Error
}

func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, ", ")
}

// Recent returns up to limit entries in reverse chronological order,
// optionally filtered by level and/or trace id.
func (s *Store) Recent(limit int, level, trace string) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.db.Model(&Entry{}).Order("ts DESC, id DESC").Limit(limit)
	if level != "" {
		q = q.Where("level = ?", level)
	}
	if trace != "" {
		q = q.Where("trace_id = ?", trace)
	}
	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// RecentByEvent returns up to limit entries for a specific event name, in
// reverse chronological order. Used by StallDetector to locate the latest
// tmux.completion / tmux.forward / line_send_ok rows.
func (s *Store) RecentByEvent(event string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []Entry
	if err := s.db.Model(&Entry{}).
		Where("event = ?", event).
		Order("ts DESC, id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// RecentByEventAndProject is RecentByEvent narrowed to one project.
func (s *Store) RecentByEventAndProject(event, project string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []Entry
	if err := s.db.Model(&Entry{}).
		Where("event = ? AND project = ?", event, project).
		Order("ts DESC, id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
