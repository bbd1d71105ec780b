// Package statsstore is StatsCollector: per-day, per-(adapter, key)
// counters durable on SQLite via GORM, pruned to a 90-day retention
// window on every write.
package statsstore

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clawgate/clawgate/internal/clawtypes"
	"github.com/clawgate/clawgate/internal/sqlstore"
)

const retentionDays = 90

// DailyCounter is one (day, adapter, key) bucket.
type DailyCounter struct {
	Day          string `gorm:"primaryKey;size:10"`
	Adapter      string `gorm:"primaryKey;size:64"`
	Key          string `gorm:"primaryKey;size:64"`
	Count        int64
	FirstEventAt time.Time
	LastEventAt  time.Time
}

func (DailyCounter) TableName() string { return "daily_counters" }

// Store is the StatsCollector: it subscribes to EventBus appends and also
// accepts direct Increment calls for outbound sends and API accounting.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if absent) the stats database at dsn and migrates
// its schema.
func Open(dsn string) (*Store, error) {
	gdb, err := sqlstore.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&DailyCounter{}); err != nil {
		return nil, err
	}
	return &Store{db: gdb}, nil
}

// ObserveEvent classifies an EventBus append by adapter and type/source
// and increments its counter.
func (s *Store) ObserveEvent(ev clawtypes.Event) error {
	key := string(ev.Type)
	if source := ev.Payload["source"]; source != "" {
		key = key + "." + source
	}
	return s.Increment(key, ev.Adapter, ev.ObservedAt)
}

// Increment bumps the counter for (today, adapter, key), stamping
// first/last event times, and prunes buckets older than the retention
// window.
func (s *Store) Increment(key, adapter string, at time.Time) error {
	at = at.UTC()
	day := at.Format("2006-01-02")

	err := s.db.Transaction(func(tx *gorm.DB) error {
		counter := DailyCounter{
			Day:          day,
			Adapter:      adapter,
			Key:          key,
			Count:        1,
			FirstEventAt: at,
			LastEventAt:  at,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "day"}, {Name: "adapter"}, {Name: "key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":          gorm.Expr("count + 1"),
				"last_event_at":  at,
			}),
		}).Create(&counter).Error; err != nil {
			return err
		}
		cutoff := at.AddDate(0, 0, -retentionDays).Format("2006-01-02")
		return tx.Where("day < ?", cutoff).Delete(&DailyCounter{}).Error
	})
	return err
}

// Totals returns every counter bucket for the given day, or every day if
// day is empty.
func (s *Store) Totals(day string) ([]DailyCounter, error) {
	var counters []DailyCounter
	q := s.db.Model(&DailyCounter{})
	if day != "" {
		q = q.Where("day = ?", day)
	}
	if err := q.Order("day, adapter, key").Find(&counters).Error; err != nil {
		return nil, err
	}
	return counters, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
