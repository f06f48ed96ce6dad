package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/duelgrid/duel-backend/internal/engine"
)

// GameRecord is the started-game row. Roster is the finalized seating
// with deck references reduced to their opaque identifiers; deck contents
// never reach the archive.
type GameRecord struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"uniqueIndex;size:64"`
	StartedAt time.Time
	EndedAt   *time.Time
	Winner    string `gorm:"size:64"`
	Roster    string `gorm:"type:jsonb"`
}

// Store persists game records. Sessions call it fire-and-forget; errors
// are logged by the caller, never retried.
type Store interface {
	RecordStart(ctx context.Context, rec *GameRecord) error
	RecordFinish(ctx context.Context, sessionID, winner string, endedAt time.Time) error
}

type DB struct {
	db *gorm.DB
}

func Open(dsn string) (*DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if err := db.AutoMigrate(&GameRecord{}); err != nil {
		return nil, fmt.Errorf("migrate archive schema: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) RecordStart(ctx context.Context, rec *GameRecord) error {
	if err := d.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("record start for %s: %w", rec.SessionID, err)
	}
	return nil
}

func (d *DB) RecordFinish(ctx context.Context, sessionID, winner string, endedAt time.Time) error {
	err := d.db.WithContext(ctx).
		Model(&GameRecord{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{"winner": winner, "ended_at": endedAt}).Error
	if err != nil {
		return fmt.Errorf("record finish for %s: %w", sessionID, err)
	}
	return nil
}

// Noop is the archive used when no DSN is configured.
type Noop struct{}

func (Noop) RecordStart(context.Context, *GameRecord) error { return nil }

func (Noop) RecordFinish(context.Context, string, string, time.Time) error { return nil }

type rosterSeat struct {
	User   string `json:"user"`
	Side   string `json:"side"`
	DeckID string `json:"deck_id"`
}

// EncodeRoster serializes a finalized roster for the archive row.
func EncodeRoster(roster engine.Roster) string {
	seats := make([]rosterSeat, 0, len(roster))
	for _, seat := range roster {
		seats = append(seats, rosterSeat{
			User:   seat.User,
			Side:   string(seat.Side),
			DeckID: seat.DeckID,
		})
	}
	b, _ := json.Marshal(seats)
	return string(b)
}
