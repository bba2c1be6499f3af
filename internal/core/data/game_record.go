package data

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcrodman/squirrelay/internal/room"
)

// GameRecord is the history entry for one finished game.
type GameRecord struct {
	ID                   string `gorm:"primaryKey"`
	RoomID               int    `gorm:"index"`
	ClientVersion        string
	StartedAt            time.Time `gorm:"index"`
	DurationMillis       int64
	NumberOfPlayers      int
	NumberOfGameMessages int
	CreatedAt            time.Time
}

// BeforeCreate assigns a random id to records that don't have one yet.
func (r *GameRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r *GameRecord) Duration() time.Duration {
	return time.Duration(r.DurationMillis) * time.Millisecond
}

func NewGameRecord(summary room.GameSummary) *GameRecord {
	return &GameRecord{
		RoomID:               summary.RoomID,
		ClientVersion:        summary.ClientVersion,
		StartedAt:            summary.StartedAt.UTC(),
		DurationMillis:       summary.Duration.Milliseconds(),
		NumberOfPlayers:      summary.NumberOfPlayers,
		NumberOfGameMessages: summary.NumberOfGameMessages,
	}
}

// CreateGameRecord persists the GameRecord to the database.
func CreateGameRecord(db *gorm.DB, record *GameRecord) error {
	return db.Create(record).Error
}

// FindRecentGameRecords returns up to limit records, most recently started first.
func FindRecentGameRecords(db *gorm.DB, limit int) ([]GameRecord, error) {
	var records []GameRecord
	err := db.Order("started_at desc").Limit(limit).Find(&records).Error
	return records, err
}

// FindGameRecordsByRoom returns every game played in a room id, oldest first.
// Room ids are reused once a room is disposed, so this can span several rooms.
func FindGameRecordsByRoom(db *gorm.DB, roomID int) ([]GameRecord, error) {
	var records []GameRecord
	err := db.Where("room_id = ?", roomID).Order("started_at asc").Find(&records).Error
	return records, err
}
