package data

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/squirrelay/internal/room"
)

// Creates a database for testing. For the sake of simplicity, this only uses the
// SQLite engine and creates a new database on every invocation since it is relatively
// cheap to do so.
func setUpDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"), false)
	if err != nil {
		t.Fatalf("error initializing test database: %s", err)
	}
	t.Cleanup(func() {
		if err := Shutdown(db); err != nil {
			t.Errorf("error closing test database: %v", err)
		}
	})
	return db
}

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.Out = io.Discard
	return logger
}

var gameStart = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func summaryFor(roomID int, startOffset time.Duration) room.GameSummary {
	return room.GameSummary{
		RoomID:               roomID,
		ClientVersion:        "1.0",
		StartedAt:            gameStart.Add(startOffset),
		Duration:             90 * time.Second,
		NumberOfPlayers:      3,
		NumberOfGameMessages: 42,
	}
}

func TestOpen_UnknownEngine(t *testing.T) {
	if _, err := Open("mongo", "", false); err == nil {
		t.Errorf("expected an error for an unknown engine")
	}
}

func TestCreateGameRecord(t *testing.T) {
	db := setUpDatabase(t)

	record := NewGameRecord(summaryFor(1234, 0))
	if err := CreateGameRecord(db, record); err != nil {
		t.Fatalf("CreateGameRecord() returned an unexpected error: %v", err)
	}
	if record.ID == "" {
		t.Fatalf("expected an id to be assigned on create")
	}

	records, err := FindGameRecordsByRoom(db, 1234)
	if err != nil {
		t.Fatalf("FindGameRecordsByRoom() returned an unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	got := records[0]
	if got.ID != record.ID {
		t.Errorf("ID = %s, want %s", got.ID, record.ID)
	}
	if !got.StartedAt.Equal(gameStart) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, gameStart)
	}
	if got.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v, want 90s", got.Duration())
	}
	if diff := deep.Equal(
		[]interface{}{got.RoomID, got.ClientVersion, got.NumberOfPlayers, got.NumberOfGameMessages},
		[]interface{}{1234, "1.0", 3, 42},
	); diff != nil {
		t.Errorf("record fields differ: %v", diff)
	}
}

func TestFindRecentGameRecords(t *testing.T) {
	db := setUpDatabase(t)
	for i, roomID := range []int{10, 20, 30, 40} {
		if err := CreateGameRecord(db, NewGameRecord(summaryFor(roomID, time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("error seeding game record: %v", err)
		}
	}

	records, err := FindRecentGameRecords(db, 2)
	if err != nil {
		t.Fatalf("FindRecentGameRecords() returned an unexpected error: %v", err)
	}

	var rooms []int
	for _, r := range records {
		rooms = append(rooms, r.RoomID)
	}
	if diff := deep.Equal(rooms, []int{40, 30}); diff != nil {
		t.Errorf("unexpected records: %v", diff)
	}
}

func TestRecorder(t *testing.T) {
	db := setUpDatabase(t)
	recorder := NewRecorder(db, testLogger(), 8)

	recorder.GameFinished(summaryFor(1, 0))
	recorder.GameFinished(summaryFor(2, time.Minute))
	recorder.Close()

	// Summaries after Close are ignored.
	recorder.GameFinished(summaryFor(3, 2*time.Minute))

	records, err := FindRecentGameRecords(db, 10)
	if err != nil {
		t.Fatalf("FindRecentGameRecords() returned an unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 recorded games, got %d", len(records))
	}
	if recorder.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", recorder.Dropped())
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	r := &Recorder{
		logger: testLogger(),
		games:  make(chan room.GameSummary, 1),
		done:   make(chan struct{}),
	}

	r.GameFinished(summaryFor(1, 0))
	r.GameFinished(summaryFor(2, 0))

	if r.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", r.Dropped())
	}
}
