package data

import (
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/squirrelay/internal/room"
)

// Recorder writes finished games to the database from its own goroutine so
// the relay loop never waits on the database.
type Recorder struct {
	db     *gorm.DB
	logger logrus.FieldLogger

	mu      sync.Mutex
	closed  bool
	dropped int
	games   chan room.GameSummary
	done    chan struct{}
}

func NewRecorder(db *gorm.DB, logger logrus.FieldLogger, buffer int) *Recorder {
	r := &Recorder{
		db:     db,
		logger: logger,
		games:  make(chan room.GameSummary, buffer),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// GameFinished queues a summary for writing. It never blocks; summaries that
// don't fit in the buffer are dropped.
func (r *Recorder) GameFinished(summary room.GameSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	select {
	case r.games <- summary:
	default:
		r.dropped++
		r.logger.WithField("room", summary.RoomID).Warn("history buffer full, dropping game record")
	}
}

// Dropped returns the number of summaries discarded because the buffer was full.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting summaries and waits for the queued ones to be written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.games)
	r.mu.Unlock()

	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for summary := range r.games {
		record := NewGameRecord(summary)
		if err := CreateGameRecord(r.db, record); err != nil {
			r.logger.WithField("room", summary.RoomID).Errorf("error recording game: %v", err)
			continue
		}
		r.logger.WithFields(logrus.Fields{
			"room":     summary.RoomID,
			"record":   record.ID,
			"duration": summary.Duration,
		}).Debug("game recorded")
	}
}
