package metrics

import (
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/models"
)

// Event is the outcome of one timeline build
type Event struct {
	UserAlias      string
	Performed      bool
	Reason         string
	Strategy       string
	Source         string
	RealCount      int
	CandidateCount int
	InjectedCount  int
	Duration       time.Duration
	UpstreamError  string
	CandidateError string
	At             time.Time
}

// Recorder accepts injection outcomes. Record must not block or fail the caller.
type Recorder interface {
	Record(e Event)
}

// Sink exports events to Prometheus and the in-memory read model immediately
// and persists them as InjectionEvent rows from a background worker.
type Sink struct {
	db      *gorm.DB
	stats   *InjectionStats
	m       *Metrics
	events  chan Event
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewSink creates a sink; a nil db disables persistence
func NewSink(db *gorm.DB, stats *InjectionStats, buffer int) *Sink {
	if buffer <= 0 {
		buffer = 256
	}
	if stats == nil {
		stats = NewInjectionStats()
	}
	return &Sink{
		db:      db,
		stats:   stats,
		m:       Get(),
		events:  make(chan Event, buffer),
		workers: 1,
	}
}

// Start launches the persistence worker
func (s *Sink) Start() {
	if s.db == nil {
		return
	}
	logger.Log.Info("Starting injection event recorder", zap.Int("buffer", cap(s.events)))
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Stop stops accepting events and waits for queued ones to be written
func (s *Sink) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()
	s.wg.Wait()
}

// Stats returns the read model fed by this sink
func (s *Sink) Stats() *InjectionStats {
	return s.stats
}

// Record implements Recorder
func (s *Sink) Record(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	performed := strconv.FormatBool(e.Performed)
	s.m.InjectionRequestsTotal.WithLabelValues(e.Strategy, e.Source, performed).Inc()
	s.m.InjectionDuration.WithLabelValues(e.Source).Observe(e.Duration.Seconds())
	if e.InjectedCount > 0 {
		s.m.InjectedPostsTotal.WithLabelValues(e.Strategy, e.Source).Add(float64(e.InjectedCount))
	}
	if e.UpstreamError != "" {
		s.m.FetchErrorsTotal.WithLabelValues("upstream").Inc()
	}
	if e.CandidateError != "" {
		s.m.FetchErrorsTotal.WithLabelValues("candidates").Inc()
	}
	s.stats.Observe(e)

	if s.db == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- e:
	default:
		s.m.RecorderDroppedTotal.Inc()
		logger.Log.Warn("Injection event dropped, recorder queue full")
	}
}

func (s *Sink) worker() {
	defer s.wg.Done()
	for e := range s.events {
		row := models.InjectionEvent{
			UserAlias:      e.UserAlias,
			Performed:      e.Performed,
			Reason:         e.Reason,
			Strategy:       e.Strategy,
			Source:         e.Source,
			RealCount:      e.RealCount,
			CandidateCount: e.CandidateCount,
			InjectedCount:  e.InjectedCount,
			DurationMs:     float64(e.Duration.Microseconds()) / 1000,
			UpstreamError:  e.UpstreamError,
			CandidateError: e.CandidateError,
			CreatedAt:      e.At,
		}
		if err := s.db.Create(&row).Error; err != nil {
			logger.Log.Warn("Failed to persist injection event", zap.Error(err))
		}
	}
}

// RecentEvents returns the latest persisted events, newest first
func RecentEvents(db *gorm.DB, limit int) ([]models.InjectionEvent, error) {
	var events []models.InjectionEvent
	err := db.Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}
