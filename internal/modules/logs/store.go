package logs

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Store is a zerolog writer that persists warn-and-above events so they show
// up on the logs page. It parses the JSON event to recover the message, the
// error, and the component tag (repo/service/handler) the emitting logger
// was built with; the tag becomes the entry's category. Until a repository
// is attached, events pass through unstored; persistence failures are
// swallowed because logging must never take the request down with it.
type Store struct {
	mu   sync.RWMutex
	repo *Repository
}

// NewStore creates a log store with no repository attached yet.
func NewStore() *Store {
	return &Store{}
}

// Attach connects the store to the log repository once the database is open.
func (s *Store) Attach(repo *Repository) {
	s.mu.Lock()
	s.repo = repo
	s.mu.Unlock()
}

// Write implements io.Writer. Events without a level are not stored.
func (s *Store) Write(p []byte) (int, error) {
	return len(p), nil
}

// WriteLevel implements zerolog.LevelWriter.
func (s *Store) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel || level >= zerolog.NoLevel {
		return len(p), nil
	}
	s.mu.RLock()
	repo := s.repo
	s.mu.RUnlock()
	if repo == nil {
		return len(p), nil
	}

	var event map[string]interface{}
	if err := json.Unmarshal(p, &event); err != nil {
		return len(p), nil
	}
	message, _ := event[zerolog.MessageFieldName].(string)
	details, _ := event[zerolog.ErrorFieldName].(string)

	_ = repo.Insert(LogEntry{
		Level:    level.String(),
		Category: category(event),
		Message:  message,
		Details:  details,
	})
	return len(p), nil
}

// category picks the component tag the emitting logger carries.
func category(event map[string]interface{}) string {
	for _, key := range []string{"repo", "service", "handler", "component"} {
		if v, ok := event[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
