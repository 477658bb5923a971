package session

import (
	"encoding/json"
	"log"
	"os"
	"sync"

	"github.com/Capstone-E1/hydrodose_console/internal/models"
)

// Store holds the operator's session (user record + bearer token). It is the
// single shared mutable resource of the console: written by login/logout, read
// by every outbound API request, and cleared by the global 401 handler.
type Store interface {
	// Current returns the active session, if any
	Current() (models.Session, bool)

	// Save replaces the active session
	Save(models.Session) error

	// Clear removes the active session
	Clear() error

	// OnInvalidate registers a callback fired whenever the session is cleared
	// because the backend rejected it (401). The UI layer uses this to force
	// navigation back to the login view.
	OnInvalidate(func())

	// Invalidate clears the session and fires all registered callbacks
	Invalidate() error
}

// FileStore persists the session as a JSON file across console restarts,
// the desktop analog of the browser's localStorage "user"/"access_token" keys.
type FileStore struct {
	path string

	mu        sync.RWMutex
	session   models.Session
	hasActive bool
	callbacks []func()
}

// NewFileStore creates a session store backed by the given file path and loads
// any previously persisted session.
func NewFileStore(path string) *FileStore {
	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		log.Printf("Session file %s is unreadable, discarding: %v", path, err)
		os.Remove(path)
		return s
	}

	if session.Valid() {
		s.session = session
		s.hasActive = true
	}
	return s
}

// Current returns the active session, if any
func (s *FileStore) Current() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, s.hasActive
}

// Save replaces the active session and persists it to disk
func (s *FileStore) Save(session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return err
	}

	s.session = session
	s.hasActive = true
	return nil
}

// Clear removes the active session and its file
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

func (s *FileStore) clearLocked() error {
	s.session = models.Session{}
	s.hasActive = false
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// OnInvalidate registers a callback fired when the session is rejected by the backend
func (s *FileStore) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// Invalidate clears the session and fires all registered callbacks
func (s *FileStore) Invalidate() error {
	s.mu.Lock()
	err := s.clearLocked()
	callbacks := make([]func(), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return err
}

// MemoryStore is an in-memory session store used by tests and the one-shot CLI
type MemoryStore struct {
	mu        sync.RWMutex
	session   models.Session
	hasActive bool
	callbacks []func()
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Current returns the active session, if any
func (s *MemoryStore) Current() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, s.hasActive
}

// Save replaces the active session
func (s *MemoryStore) Save(session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	s.hasActive = true
	return nil
}

// Clear removes the active session
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = models.Session{}
	s.hasActive = false
	return nil
}

// OnInvalidate registers a callback fired when the session is rejected by the backend
func (s *MemoryStore) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// Invalidate clears the session and fires all registered callbacks
func (s *MemoryStore) Invalidate() error {
	s.mu.Lock()
	s.session = models.Session{}
	s.hasActive = false
	callbacks := make([]func(), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return nil
}
