package mockstore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server is an in-memory fake control plane. It implements http.Handler and
// keeps all state behind a mutex so tests can issue concurrent requests.
type Server struct {
	mu        sync.Mutex
	databases map[string]*database
	tokenSeq  int64

	requests atomic.Int64

	// Failure injection state
	failStatus  int
	failCode    string
	failMessage string

	router chi.Router
}

// New creates an empty fake control plane.
func New() *Server {
	s := &Server{
		databases: make(map[string]*database),
	}

	r := chi.NewRouter()
	r.Post("/dbs", s.handleCreateDatabase)
	r.Get("/dbs/{db}", s.handleGetDatabase)
	r.Post("/dbs/{db}/users", s.handleCreateUser)
	r.Get("/dbs/{db}/users/{user}", s.handleGetUser)
	r.Post("/dbs/{db}/colls", s.handleCreateContainer)
	r.Post("/dbs/{db}/users/{user}/permissions", s.handleCreatePermission)
	r.Delete("/dbs/{db}/users/{user}/permissions/{perm}", s.handleDeletePermission)
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)

	s.mu.Lock()
	failStatus, failCode, failMessage := s.failStatus, s.failCode, s.failMessage
	s.mu.Unlock()

	if failStatus != 0 {
		writeError(w, failStatus, failCode, failMessage)
		return
	}

	if r.Header.Get("Authorization") == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "missing authorization header")
		return
	}

	s.router.ServeHTTP(w, r)
}

// RequestCount returns the number of requests received, including rejected ones.
func (s *Server) RequestCount() int64 {
	return s.requests.Load()
}

// FailWith makes every subsequent request answer with the given error until
// ClearFailure is called.
func (s *Server) FailWith(status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus, s.failCode, s.failMessage = status, code, message
}

// ClearFailure disables failure injection.
func (s *Server) ClearFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus, s.failCode, s.failMessage = 0, "", ""
}

// Reset drops all state and failure injection.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.databases = make(map[string]*database)
	s.failStatus, s.failCode, s.failMessage = 0, "", ""
}

// HasDatabase reports whether the database exists.
func (s *Server) HasDatabase(db string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.databases[db]
	return ok
}

// HasUser reports whether the user exists in the database.
func (s *Server) HasUser(db, user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.databases[db]
	return ok && d.users[user]
}

// HasContainer reports whether the container exists in the database.
func (s *Server) HasContainer(db, container string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.databases[db]
	if !ok {
		return false
	}
	_, ok = d.containers[container]
	return ok
}

// GetPermission returns a stored permission and whether it exists.
func (s *Server) GetPermission(db, user, permissionID string) (Permission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.databases[db]
	if !ok {
		return Permission{}, false
	}
	p, ok := d.permissions[user+"/"+permissionID]
	return p, ok
}

// PermissionCount returns the number of live permissions for a user.
func (s *Server) PermissionCount(db, user string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.databases[db]
	if !ok {
		return 0
	}
	count := 0
	for key := range d.permissions {
		if len(key) > len(user) && key[:len(user)+1] == user+"/" {
			count++
		}
	}
	return count
}

// nextToken mints a unique opaque token string.
// Uniqueness is what the rotation tests assert on.
func (s *Server) nextToken(permissionID string) string {
	s.tokenSeq++
	return fmt.Sprintf("resource-token-%s-%d", permissionID, s.tokenSeq)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}

func now() int64 {
	return time.Now().Unix()
}
