package mockstore

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type idBody struct {
	ID string `json:"id"`
}

// handleCreateDatabase handles POST /dbs
func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	var req idBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "BadRequest", "database id is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.databases[req.ID]; exists {
		writeError(w, http.StatusConflict, "Conflict", "database already exists")
		return
	}

	s.databases[req.ID] = newDatabase()
	writeJSON(w, http.StatusCreated, idBody{ID: req.ID})
}

// handleGetDatabase handles GET /dbs/{db}
func (s *Server) handleGetDatabase(w http.ResponseWriter, r *http.Request) {
	db := chi.URLParam(r, "db")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.databases[db]; !exists {
		writeError(w, http.StatusNotFound, "NotFound", "database not found")
		return
	}
	writeJSON(w, http.StatusOK, idBody{ID: db})
}

// handleCreateUser handles POST /dbs/{db}/users
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	db := chi.URLParam(r, "db")

	var req idBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "BadRequest", "user id is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, exists := s.databases[db]
	if !exists {
		writeError(w, http.StatusNotFound, "NotFound", "database not found")
		return
	}
	if d.users[req.ID] {
		writeError(w, http.StatusConflict, "Conflict", "user already exists")
		return
	}

	d.users[req.ID] = true
	writeJSON(w, http.StatusCreated, idBody{ID: req.ID})
}

// handleGetUser handles GET /dbs/{db}/users/{user}
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	db := chi.URLParam(r, "db")
	user := chi.URLParam(r, "user")

	s.mu.Lock()
	defer s.mu.Unlock()

	d, exists := s.databases[db]
	if !exists || !d.users[user] {
		writeError(w, http.StatusNotFound, "NotFound", "user not found")
		return
	}
	writeJSON(w, http.StatusOK, idBody{ID: user})
}

// handleCreateContainer handles POST /dbs/{db}/colls
func (s *Server) handleCreateContainer(w http.ResponseWriter, r *http.Request) {
	db := chi.URLParam(r, "db")

	var req Container
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "BadRequest", "container id is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, exists := s.databases[db]
	if !exists {
		writeError(w, http.StatusNotFound, "NotFound", "database not found")
		return
	}
	if _, dup := d.containers[req.ID]; dup {
		writeError(w, http.StatusConflict, "Conflict", "container already exists")
		return
	}

	d.containers[req.ID] = req
	writeJSON(w, http.StatusCreated, req)
}

// handleCreatePermission handles POST /dbs/{db}/users/{user}/permissions
func (s *Server) handleCreatePermission(w http.ResponseWriter, r *http.Request) {
	db := chi.URLParam(r, "db")
	user := chi.URLParam(r, "user")

	var req Permission
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "BadRequest", "permission id is required")
		return
	}

	// Honor the expiry header the way the real control plane does: reject
	// garbage, otherwise accept and let the token carry the lifetime.
	if raw := r.Header.Get("x-ms-documentdb-expiry-seconds"); raw != "" {
		if _, err := strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, "BadRequest", "invalid expiry header")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, exists := s.databases[db]
	if !exists {
		writeError(w, http.StatusNotFound, "NotFound", "database not found")
		return
	}
	if !d.users[user] {
		writeError(w, http.StatusNotFound, "NotFound", "user not found")
		return
	}

	key := user + "/" + req.ID
	if _, dup := d.permissions[key]; dup {
		writeError(w, http.StatusConflict, "Conflict", "permission already exists")
		return
	}

	req.Token = s.nextToken(req.ID)
	req.Timestamp = now()
	d.permissions[key] = req

	writeJSON(w, http.StatusCreated, req)
}

// handleDeletePermission handles DELETE /dbs/{db}/users/{user}/permissions/{perm}
func (s *Server) handleDeletePermission(w http.ResponseWriter, r *http.Request) {
	db := chi.URLParam(r, "db")
	user := chi.URLParam(r, "user")
	perm := chi.URLParam(r, "perm")

	s.mu.Lock()
	defer s.mu.Unlock()

	d, exists := s.databases[db]
	if !exists {
		writeError(w, http.StatusNotFound, "NotFound", "database not found")
		return
	}

	key := user + "/" + perm
	if _, ok := d.permissions[key]; !ok {
		writeError(w, http.StatusNotFound, "NotFound", "permission not found")
		return
	}

	delete(d.permissions, key)
	w.WriteHeader(http.StatusNoContent)
}
