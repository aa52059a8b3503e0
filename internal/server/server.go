package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yiyu/yiyusite/internal/domain"
	"github.com/yiyu/yiyusite/internal/service"
)

// Server is the HTTP layer: schedule CRUD, profile content, and static
// SPA serving with an index.html fallback.
type Server struct {
	schedule  *service.ScheduleService
	profile   *domain.Profile
	staticDir string
	mux       *http.ServeMux
}

func New(schedule *service.ScheduleService, profile *domain.Profile, staticDir string) *Server {
	if profile == nil {
		profile = domain.DefaultProfile()
	}

	s := &Server{
		schedule:  schedule,
		profile:   profile,
		staticDir: staticDir,
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/profile", s.handleProfile)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
	s.mux.HandleFunc("/api/schedule/", s.handleScheduleItem)
	s.mux.HandleFunc("/", s.handleStatic)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleProfile serves the hero content together with the schedule, the
// shape the landing page loads in one request.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	items, err := s.schedule.List()
	if err != nil {
		log.Printf("list schedule: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"profile":  s.profile,
		"schedule": items,
	})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.schedule.List()
		if err != nil {
			log.Printf("list schedule: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to load schedule")
			return
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		var req struct {
			Date  string `json:"date"`
			Title string `json:"title"`
			Note  string `json:"note"`
			Time  string `json:"time"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		item, err := s.schedule.Create(req.Date, req.Title, req.Note, req.Time)
		if errors.Is(err, service.ErrMissingFields) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			log.Printf("create schedule: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to create")
			return
		}
		writeJSON(w, http.StatusCreated, item)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleScheduleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/schedule/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var in domain.ItemInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		item, err := s.schedule.Update(id, in)
		if err != nil {
			log.Printf("update schedule %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to update")
			return
		}
		if item == nil {
			writeError(w, http.StatusNotFound, "schedule item not found")
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodDelete:
		removed, err := s.schedule.Delete(id)
		if err != nil {
			log.Printf("delete schedule %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to delete")
			return
		}
		if !removed {
			writeError(w, http.StatusNotFound, "schedule item not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleStatic serves the built front-end, falling back to index.html
// for SPA routes. Without a build it answers with a hint instead of a
// bare 404.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	name := filepath.Join(s.staticDir, filepath.Clean("/"+r.URL.Path))
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		http.ServeFile(w, r, name)
		return
	}

	index := filepath.Join(s.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.Error(w, "Build not found. Run: npm run build", http.StatusInternalServerError)
		return
	}
	http.ServeFile(w, r, index)
}
