// Package server exposes the collaborator HTTP surface the practice engine
// talks to: score statistics, profile names, and score/playlist content.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/sightread/sightread/content"
	"github.com/sightread/sightread/logging"
	"github.com/sightread/sightread/stats"
)

// Server bundles the record store and content directory behind a router.
type Server struct {
	store   *stats.Store
	content content.Store
	log     logging.Logger
}

// New creates a server over the given store and content source.
func New(store *stats.Store, contentStore content.Store, log logging.Logger) *Server {
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	return &Server{store: store, content: contentStore, log: log}
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/score/get/{filename}/{qpm}/{profile}", s.handleGetStats).Methods(http.MethodGet)
	router.HandleFunc("/score/get/{filename}/{qpm}/", s.handleGetStats).Methods(http.MethodGet)
	router.HandleFunc("/score/get/{filename}/{qpm}", s.handleGetStats).Methods(http.MethodGet)

	router.HandleFunc("/score/set/{filename}/{score}/{qpm}/{profile}", s.handleSetScore).Methods(http.MethodGet)
	router.HandleFunc("/score/set/{filename}/{score}/{qpm}/", s.handleSetScore).Methods(http.MethodGet)
	router.HandleFunc("/score/set/{filename}/{score}/{qpm}", s.handleSetScore).Methods(http.MethodGet)

	router.HandleFunc("/profile/save/{name}", s.handleSaveProfile).Methods(http.MethodGet)
	router.HandleFunc("/profile/list", s.handleListProfiles).Methods(http.MethodGet)

	router.HandleFunc("/abc/single/{filename}", s.handleContent).Methods(http.MethodGet)
	router.HandleFunc("/playlist/{filename}", s.handleContent).Methods(http.MethodGet)

	return cors.AllowAll().Handler(router)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	qpm, err := strconv.Atoi(vars["qpm"])
	if err != nil {
		http.Error(w, "bad tempo", http.StatusBadRequest)
		return
	}

	summary, err := s.store.Summarize(vars["filename"], qpm, vars["profile"])
	if err != nil {
		s.log.Error(err, "summarize failed", logging.Fields{"filename": vars["filename"]})
		http.Error(w, "summarize failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func (s *Server) handleSetScore(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	qpm, err := strconv.Atoi(vars["qpm"])
	if err != nil {
		http.Error(w, "bad tempo", http.StatusBadRequest)
		return
	}
	scorePercent, err := strconv.Atoi(vars["score"])
	if err != nil || scorePercent < 0 || scorePercent > 100 {
		http.Error(w, "bad score", http.StatusBadRequest)
		return
	}

	record := stats.Record{
		Filename:  vars["filename"],
		Score:     scorePercent,
		QPM:       qpm,
		Profile:   vars["profile"],
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.Add(record); err != nil {
		s.log.Error(err, "record failed", logging.Fields{"filename": record.Filename})
		http.Error(w, "record failed", http.StatusInternalServerError)
		return
	}

	s.log.Info("recorded score", logging.Fields{
		"filename": record.Filename,
		"score":    record.Score,
		"qpm":      record.QPM,
		"profile":  record.Profile,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.store.SaveProfile(name); err != nil {
		s.log.Error(err, "save profile failed", logging.Fields{"name": name})
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.Profiles()
	if err != nil {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	if profiles == nil {
		profiles = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profiles)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	data, err := s.content.Load(r.Context(), name)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Write(data)
}
