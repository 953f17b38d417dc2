// Package server exposes the chart library over a small read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/zurustar/dtxview/pkg/dtx"
	"github.com/zurustar/dtxview/pkg/library"
	"github.com/zurustar/dtxview/pkg/playback"
)

// shutdownTimeout bounds the graceful shutdown after the context is cancelled.
const shutdownTimeout = 5 * time.Second

// Server serves the set list, set details, timelines and dry-run schedules.
type Server struct {
	reg     *library.Registry
	origins []string
	log     *slog.Logger
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithAllowedOrigins restricts CORS to the given origins (default: any).
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// New builds the router for reg.
func New(reg *library.Registry, opts ...Option) *Server {
	s := &Server{
		reg:     reg,
		origins: []string{"*"},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	router := mux.NewRouter().StrictSlash(true)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/simfiles", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/simfiles/{id}", s.handleSet).Methods(http.MethodGet)
	api.HandleFunc("/simfiles/{id}/levels/{level:[0-9]+}/timeline", s.handleTimeline).Methods(http.MethodGet)
	api.HandleFunc("/simfiles/{id}/levels/{level:[0-9]+}/schedule", s.handleSchedule).Methods(http.MethodGet)
	router.Use(s.logRequests)

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	})
	s.handler = c.Handler(router)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("Server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("Server stopped")
	return nil
}

type levelJSON struct {
	Number int    `json:"number"`
	Label  string `json:"label"`
	File   string `json:"file"`
}

type setJSON struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Embedded bool        `json:"embedded"`
	Levels   []levelJSON `json:"levels"`
}

type listJSON struct {
	Items []setJSON `json:"items"`
	Total int       `json:"total"`
	Next  bool      `json:"next"`
}

type timelineJSON struct {
	Title         string    `json:"title"`
	Artist        string    `json:"artist"`
	BPM           float64   `json:"bpm"`
	MeasureCount  int       `json:"measureCount"`
	MeasureLength []float64 `json:"measureLength"`
	Cumulative    []float64 `json:"cumulative"`
}

type entryJSON struct {
	Lane     string  `json:"lane"`
	Measure  int     `json:"measure"`
	EventID  string  `json:"eventId"`
	File     string  `json:"file,omitempty"`
	Position float64 `json:"position"`
	Mode     string  `json:"mode"`
	Delay    float64 `json:"delay"`
	Seek     float64 `json:"seek"`
}

type scheduleJSON struct {
	BPM                   float64     `json:"bpm"`
	StartMeasure          int         `json:"startMeasure"`
	SecondsPerMeasureUnit float64     `json:"secondsPerMeasureUnit"`
	StartPosition         float64     `json:"startPosition"`
	EndPosition           float64     `json:"endPosition"`
	Duration              float64     `json:"duration"`
	Entries               []entryJSON `json:"entries"`
	Problems              []string    `json:"problems"`
}

func toSetJSON(set *library.Set) setJSON {
	out := setJSON{
		ID:       set.Name,
		Title:    set.DisplayName(),
		Embedded: set.IsEmbedded,
		Levels:   []levelJSON{},
	}
	for _, n := range set.Numbers() {
		l := set.Levels[n]
		out.Levels = append(out.Levels, levelJSON{Number: l.Number, Label: l.Label, File: l.File})
	}
	return out
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", library.DefaultPage)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	size, err := queryInt(r, "page_size", library.DefaultPageSize)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	items, total, next := library.Page(s.reg.Available(), page, size)
	res := listJSON{Items: make([]setJSON, 0, len(items)), Total: total, Next: next}
	for _, set := range items {
		res.Items = append(res.Items, toSetJSON(set))
	}
	s.writeJSON(w, res)
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	set, err := s.reg.Find(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, toSetJSON(set))
}

// loadChart resolves {id} and {level} to a parsed chart file.
func (s *Server) loadChart(r *http.Request) (*dtx.File, error) {
	vars := mux.Vars(r)
	set, err := s.reg.Find(vars["id"])
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(vars["level"])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", library.ErrLevelNotFound, vars["level"])
	}
	f, _, err := set.LoadChart(n, dtx.WithLogger(s.log))
	return f, err
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	f, err := s.loadChart(r)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	tl := f.Chart().Timeline()
	count := tl.MeasureCount()
	cumulative := make([]float64, count+1)
	for m := range cumulative {
		cumulative[m] = tl.Cumulative(m)
	}
	s.writeJSON(w, timelineJSON{
		Title:         f.Title,
		Artist:        f.Artist,
		BPM:           f.BPM,
		MeasureCount:  count,
		MeasureLength: tl.Lengths(),
		Cumulative:    cumulative,
	})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	f, err := s.loadChart(r)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	bpm := f.BPM
	if v := r.URL.Query().Get("bpm"); v != "" {
		bpm, err = strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %s", playback.ErrInvalidTempo, v))
			return
		}
	}
	start := 0
	if v := r.URL.Query().Get("start"); v != "" {
		pos, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %s", playback.ErrInvalidStartMeasure, v))
			return
		}
		if start, err = playback.StartMeasure(pos); err != nil {
			s.writeError(w, statusFor(err), err)
			return
		}
	}

	c := f.Chart()
	plan, err := playback.Plan(c, c.Timeline(), bpm, start)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	res := scheduleJSON{
		BPM:                   plan.BPM,
		StartMeasure:          plan.StartMeasure,
		SecondsPerMeasureUnit: plan.SecondsPerMeasureUnit,
		StartPosition:         plan.StartPosition,
		EndPosition:           plan.EndPosition,
		Duration:              plan.Duration().Seconds(),
		Entries:               make([]entryJSON, 0, len(plan.Entries)),
		Problems:              []string{},
	}
	for _, e := range plan.Entries {
		ej := entryJSON{
			Lane:     string(e.Lane),
			Measure:  e.Measure,
			EventID:  e.EventID,
			Position: e.Position,
			Mode:     e.Mode.String(),
			Delay:    e.DelaySeconds,
			Seek:     e.SeekSeconds,
		}
		if chip, ok := f.Chip(e.EventID); ok {
			ej.File = chip.File
		}
		res.Entries = append(res.Entries, ej)
	}
	for _, p := range plan.Problems {
		res.Problems = append(res.Problems, p.Error())
	}
	s.writeJSON(w, res)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, playback.ErrInvalidTempo), errors.Is(err, playback.ErrInvalidStartMeasure):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrSetNotFound), errors.Is(err, library.ErrLevelNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("Request handled", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
