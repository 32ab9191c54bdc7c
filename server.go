package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type viewCounter interface {
	Increment(ctx context.Context) (int64, error)
}

type server struct {
	counter viewCounter
	path    string
	logger  *zap.Logger
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Default().Handler)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Get(s.path, s.handleViews)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	responseJson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(responseJson)))
	w.WriteHeader(status)
	_, _ = w.Write(responseJson)
}

func (s *server) handleViews(w http.ResponseWriter, r *http.Request) {
	// A client hanging up should not abort the write, the counter's own timeout still applies.
	ctx := context.WithoutCancel(r.Context())

	views, err := s.counter.Increment(ctx)
	if err != nil {
		// The count is reported even though it was not saved.
		s.logger.Error("Failed to save view count",
			zap.Int64("views", views),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, viewsResponse{Views: views})
}

func (s *server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
}
