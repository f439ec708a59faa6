package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/stagezero-42/whisper-api-service/internal/config"
	"github.com/stagezero-42/whisper-api-service/internal/jobs"
)

type Server struct {
	cfg   *config.Config
	queue *jobs.Queue

	mux    *http.ServeMux
	server *http.Server
}

func NewServer(cfg *config.Config, queue *jobs.Queue) *Server {
	s := &Server{
		cfg:   cfg,
		queue: queue,
		mux:   http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/transcribe", s.handleTranscribe)
	s.mux.HandleFunc("/status/", s.handleStatus)
	s.mux.HandleFunc("/jobs", s.handleJobs)
	s.mux.HandleFunc("/jobs/stream", s.handleJobStream)
}
