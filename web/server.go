// Package web serves the JSON API behind the dashboards: on-demand
// classification, threshold tables, live status, history and exports, plus
// the Pub/Sub push endpoint and a websocket feed of live updates.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mtraver/gaelog"

	"github.com/envdash/uda/poller"
	"github.com/envdash/uda/source"
)

// History older than this many hours is not served.
const maxHistoryHours = 24 * 31

// Data up to this many hours old is returned when no range is given.
const defaultHistoryHours = 12

type Server struct {
	Poller *poller.Poller
	Source source.Source
	Hub    *Hub
	Logger *slog.Logger

	AllowedOrigins []string

	// AppEngine routes error logs through the App Engine log API so they are
	// grouped with the request that caused them.
	AppEngine bool

	Push PushConfig

	// Overridden in tests.
	now func() time.Time
}

type PushConfig struct {
	// Push is disabled when Token is empty.
	Token string
	// Audience enables verification of the JWT signed by Pub/Sub.
	Audience string
	// Readings from devices whose ID contains any of these are dropped.
	IgnoredDevices []string
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Server) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// errorf logs a request-scoped error.
func (s *Server) errorf(r *http.Request, msg string, err error) {
	if s.AppEngine {
		gaelog.Errorf(r.Context(), "%s: %v", msg, err)
		return
	}
	s.logger().Error(msg, "err", err, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
}

// requestLogger logs one line per request once it has been served.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger().Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Routes returns the HTTP handler of the server.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/classify", s.handleClassify)
		r.Get("/domains", s.handleDomains)
		r.Get("/thresholds/{domain}", s.handleThresholds)
		r.Get("/status/{domain}", s.handleStatus)
		r.Get("/devices/{deviceID}", s.handleDevice)
		r.Get("/recommendations/{domain}/{label}", s.handleRecommendations)
		r.Get("/history/{domain}", s.handleHistory)
		r.Get("/history/{domain}/export.{format}", s.handleExport)
	})

	if s.Hub != nil {
		r.Get("/ws", s.Hub.ServeHTTP)
	}

	if s.Push.Token != "" {
		r.Method(http.MethodPost, "/_ah/push-handlers/readings", pushHandler{
			Config: s.Push,
			Server: s,
		})
	}

	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully within
// shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger().Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
