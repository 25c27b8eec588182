// Package server exposes the bindings of an environment over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"vecbind/config"
	"vecbind/internal/adapter/cache"
	"vecbind/internal/binding"
	"vecbind/internal/domain"
	"vecbind/internal/env"
)

type Server struct {
	http.Handler

	env     *env.Env
	address string
	limiter *rate.Limiter
	cache   *cache.DescribeCache
	logger  logrus.FieldLogger
}

func New(e *env.Env, cfg config.ServerConfig, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Server{
		env:     e,
		address: cfg.Address,
		limiter: createLimiter(cfg.RateLimit),
		logger:  logger,
	}

	if cfg.DescribeCacheTTL > 0 {
		s.cache = cache.NewDescribeCache(0, cfg.DescribeCacheTTL)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Get("/bindings", s.handleBindings)
		r.Get("/{binding}/describe", s.handleDescribe)
		r.Post("/{binding}/insert", s.handleWrite(false))
		r.Post("/{binding}/upsert", s.handleWrite(true))
	})

	s.Handler = r
	return s
}

func createLimiter(limit int) *rate.Limiter {
	if limit <= 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(limit), limit)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.WithField("address", s.address).Info("server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBindings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"bindings": s.env.Names()})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "binding")

	if s.cache != nil {
		if details, hit := s.cache.Get(name); hit {
			writeJSON(w, http.StatusOK, details)
			return
		}
	}

	v, ok := s.resolve(w, r)
	if !ok {
		return
	}

	ctx, cancel := s.env.CallContext(r.Context())
	defer cancel()

	details, err := v.Describe(ctx)
	if err != nil {
		s.writeCallError(w, err)
		return
	}

	if s.cache != nil {
		s.cache.Put(name, details)
	}

	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleWrite(upsert bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := s.resolve(w, r)
		if !ok {
			return
		}

		vectors, err := decodeVectors(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}

		ctx, cancel := s.env.CallContext(r.Context())
		defer cancel()

		write := v.Insert
		if upsert {
			write = v.Upsert
		}

		mutation, err := write(ctx, vectors)
		if err != nil {
			s.writeCallError(w, err)
			return
		}

		if s.cache != nil {
			s.cache.Invalidate(chi.URLParam(r, "binding"))
		}

		writeJSON(w, http.StatusAccepted, mutation)
	}
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (*binding.Vectorize, bool) {
	name := chi.URLParam(r, "binding")

	v, err := s.env.Vectorize(name)
	if err != nil {
		if errors.Is(err, env.ErrUnknownBinding) {
			writeError(w, http.StatusNotFound, "not_found", err.Error())
			return nil, false
		}
		s.writeCallError(w, err)
		return nil, false
	}

	return v, true
}

type writeRequest struct {
	Vectors []domain.Vector `json:"vectors"`
}

// decodeVectors accepts either {"vectors": [...]} or a bare array.
func decodeVectors(r *http.Request) ([]domain.Vector, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}

	if len(raw) > 0 && raw[0] == '[' {
		var vectors []domain.Vector
		if err := json.Unmarshal(raw, &vectors); err != nil {
			return nil, err
		}
		return vectors, nil
	}

	var req writeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	if req.Vectors == nil {
		return nil, errors.New("vectors is required")
	}
	return req.Vectors, nil
}

func (s *Server) writeCallError(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Warn("binding call failed")
	}
	writeError(w, status, code, err.Error())
}

// statusOf maps facade errors onto an HTTP status and error code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, binding.ErrSerializationFailed):
		return http.StatusBadRequest, "serialization_failed"
	case errors.Is(err, binding.ErrTypeMismatch), errors.Is(err, binding.ErrNotCallable):
		return http.StatusInternalServerError, "binding_error"
	case errors.Is(err, binding.ErrMalformedResponse):
		return http.StatusBadGateway, "malformed_response"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, binding.ErrUnreachable):
		return http.StatusBadGateway, "unreachable"
	}
	return http.StatusInternalServerError, "internal"
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
