package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/pipehealth/pipehealth-go/internal/errors"
	"github.com/pipehealth/pipehealth-go/internal/forecast"
	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/pipehealth/pipehealth-go/internal/service"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Server exposes the outlook engine over a small JSON API. It is meant to
// sit behind the platform's gateway; authentication happens upstream and the
// caller identity arrives as a query parameter.
type Server struct {
	svc     *service.OutlookService
	limiter *rate.Limiter
	logger  *logrus.Logger
	httpSrv *http.Server
}

// Options tunes the HTTP surface
type Options struct {
	Addr            string
	RequestsPerSec  float64
	Burst           int
	ShutdownTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.Addr == "" {
		o.Addr = ":8087"
	}
	if o.RequestsPerSec <= 0 {
		o.RequestsPerSec = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 10 * time.Second
	}
}

// New creates the HTTP server
func New(svc *service.OutlookService, logger *logrus.Logger, opts Options) *Server {
	opts.applyDefaults()
	if logger == nil {
		logger = logrus.New()
	}

	s := &Server{
		svc:     svc,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/outlook", s.withMiddleware(s.handleOutlook))
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.httpSrv = &http.Server{
		Addr:         opts.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.httpSrv.Addr).Info("HTTP server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		if !s.limiter.Allow() {
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		start := time.Now()
		next(w, r)
		s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       r.URL.Path,
			"duration":   time.Since(start).String(),
		}).Debug("Request served")
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOutlook(w http.ResponseWriter, r *http.Request) {
	req, err := parseOutlookRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.svc.Run(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.WithError(err).Error("Outlook computation failed")
			s.writeError(w, status, "internal error")
			return
		}
		s.writeError(w, status, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// parseOutlookRequest maps query parameters onto a service request
func parseOutlookRequest(r *http.Request) (service.Request, error) {
	q := r.URL.Query()

	req := service.Request{CallerUserID: q.Get("caller")}
	if req.CallerUserID == "" {
		return req, fmt.Errorf("query parameter %q is required", "caller")
	}

	if v := q.Get("period_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("bad period_id %q", v)
		}
		req.PeriodID = &id
	}

	f := forecast.Filters{
		RepUserID:    q.Get("rep"),
		RepName:      q.Get("rep_name"),
		Stage:        q.Get("stage"),
		RiskCategory: q.Get("risk_category"),
		Mode:         models.Mode(q.Get("mode")),
	}

	var err error
	if f.HealthPctMin, err = parseIntParam(q.Get("health_pct_min")); err != nil {
		return req, err
	}
	if f.HealthPctMax, err = parseIntParam(q.Get("health_pct_max")); err != nil {
		return req, err
	}
	f.SuppressedOnly = q.Get("suppressed_only") == "true"
	f.DriverRequireScoreEffect = q.Get("driver_score_effect") == "true"
	f.RiskRequireScoreEffect = q.Get("risk_score_effect") == "true"

	if v := q.Get("driver_min_abs_gap"); v != "" {
		if f.DriverMinAbsGap, err = strconv.ParseFloat(v, 64); err != nil {
			return req, fmt.Errorf("bad driver_min_abs_gap %q", v)
		}
	}
	if v := q.Get("risk_min_downside"); v != "" {
		if f.RiskMinDownside, err = strconv.ParseFloat(v, 64); err != nil {
			return req, fmt.Errorf("bad risk_min_downside %q", v)
		}
	}
	if v := q.Get("driver_take"); v != "" {
		if f.DriverTake, err = strconv.Atoi(v); err != nil {
			return req, fmt.Errorf("bad driver_take %q", v)
		}
	}
	if v := q.Get("risk_take"); v != "" {
		if f.RiskTake, err = strconv.Atoi(v); err != nil {
			return req, fmt.Errorf("bad risk_take %q", v)
		}
	}

	req.Filters = f
	return req, nil
}

func parseIntParam(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("bad integer %q", v)
	}
	return &n, nil
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	var filterErr *forecast.InvalidFilterError
	if errors.As(err, &filterErr) {
		return http.StatusBadRequest
	}

	switch apperrors.GetType(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Response encoding failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
