package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/domain"
	"github.com/kitbuilder587/askweb/internal/metrics"
	"github.com/kitbuilder587/askweb/internal/ratelimit"
	"github.com/kitbuilder587/askweb/internal/service"
)

var ErrRequestTimeout = errors.New("request timeout")

const (
	invalidQueryMessage = "Query parameter is required and must be a non-empty string"
	searchFailedMessage = "Search failed"
	healthTimeLayout    = "2006-01-02T15:04:05.000Z07:00"
)

type Config struct {
	Addr           string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// TrustedProxies - от каких адресов верить X-Forwarded-For
	TrustedProxies []string
}

type Deps struct {
	Answers  service.AnswerService
	Limiter  *ratelimit.Limiter
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Config   Config
}

type Server struct {
	answers  service.AnswerService
	limiter  *ratelimit.Limiter
	logger   *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	cfg      Config
	now      func() time.Time
}

type searchRequest struct {
	Query any `json:"query"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func New(deps Deps) *Server {
	cfg := deps.Config
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		answers:  deps.Answers,
		limiter:  deps.Limiter,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		gatherer: deps.Gatherer,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	search := http.Handler(http.HandlerFunc(s.handleSearch))
	if s.limiter != nil {
		search = s.rateLimit(search)
	}
	mux.Handle("POST /api/search", search)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler(s.gatherer))

	return s.logRequests(cors(securityHeaders(mux)))
}

// Run слушает адрес до отмены ctx, потом делает graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// ответ может ждать весь REQUEST_TIMEOUT
		WriteTimeout: s.cfg.RequestTimeout + 10*time.Second,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Debug("invalid request body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalidQueryMessage})
		return
	}

	query, ok := req.Query.(string)
	if !ok || strings.TrimSpace(query) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalidQueryMessage})
		return
	}

	s.logger.Info("search request", zap.String("query", query))

	resp, err := s.answer(r.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyQuery) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalidQueryMessage, Message: err.Error()})
			return
		}
		s.logger.Error("search failed", zap.String("query", query), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: searchFailedMessage, Message: err.Error()})
		return
	}

	s.logger.Info("search completed",
		zap.Int("sources", len(resp.Sources)),
		zap.String("processing_time", resp.ProcessingTime),
	)
	writeJSON(w, http.StatusOK, resp)
}

type answerResult struct {
	resp *domain.AnswerResponse
	err  error
}

// answer гонит конвейер наперегонки с RequestTimeout.
func (s *Server) answer(ctx context.Context, query string) (*domain.AnswerResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	done := make(chan answerResult, 1)
	go func() {
		resp, err := s.answers.Answer(ctx, query)
		done <- answerResult{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) {
			return nil, ErrRequestTimeout
		}
		return res.resp, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrRequestTimeout
		}
		return nil, ctx.Err()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC().Format(healthTimeLayout),
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, s.cfg.TrustedProxies)
		allowed := s.limiter.Allow(ip)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.limiter.Limit()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(s.limiter.RemainingRequests(ip)))
		if !allowed {
			if s.metrics != nil {
				s.metrics.RecordRateLimitHit("http")
			}
			retryAfter := time.Until(s.limiter.ResetTime(ip))
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			s.logger.Warn("rate limit exceeded", zap.String("ip", ip))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
