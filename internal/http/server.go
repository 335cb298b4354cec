package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"gastos/internal/cache"
	"gastos/internal/log"
	"gastos/internal/services"
	appweb "gastos/web"
)

const (
	defaultCurrency      = "R$"
	defaultChartCacheTTL = 5 * time.Minute
	chartCacheSize       = 64
)

type Server struct {
	http.Server
	svc         *services.LedgerService
	templates   *template.Template
	currency    string
	logger      *log.Logger
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	// Rendered chart PNGs keyed by "YYYY-MM/<chart>"
	charts   *cache.LRUCache[[]byte]
	chartTTL time.Duration
	caches   *cache.Manager

	// mutations run one at a time so two tabs cannot interleave
	// read-modify-write cycles on the same month
	mu sync.Mutex

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithCurrency sets the symbol printed in front of amounts.
func WithCurrency(symbol string) Option {
	return func(s *Server) { s.currency = symbol }
}

func WithChartCacheTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.chartTTL = ttl
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentHTTP)
		}
	}
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.LedgerService, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc:         svc,
		currency:    defaultCurrency,
		logger:      log.Discard(),
		rateLimiter: newRateLimiter(),
		metrics:     &securityMetrics{},
		chartTTL:    defaultChartCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Handler = log.Middleware(s.logger)(mux)

	s.charts = cache.NewLRUCache[[]byte](chartCacheSize, s.chartTTL)
	s.caches = cache.NewManager(s.logger)
	s.caches.Register(s.charts)
	s.caches.StartCleanup(2 * s.chartTTL)

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.NewFields().
			WithComponent(log.ComponentTemplate).
			WithError(err).
			ToSlice()...)
	} else {
		s.templates = t
	}

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/income", s.withSecurityHeaders(s.handleRecordIncome))
	mux.HandleFunc("/expense", s.withSecurityHeaders(s.handleRecordExpense))
	mux.HandleFunc("/delete", s.withSecurityHeaders(s.handleDeleteTransaction))
	mux.HandleFunc("/clear", s.withSecurityHeaders(s.handleClearMonth))
	mux.HandleFunc("/statement", s.withSecurityHeaders(s.handleStatement))
	mux.HandleFunc("/charts/category.png", s.withSecurityHeaders(s.handleChart(chartCategory)))
	mux.HandleFunc("/charts/method.png", s.withSecurityHeaders(s.handleChart(chartMethod)))

	return s
}

// Shutdown stops the background cleanup loops and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		reqLogger := s.logger.With(log.FieldRequestID, requestID)
		ctx := log.NewContext(r.Context(), reqLogger)
		r = r.WithContext(ctx)

		if detectSuspiciousRequest(r, s.metrics) {
			reqLogger.WarnContext(ctx, "Suspicious request", log.NewFields().
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
				WithClientIP(clientIP).
				ToSlice()...)
		}

		// Rate limit mutations only
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			reqLogger.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Request-ID", requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		log.LogHTTPEnd(ctx, reqLogger, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
