package http

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"cospese/internal/cache"
	"cospese/internal/core"
	applog "cospese/internal/log"
	"cospese/internal/middleware/ratelimit"
	"cospese/internal/middleware/security"
	"cospese/internal/middleware/trace"
	"cospese/internal/services"
	appweb "cospese/web"
)

const (
	defaultPageSize     = 20
	defaultUserCacheTTL = 5 * time.Minute
	userCacheSize       = 256
	cacheCleanupEvery   = 10 * time.Minute
	staticMaxAge        = 3600
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the web server. Zero values fall back to defaults.
type Options struct {
	Addr       string
	UserHeader string
	PageSize   int
	// Years are offered in the period selector of the monthly listing.
	Years             []int
	UserCacheTTL      time.Duration
	RequestsPerMinute int
	Logger            *applog.Logger
	// Templates overrides the embedded template tree, for tests.
	Templates fs.FS
}

// Server serves the expense pages on top of an ExpenseWorkflow.
type Server struct {
	http.Server

	wf        *services.ExpenseWorkflow
	directory services.UserDirectory
	ready     Pinger
	views     *renderer

	pageSize   int
	years      []int
	logger     *applog.Logger
	structured *applog.StructuredLogger

	actors       *actorResolver
	usersByID    *cache.LRUCache[core.User]
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server. Call Shutdown to stop its background goroutines.
func NewServer(opts Options, wf *services.ExpenseWorkflow, directory services.UserDirectory, ready Pinger) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.UserHeader == "" {
		opts.UserHeader = "X-Remote-User"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.UserCacheTTL <= 0 {
		opts.UserCacheTTL = defaultUserCacheTTL
	}
	if len(opts.Years) == 0 {
		y := wf.Now().Year()
		opts.Years = []int{y - 2, y - 1, y}
	}

	views, err := defaultTemplates()
	if opts.Templates != nil {
		views, err = loadTemplates(opts.Templates)
	}
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	limiterCfg := ratelimit.DefaultConfig()
	if opts.RequestsPerMinute > 0 {
		limiterCfg.RequestsPerMinute = opts.RequestsPerMinute
	}

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		wf:               wf,
		directory:        directory,
		ready:            ready,
		views:            views,
		pageSize:         opts.PageSize,
		years:            opts.Years,
		logger:           logger,
		structured:       applog.NewStructuredLogger(opts.Logger.WithComponent(applog.ComponentExpense)),
		usersByID:        cache.NewLRUCache[core.User](userCacheSize, opts.UserCacheTTL),
		cacheManager:     cache.NewManager(opts.Logger),
		rateLimiter:      ratelimit.NewLimiter(limiterCfg),
		securityDetector: security.NewDetector(),
		started:          time.Now(),
	}
	s.actors = &actorResolver{
		header:    opts.UserHeader,
		directory: directory,
		users:     cache.NewLRUCache[core.User](userCacheSize, opts.UserCacheTTL),
	}
	s.traceMiddleware = trace.NewMiddleware(opts.Logger, s.securityDetector.ExtractClientIP)

	s.cacheManager.Register(s.actors.users)
	s.cacheManager.Register(s.usersByID)
	s.cacheManager.StartCleanup(cacheCleanupEvery)

	s.Handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	authed := s.actors.middleware
	mux.HandleFunc("GET /{$}", authed(s.handleIndex))
	mux.HandleFunc("GET /expenses/{year}/{month}", authed(s.handleList("")))
	mux.HandleFunc("GET /expenses/{year}/{month}/my", authed(s.handleList(core.ByMy)))
	mux.HandleFunc("GET /expenses/{year}/{month}/divorcee", authed(s.handleList(core.ByDivorcee)))
	mux.HandleFunc("GET /expenses/new", authed(s.handleNewForm))
	mux.HandleFunc("POST /expenses", authed(s.handleCreate))
	mux.HandleFunc("GET /expense/{id}", authed(s.handleDetail))
	mux.HandleFunc("GET /expense/{id}/edit", authed(s.handleEditForm))
	mux.HandleFunc("POST /expense/{id}/edit", authed(s.handleEdit))
	mux.HandleFunc("GET /expense/{id}/approve", authed(s.handleApproveForm))
	mux.HandleFunc("POST /expense/{id}/approve", authed(s.handleApprove))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	}

	// Outermost first.
	var h http.Handler = mux
	h = security.NoStore(h)
	h = applog.Middleware(s.logger)(h)
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, onLimit)(h)
	h = s.securityDetector.Middleware(s.logger)(h)
	h = headers.Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	return h
}

// Shutdown gracefully shuts down the server and its cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// userName resolves a user id for display, through a small cache.
func (s *Server) userName(ctx context.Context, id int64) string {
	if id == 0 {
		return ""
	}
	key := fmt.Sprintf("#%d", id)
	u, err := s.usersByID.GetOrLoad(key, func() (core.User, error) {
		return s.directory.UserByID(ctx, id)
	})
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "User lookup failed", "user_id", id, applog.FieldError, err)
		return fmt.Sprintf("#%d", id)
	}
	return u.Name
}
