/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request log (method, path, status, duration, id)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard frontend
  5. Access:     X-Access-Password check when a password is configured
                 (everything except /api/health)

ROUTE GROUPS:
  /api/health           Liveness
  /api/uploads/*        Spreadsheet ingestion
  /api/admin/*          Purge, demo data
  /api/records/*        Range fetch, ranking
  /api/managers/*       Manager lists, rollups, products
  /api/periods/*        Per-date rollup
  /api/timeseries       Product series
  /api/views/*          Report views and chart images
  /api/annotations      Chart commentary

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/fund-returns/fund"
)

// AccessPasswordHeader carries the shared dashboard password.
const AccessPasswordHeader = "X-Access-Password"

// RouterConfig holds the router-level settings.
type RouterConfig struct {
	AllowedOrigins []string
	AccessPassword string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", AccessPasswordHeader},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(requireAccessPassword(cfg.AccessPassword))

			r.Route("/uploads", func(r chi.Router) {
				r.Post("/", h.Upload)
				r.Get("/template", h.Template)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Post("/purge", h.Purge)
				r.Post("/samples", h.LoadSamples)
			})

			r.Route("/records", func(r chi.Router) {
				r.Get("/", h.ListRecords)
				r.Get("/rank", h.RankRecords)
			})

			r.Route("/managers", func(r chi.Router) {
				r.Get("/", h.ListManagers)
				r.Get("/rollup", h.ManagerRollup)
				r.Get("/{manager}/products", h.ListProducts)
				r.Get("/{manager}/product-names", h.ListProductNames)
			})

			r.Get("/periods/rollup", h.PeriodRollup)
			r.Get("/timeseries", h.TimeSeries)

			r.Route("/views", func(r chi.Router) {
				r.Post("/{view}", h.RunView)
				r.Get("/{view}/charts/{chart}", h.ViewChart)
			})

			r.Post("/annotations", h.Annotate)
		})
	})

	return r
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// requireAccessPassword rejects requests without the shared password. An
// empty password disables the check.
func requireAccessPassword(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if password == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AccessPasswordHeader)
			if subtle.ConstantTimeCompare([]byte(password), []byte(got)) != 1 {
				writeError(w, http.StatusUnauthorized, "Access password required", fund.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
