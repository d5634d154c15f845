package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/jenkinsprobe/internal/domain"
	"github.com/hamed0406/jenkinsprobe/internal/hosts"
	apimw "github.com/hamed0406/jenkinsprobe/internal/httpapi/middleware"
	"github.com/hamed0406/jenkinsprobe/internal/repo"
)

const (
	defaultMaxHosts = 10_000
	maxBodyBytes    = 4 << 20
)

// Scanner runs one scan over a host set. *scanner.Engine satisfies it.
type Scanner interface {
	Run(ctx context.Context, set hosts.Set) (domain.Partition, error)
}

type Server struct {
	Logger   *zap.Logger
	Reports  repo.ReportStore
	Scanner  Scanner
	MaxHosts int

	// TrustedProxies may set X-Forwarded-For for rate limiting.
	TrustedProxies []string
}

func NewServer(l *zap.Logger, reports repo.ReportStore, sc Scanner) *Server {
	return &Server{Logger: l, Reports: reports, Scanner: sc, MaxHosts: defaultMaxHosts}
}

// Router wires the routes. Reads need any key, starting a scan needs an
// admin key. An empty allowedOrigins allows any origin. publicRPM <= 0
// disables rate limiting.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, publicRPM, publicBurst int) http.Handler {
	r := chi.NewRouter()
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(publicRPM, publicBurst, s.TrustedProxies...))

		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAny(keys))
			r.Get("/scans", s.handleListScans)
			r.Get("/scans/{id}", s.handleGetScan)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(keys))
			r.Post("/scans", s.handleStartScan)
		})
	})

	return r
}
