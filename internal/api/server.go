// Package api exposes the directory over HTTP. Handlers only parse input,
// call the search service or the import pipeline, and shape responses.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/lifeline-ng/lifeline/internal/ingest"
	"github.com/lifeline-ng/lifeline/internal/model"
	"github.com/lifeline-ng/lifeline/internal/search"
)

const maxBodyBytes = 1 << 20

// Importer runs a provider import. *ingest.Pipeline implements it.
type Importer interface {
	Run(ctx context.Context, opts ingest.Options) (*ingest.Result, error)
}

// Options configures the router.
type Options struct {
	AdminKey       string
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	Import         ingest.Options // defaults for admin-triggered imports
	// ImportDir confines client-supplied import paths. Empty disables path
	// overrides; the configured Import.Source is always allowed.
	ImportDir string
}

// Server holds the handler dependencies.
type Server struct {
	svc      *search.Service
	importer Importer
	opts     Options
	limiter  *clientLimiter
	log      *zap.Logger
}

// New creates a Server. importer may be nil, in which case the import
// endpoint answers 503.
func New(svc *search.Service, importer Importer, opts Options) *Server {
	return &Server{
		svc:      svc,
		importer: importer,
		opts:     opts,
		limiter:  newClientLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		log:      zap.L().With(zap.String("component", "api")),
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Admin-Key"},
		MaxAge:         300,
	}))
	r.Use(s.limiter.middleware)

	r.Get("/health", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/states", s.listStates)
		r.Get("/states/{stateId}/lgas", s.listLGAs)

		r.Get("/providers/search", s.searchProviders)
		r.Get("/providers/nearby", s.nearbyProviders)
		r.Get("/providers/{id}", s.getProvider)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/import/providers", s.importProviders)
			r.Post("/providers", s.createProvider)
			r.Patch("/providers/{id}", s.updateProvider)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Admin-Key")
		if s.opts.AdminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.opts.AdminKey)) != 1 {
			writeError(w, r, &apiError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "Invalid admin key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listStates(w http.ResponseWriter, r *http.Request) {
	states, err := s.svc.States(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: states})
}

func (s *Server) listLGAs(w http.ResponseWriter, r *http.Request) {
	stateID, err := strconv.Atoi(chi.URLParam(r, "stateId"))
	if err != nil {
		writeError(w, r, badRequest("invalid_state_id", "stateId must be an integer"))
		return
	}
	lgas, err := s.svc.LGAs(r.Context(), stateID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: lgas})
}

func (s *Server) getProvider(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: p})
}

func (s *Server) searchProviders(w http.ResponseWriter, r *http.Request) {
	q := queryParams{values: r.URL.Query()}

	filter := model.SearchFilter{
		StateID:  q.intParam("stateId"),
		LGAID:    q.intParam("lgaId"),
		Category: q.get("category"),
		Q:        q.get("q"),
	}
	filter.ProviderType = q.providerType("providerType")
	page, pageSize := q.intParam("page"), q.intParam("pageSize")
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	res, err := s.svc.Search(r.Context(), filter, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Data: res.Items,
		Meta: &meta{Page: res.Page, PageSize: res.PageSize, Total: res.Total},
	})
}

func (s *Server) nearbyProviders(w http.ResponseWriter, r *http.Request) {
	q := queryParams{values: r.URL.Query()}
	if q.get("lat") == "" || q.get("lng") == "" {
		writeError(w, r, badRequest("missing_coordinates", "lat and lng are required"))
		return
	}

	nq := model.NearbyQuery{
		Lat:      q.floatParam("lat"),
		Lng:      q.floatParam("lng"),
		RadiusKM: q.floatParam("radiusKm"),
		Category: q.get("category"),
		Limit:    q.intParam("limit"),
	}
	nq.ProviderType = q.providerType("providerType")
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}

	out, err := s.svc.Nearby(r.Context(), nq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: out})
}

func (s *Server) importProviders(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeError(w, r, &apiError{Status: http.StatusServiceUnavailable, Code: "import_unavailable", Message: "Import is not configured"})
		return
	}

	var body struct {
		Path string `json:"path"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, r, err)
			return
		}
	}

	opts := s.opts.Import
	if p := strings.TrimSpace(body.Path); p != "" {
		src, err := s.importPath(p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		opts.Source = src
	}

	res, err := s.importer.Run(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: res})
}

// importPath resolves a client-supplied source to a file inside ImportDir.
// Remote locations and paths that leave the directory are refused.
func (s *Server) importPath(p string) (string, error) {
	if s.opts.ImportDir == "" {
		return "", badRequest("invalid_path", "Import path overrides are disabled")
	}
	if u, err := url.Parse(p); err == nil && len(u.Scheme) > 1 {
		return "", badRequest("invalid_path", "Remote import sources are not allowed")
	}

	root, err := filepath.Abs(s.opts.ImportDir)
	if err != nil {
		return "", err
	}
	full := filepath.Clean(p)
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", badRequest("invalid_path", "path must name a file inside the import directory")
	}
	return full, nil
}

func (s *Server) createProvider(w http.ResponseWriter, r *http.Request) {
	var in model.ProviderInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.CreateProvider(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Data: p})
}

func (s *Server) updateProvider(w http.ResponseWriter, r *http.Request) {
	var patch model.ProviderPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.UpdateProvider(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: p})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid_body", "invalid request body")
	}
	return nil
}
