package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"icsreport/internal/config"
	"icsreport/internal/export"
	"icsreport/internal/ics"
	appLog "icsreport/internal/log"
	"icsreport/internal/model"
	"icsreport/internal/report"
)

// maxUploadBytes caps uploaded calendar documents. Personal calendar
// exports run to a few megabytes; 32 MiB is generous.
const maxUploadBytes = 32 << 20

// embeddedStatic holds the upload form UI.
//
//go:embed all:static
var embeddedStatic embed.FS

// Server exposes the report pipeline over HTTP: an upload form, an ad-hoc
// report endpoint, and a cached report for the configured source.
type Server struct {
	cfg     *config.Config
	fetcher *ics.Fetcher
	mux     *http.ServeMux

	// Cached report for the configured source, refreshed on the cron
	// schedule and lazily when stale.
	cacheMu     sync.RWMutex
	sourceCache *sourceCache
}

// sourceCache holds the last extraction for the configured source.
type sourceCache struct {
	rows      []model.ReportRow
	window    report.Window
	updatedAt time.Time
}

// sourceCacheTTL is the lazy-refresh threshold for GET /api/report; the
// cron schedule remains the primary refresh driver.
const sourceCacheTTL = 15 * time.Minute

func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:     cfg,
		fetcher: ics.NewFetcher(cfg.CacheDir),
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler, wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware protects every endpoint except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="icsreport", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/report", s.handleReport)
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer serves the embedded upload form. /api/* never falls
// through to it.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "UI not available", http.StatusServiceUnavailable)
		})
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// handleReport serves the report two ways:
//
//	POST /api/report?format=json|csv|xlsx  multipart upload (ad-hoc document)
//	GET  /api/report?format=json|csv|xlsx  configured source, cached
//
// A malformed document is a 400, distinct from an empty report (200 with
// zero rows).
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUploadReport(w, r)
	case http.MethodGet:
		s.handleSourceReport(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleUploadReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		email = report.GuessEmailFromFilename(header.Filename)
	}
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required (none given, none found in filename)")
		return
	}

	window, err := s.windowFromForm(r.FormValue("start"), r.FormValue("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := report.Extract(body, email, window)
	if err != nil {
		if errors.Is(err, ics.ErrMalformedDocument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		appLog.Error("upload report failed", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "extraction failed")
		return
	}

	s.respond(w, r, email, window, rows)
}

func (s *Server) handleSourceReport(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Source.URL == "" {
		writeError(w, http.StatusNotFound, "no source configured")
		return
	}
	if s.cfg.Email == "" {
		writeError(w, http.StatusNotFound, "no target email configured")
		return
	}

	s.cacheMu.RLock()
	sc := s.sourceCache
	s.cacheMu.RUnlock()

	if sc == nil || time.Since(sc.updatedAt) > sourceCacheTTL {
		if err := s.Refresh(r.Context()); err != nil {
			if sc == nil {
				appLog.Error("source report refresh failed", err, "id", s.cfg.Source.ID)
				writeError(w, http.StatusBadGateway, "source refresh failed")
				return
			}
			// Serve the stale report rather than failing.
			appLog.Warn("source refresh failed, serving stale report", "id", s.cfg.Source.ID, "age", time.Since(sc.updatedAt))
		}
		s.cacheMu.RLock()
		sc = s.sourceCache
		s.cacheMu.RUnlock()
	}

	s.respond(w, r, s.cfg.Email, sc.window, sc.rows)
}

// Refresh fetches the configured source and rebuilds the cached report for
// the default week window around now in the configured timezone. Wired to
// the serve-mode cron schedule.
func (s *Server) Refresh(ctx context.Context) error {
	src := ics.Source{ID: s.cfg.Source.ID, URL: s.cfg.Source.URL}

	res, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		return err
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	window := report.WeekContaining(time.Now().In(loc), s.cfg.WeekStart)

	rows, err := report.Extract(res.Body, s.cfg.Email, window)
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	s.sourceCache = &sourceCache{rows: rows, window: window, updatedAt: time.Now()}
	s.cacheMu.Unlock()

	appLog.Info("source report refreshed", "id", src.ID, "rows", len(rows), "from_cache", res.FromCache)
	return nil
}

// windowFromForm parses start/end date fields; both empty means the current
// week per config. A single missing edge reuses the other.
func (s *Server) windowFromForm(startStr, endStr string) (report.Window, error) {
	loc := resolveLocationOrLocal(s.cfg.Timezone)
	if startStr == "" && endStr == "" {
		return report.WeekContaining(time.Now().In(loc), s.cfg.WeekStart), nil
	}

	if startStr == "" {
		startStr = endStr
	}
	if endStr == "" {
		endStr = startStr
	}

	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return report.Window{}, errors.New("invalid start date, want YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return report.Window{}, errors.New("invalid end date, want YYYY-MM-DD")
	}
	return report.Window{Start: start, End: end}, nil
}

// reportResponse is the JSON shape of /api/report.
type reportResponse struct {
	Email       string            `json:"email"`
	WindowStart string            `json:"window_start"`
	WindowEnd   string            `json:"window_end"`
	Count       int               `json:"count"`
	Rows        []model.ReportRow `json:"rows"`
}

// respond renders the rows in the requested format. JSON is the default;
// csv and xlsx come back as downloads named like the original exports.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, email string, window report.Window, rows []model.ReportRow) {
	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, reportResponse{
			Email:       email,
			WindowStart: window.Start.Format("2006-01-02"),
			WindowEnd:   window.End.Format("2006-01-02"),
			Count:       len(rows),
			Rows:        rows,
		})
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="accepted_events.csv"`)
		if err := export.WriteCSV(w, rows); err != nil {
			appLog.Error("csv response failed", err)
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="accepted_events.xlsx"`)
		if err := export.WriteXLSX(w, rows); err != nil {
			appLog.Error("xlsx response failed", err)
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown format, want json, csv or xlsx")
	}
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
