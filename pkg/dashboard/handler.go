package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"edu-etl/pkg/db"
	"edu-etl/pkg/logger"
)

var errBadQuery = errors.New("bad query parameter")

// NewHandler serves the summary over HTTP. Every request opens its own store
// handle and closes it when done.
//
//	GET /healthz     liveness
//	GET /summary     JSON summary (?top=&q=&from=&to=)
//	GET /summary.md  the same summary rendered as markdown
func NewHandler(open db.Opener) http.Handler {
	m := chi.NewRouter()
	m.Use(middleware.RequestID)
	m.Use(middleware.Recoverer)

	m.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	m.Get("/summary", func(w http.ResponseWriter, r *http.Request) {
		sum, status, err := summaryFor(r, open)
		if err != nil {
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, sum)
	})
	m.Get("/summary.md", func(w http.ResponseWriter, r *http.Request) {
		sum, status, err := summaryFor(r, open)
		if err != nil {
			http.Error(w, err.Error(), status)
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		if err := Render(w, sum); err != nil {
			logger.Named("dashboard").Error().Err(err).Msg("render failed")
		}
	})
	return m
}

func summaryFor(r *http.Request, open db.Opener) (Summary, int, error) {
	opt, err := optionsFromQuery(r)
	if err != nil {
		return Summary{}, http.StatusBadRequest, err
	}

	ctx := r.Context()
	s, err := open(ctx)
	if err != nil {
		logger.Named("dashboard").Error().Err(err).Msg("open store failed")
		return Summary{}, http.StatusServiceUnavailable, errors.New("store unavailable")
	}
	defer func() {
		if cerr := s.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Named("dashboard").Warn().Err(cerr).Msg("close store failed")
		}
	}()

	sum, err := Build(ctx, s, opt)
	if err != nil {
		logger.Named("dashboard").Error().Err(err).Str("request_id", middleware.GetReqID(ctx)).Msg("build summary failed")
		return Summary{}, http.StatusInternalServerError, errors.New("summary failed")
	}
	return sum, http.StatusOK, nil
}

func optionsFromQuery(r *http.Request) (Options, error) {
	q := r.URL.Query()
	opt := Options{Query: strings.TrimSpace(q.Get("q"))}

	ints := []struct {
		name string
		dst  *int
	}{
		{"top", &opt.TopN},
		{"from", &opt.FromYear},
		{"to", &opt.ToYear},
	}
	for _, p := range ints {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opt, fmt.Errorf("%w: %s=%q", errBadQuery, p.name, raw)
		}
		*p.dst = n
	}
	if opt.FromYear > 0 && opt.ToYear > 0 && opt.FromYear > opt.ToYear {
		return opt, fmt.Errorf("%w: from %d is after to %d", errBadQuery, opt.FromYear, opt.ToYear)
	}
	return opt, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server is a thin wrapper over the dashboard handler and http.Server
type Server struct {
	srv *http.Server
}

// NewServer binds the dashboard handler to addr
func NewServer(addr string, open db.Opener) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           NewHandler(open),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Run starts the server and blocks until it is shut down
func (s *Server) Run() error {
	logger.Named("dashboard").Info().Str("addr", s.srv.Addr).Msg("http listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
