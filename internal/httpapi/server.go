// Package httpapi serves the dashboard over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"taxi-dashboard/internal/dashboard"
	"taxi-dashboard/internal/engine"
	"taxi-dashboard/internal/export"
	"taxi-dashboard/internal/taxi"
)

// Service is the part of the dashboard service the API needs.
type Service interface {
	Query(ctx context.Context, f engine.Filter) (*engine.Result, error)
	Options() (dashboard.Options, error)
}

// RequestMetrics counts answered requests; it may be nil.
type RequestMetrics interface {
	HTTPRequestInc(route string, code int)
}

type Server struct {
	svc     Service
	metrics RequestMetrics
	router  *chi.Mux
}

// New builds the router. metricsHandler, when not nil, is mounted on /metrics.
func New(svc Service, m RequestMetrics, metricsHandler http.Handler) *Server {
	s := &Server{svc: svc, metrics: m, router: chi.NewRouter()}

	s.router.Use(requestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/options", s.handleOptions)
		r.Get("/export.xlsx", s.handleExport)
	})
	if metricsHandler != nil {
		s.router.Handle("/metrics", metricsHandler)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// Serve starts listening on addr in the background.
func (s *Server) Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()
	log.Printf("http api listening on %s", addr)
	return srv
}

const requestIDHeader = "X-Request-ID"

// requestID keeps a caller supplied request id or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) count(route string, code int) {
	if s.metrics != nil {
		s.metrics.HTTPRequestInc(route, code)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Options(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading", "message": err.Error()})
		s.count("healthz", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	s.count("healthz", http.StatusOK)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.svc.Options()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, dashboard.NewResponse(nil, err))
		s.count("options", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, opts)
	s.count("options", http.StatusOK)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	res, opts, err := s.query(r)
	resp := dashboard.NewResponse(res, err)
	resp.RequestID = r.Header.Get(requestIDHeader)
	resp.Dataset = opts.Dataset
	if resp.Status == dashboard.StatusError {
		log.Printf("dashboard query %s failed: %v", resp.RequestID, err)
	}
	writeJSON(w, resp.HTTPStatus(), resp)
	s.count("dashboard", resp.HTTPStatus())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res, _, err := s.query(r)
	if err != nil {
		resp := dashboard.NewResponse(nil, err)
		resp.RequestID = r.Header.Get(requestIDHeader)
		writeJSON(w, resp.HTTPStatus(), resp)
		s.count("export", resp.HTTPStatus())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="taxi-dashboard.xlsx"`)
	if err := export.Write(w, res); err != nil {
		log.Printf("export %s failed: %v", r.Header.Get(requestIDHeader), err)
	}
	s.count("export", http.StatusOK)
}

func (s *Server) query(r *http.Request) (*engine.Result, dashboard.Options, error) {
	opts, err := s.svc.Options()
	if err != nil {
		return nil, opts, err
	}
	f, bins, err := parseFilter(r, opts)
	if err != nil {
		return nil, opts, err
	}
	res, err := s.svc.Query(r.Context(), f)
	if err != nil {
		return nil, opts, err
	}
	res, err = dashboard.WithBins(res, bins)
	return res, opts, err
}

// parseFilter reads start, end, hour_from, hour_to, payment and bins. Absent
// parameters default to the whole dataset; an explicit empty payment
// parameter selects no payment types.
func parseFilter(r *http.Request, opts dashboard.Options) (engine.Filter, int, error) {
	q := r.URL.Query()
	f := opts.DefaultFilter()
	var err error

	if v := q.Get("start"); v != "" {
		if f.Start, err = taxi.ParseDate(v); err != nil {
			return f, 0, fmt.Errorf("%w: %v", taxi.ErrInvalidFilter, err)
		}
	}
	if v := q.Get("end"); v != "" {
		if f.End, err = taxi.ParseDate(v); err != nil {
			return f, 0, fmt.Errorf("%w: %v", taxi.ErrInvalidFilter, err)
		}
	}
	if f.HourFrom, err = intParam(q.Get("hour_from"), f.HourFrom, "hour_from"); err != nil {
		return f, 0, err
	}
	if f.HourTo, err = intParam(q.Get("hour_to"), f.HourTo, "hour_to"); err != nil {
		return f, 0, err
	}
	if values, ok := q["payment"]; ok {
		f.Payments = []int64{}
		for _, v := range values {
			for _, part := range strings.Split(v, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				code, err := strconv.ParseInt(part, 10, 64)
				if err != nil {
					return f, 0, fmt.Errorf("%w: invalid payment: %q", taxi.ErrInvalidFilter, part)
				}
				f.Payments = append(f.Payments, code)
			}
		}
	}
	bins, err := intParam(q.Get("bins"), 0, "bins")
	if err != nil {
		return f, 0, err
	}
	return f, bins, nil
}

func intParam(v string, def int, name string) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s: %q", taxi.ErrInvalidFilter, name, v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
