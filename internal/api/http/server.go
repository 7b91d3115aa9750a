package httpapi

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Paintersrp/procvisor/internal/api"
	"github.com/Paintersrp/procvisor/internal/metrics"
	"github.com/Paintersrp/procvisor/internal/supervisor"
)

const (
	defaultAddr            = "127.0.0.1:7663"
	defaultReadHeader      = 5 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Config controls construction of the API server.
type Config struct {
	Addr              string
	Controller        api.Controller
	Listener          net.Listener
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server exposes process status, termination and metrics over HTTP.
type Server struct {
	ctrl            api.Controller
	srv             *http.Server
	listener        net.Listener
	shutdownTimeout time.Duration
}

// NewServer constructs a Server. A bare ":port" address binds to loopback.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Controller == nil {
		return nil, errors.New("controller is required")
	}
	if v := reflect.ValueOf(cfg.Controller); v.Kind() == reflect.Ptr && v.IsNil() {
		return nil, fmt.Errorf("controller is required (got nil %T)", cfg.Controller)
	}

	s := &Server{
		ctrl:            cfg.Controller,
		listener:        cfg.Listener,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = defaultShutdownTimeout
	}
	readHeader := cfg.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = defaultReadHeader
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("POST /api/v1/terminate/{name...}", s.handleTerminate)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:              listenAddr(cfg.Addr),
		Handler:           mux,
		ReadHeaderTimeout: readHeader,
	}
	return s, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx stdcontext.Context) error {
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	served := make(chan error, 1)
	go func() { served <- s.serve() }()

	select {
	case err := <-served:
		return ignoreClosed(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := stdcontext.WithTimeout(stdcontext.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ignoreClosed(<-served)
}

func (s *Server) serve() error {
	if s.listener != nil {
		return s.srv.Serve(s.listener)
	}
	return s.srv.ListenAndServe()
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr returns the bound address when a listener was supplied, otherwise the
// configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.ctrl.Status(r.Context())
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type terminateResponse struct {
	Terminate *api.TerminateResult `json:"terminate"`
	Status    *api.StatusReport    `json:"status,omitempty"`
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" || strings.Contains(name, "/") {
		writeError(w, fmt.Errorf("%w: %q", api.ErrUnknownProcess, name), name)
		return
	}
	result, err := s.ctrl.Terminate(r.Context(), name)
	if err != nil {
		writeError(w, err, name)
		return
	}
	resp := terminateResponse{Terminate: result}
	if report, err := s.ctrl.Status(r.Context()); err == nil {
		resp.Status = report
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Process string `json:"process,omitempty"`
}

func writeError(w http.ResponseWriter, err error, process string) {
	status, code := classifyError(err)
	writeJSON(w, status, errorBody{Code: code, Message: err.Error(), Process: process})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, stdcontext.Canceled):
		return 499, "context_canceled"
	case errors.Is(err, stdcontext.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded"
	case errors.Is(err, api.ErrUnknownProcess):
		return http.StatusNotFound, "unknown_process"
	case errors.Is(err, supervisor.ErrKilled):
		return http.StatusConflict, "process_killed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// listenAddr keeps the control API on loopback unless a host is named.
func listenAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	switch {
	case addr == "":
		return defaultAddr
	case strings.HasPrefix(addr, ":"):
		return "127.0.0.1" + addr
	default:
		return addr
	}
}
