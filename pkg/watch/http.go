package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	log "github.com/sirupsen/logrus"
)

const (
	HealthzEndpoint = "/healthz"
	MetricsEndpoint = "/metrics"
	ChecksEndpoint  = "/api/v1/checks"

	shutdownTimeout = 10 * time.Second
)

type server struct {
	logger    log.FieldLogger
	scheduler *Scheduler
}

type requestLogger struct {
	log.FieldLogger
}

func (l *requestLogger) Print(v ...interface{}) {
	l.FieldLogger.Info(v...)
}

// NewRouter serves health, metrics and check status endpoints. Checks can be
// run on demand with POST /api/v1/checks/{name}/run.
func NewRouter(logger log.FieldLogger, scheduler *Scheduler, metrics http.Handler) chi.Router {
	router := chi.NewRouter()
	logger = logger.WithField("component", "api")
	router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: &requestLogger{logger}}))
	router.Use(middleware.Recoverer)

	srv := &server{logger: logger, scheduler: scheduler}

	router.Get(HealthzEndpoint, srv.healthzHandler)
	if metrics != nil {
		router.Method(http.MethodGet, MetricsEndpoint, metrics)
	}
	router.Get(ChecksEndpoint, srv.listChecksHandler)
	router.Post(ChecksEndpoint+"/{name}/run", srv.runCheckHandler)
	return router
}

func (srv *server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeResponseAsJSON(srv.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (srv *server) listChecksHandler(w http.ResponseWriter, r *http.Request) {
	writeResponseAsJSON(srv.logger, w, http.StatusOK, srv.scheduler.Status())
}

func (srv *server) runCheckHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	logger := srv.logger.WithField("job", name)

	err := srv.scheduler.Trigger(r.Context(), name)
	switch {
	case errors.Is(err, ErrUnknownJob):
		writeErrorResponse(logger, w, http.StatusNotFound, "check %s does not exist", name)
		return
	case err != nil:
		writeErrorResponse(logger, w, http.StatusInternalServerError, "check %s failed: %v", name, err)
		return
	}
	for _, st := range srv.scheduler.Status() {
		if st.Name == name {
			writeResponseAsJSON(logger, w, http.StatusOK, st)
			return
		}
	}
	writeErrorResponse(logger, w, http.StatusNotFound, "check %s does not exist", name)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeErrorResponse(logger log.FieldLogger, w http.ResponseWriter, status int, message string, args ...interface{}) {
	msg := fmt.Sprintf(message, args...)
	writeResponseAsJSON(logger, w, status, errorResponse{Error: msg})
}

// writeResponseAsJSON attempts to marshal an arbitrary thing to JSON then write
// it to the http.ResponseWriter
func writeResponseAsJSON(logger log.FieldLogger, w http.ResponseWriter, code int, resp interface{}) {
	enc, err := json.Marshal(resp)
	if err != nil {
		logger.WithError(err).Error("failed JSON-encoding HTTP response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err = w.Write(enc); err != nil {
		logger.WithError(err).Error("failed writing HTTP response")
	}
}

// Serve listens on addr until ctx is cancelled, then shuts the server down
// gracefully.
func Serve(ctx context.Context, logger log.FieldLogger, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %v", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %v", err)
	}
	return nil
}
