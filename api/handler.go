// Package api provides the HTTP surface of a wormhole relay: the ingress
// routes a chat gateway posts platform events to, and the admin routes for
// beams, wormholes, users, and the failure log.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/signature"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Config configures the Handler.
type Config struct {
	// Secret verifies ingress request signatures. Empty disables verification.
	Secret string

	// Tolerance is the accepted clock skew of signed requests.
	Tolerance time.Duration

	// Announce broadcasts a notice to the affected beam after admin changes.
	Announce bool
}

// Handler is the root HTTP handler.
type Handler struct {
	relay     *wormhole.Relay
	config    Config
	validator *validator
	logger    *slog.Logger
	now       func() time.Time
	mux       *http.ServeMux
}

// NewHandler creates a handler serving r.
func NewHandler(r *wormhole.Relay, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = signature.DefaultTolerance
	}

	h := &Handler{
		relay:     r,
		config:    cfg,
		validator: newValidator(),
		logger:    logger,
		now:       time.Now,
		mux:       http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Ingress
	h.mux.Handle("POST /events/messages", h.verified(h.postMessage))
	h.mux.Handle("PUT /events/messages/{channel}/{id}", h.verified(h.editMessage))
	h.mux.Handle("DELETE /events/messages/{channel}/{id}", h.verified(h.deleteMessage))

	// Beams
	h.mux.HandleFunc("POST /beams", h.createBeam)
	h.mux.HandleFunc("GET /beams", h.listBeams)
	h.mux.HandleFunc("GET /beams/{name}", h.getBeam)
	h.mux.HandleFunc("PATCH /beams/{name}", h.setBeam)
	h.mux.HandleFunc("POST /beams/{name}/open", h.openBeam)
	h.mux.HandleFunc("POST /beams/{name}/close", h.closeBeam)
	h.mux.HandleFunc("POST /beams/{name}/announce", h.announce)

	// Wormholes
	h.mux.HandleFunc("POST /wormholes", h.addWormhole)
	h.mux.HandleFunc("GET /wormholes", h.listWormholes)
	h.mux.HandleFunc("GET /wormholes/{channel}", h.getWormhole)
	h.mux.HandleFunc("PATCH /wormholes/{channel}", h.setWormhole)
	h.mux.HandleFunc("DELETE /wormholes/{channel}", h.removeWormhole)

	// Users
	h.mux.HandleFunc("POST /users", h.addUser)
	h.mux.HandleFunc("GET /users", h.listUsers)
	h.mux.HandleFunc("GET /users/{account}", h.getUser)
	h.mux.HandleFunc("PATCH /users/{account}", h.setUser)
	h.mux.HandleFunc("DELETE /users/{account}", h.removeUser)

	// Failures
	h.mux.HandleFunc("GET /failures", h.listFailures)
	h.mux.HandleFunc("GET /failures/{id}", h.getFailure)
	h.mux.HandleFunc("DELETE /failures", h.purgeFailures)

	// Stats
	h.mux.HandleFunc("GET /stats", h.getStats)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

// decodeBody reads the request body, validates it against the named schema,
// and decodes it into v. It writes the error response itself and reports
// whether the caller may continue.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, schema string, v any) bool {
	body, ok := r.Context().Value(bodyKey{}).([]byte)
	if !ok {
		var err error
		if body, err = readBody(r); err != nil {
			writeError(w, http.StatusBadRequest, "unreadable request body")
			return false
		}
	}
	if err := h.validator.validate(schema, body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

// queryTime parses an RFC 3339 query parameter. A missing parameter yields nil.
func queryTime(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
