// Package httpserver exposes the three webhook ingress endpoints plus a
// health check over plain net/http, grounded on the teacher's
// pkg/devclaw/gateway HTTP API gateway (same http.ServeMux + middleware
// chain shape, generalized from the assistant's REST surface to chatrelay's
// three transport webhooks, spec.md §6).
package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/router"
)

// Server wires the webhook router behind /healthz, /webhook/signal,
// /webhook/whatsapp, and /webhook/telegram.
type Server struct {
	router *router.Router
	logger *slog.Logger
	addr   string
	server *http.Server
}

// New builds a Server listening on addr once Start is called.
func New(r *router.Router, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{router: r, logger: logger.With("component", "httpserver"), addr: addr}
}

// Start builds the mux, wraps it with the request-id/logging middleware,
// and blocks serving on s.addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/webhook/signal", s.handleWebhook(s.router.HandleSignal))
	mux.HandleFunc("/webhook/whatsapp", s.handleWebhook(s.router.HandleWhatsApp))
	mux.HandleFunc("/webhook/telegram", s.handleTelegram)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.requestIDMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// requestIDMiddleware stamps every request with a correlation id (the
// teacher's session ids use the same uuid package for the same purpose),
// echoed back in the X-Request-Id response header and carried in logs.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled", "request_id", id, "path", r.URL.Path, "method", r.Method)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type webhookFunc func(ctx context.Context, body map[string]any) router.Acknowledgement

func (s *Server) handleWebhook(fn webhookFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := decodeBody(r)
		if !ok {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "unsupported_event"})
			return
		}
		ack := fn(r.Context(), body)
		writeAck(w, ack)
	}
}

func (s *Server) handleTelegram(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "unsupported_event"})
		return
	}
	secret := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
	ack := s.router.HandleTelegram(r.Context(), body, secret)
	writeAck(w, ack)
}

func decodeBody(r *http.Request) (map[string]any, bool) {
	defer r.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, false
	}
	return body, true
}

func writeAck(w http.ResponseWriter, ack router.Acknowledgement) {
	writeJSON(w, http.StatusOK, map[string]string{"status": ack.Status, "reason": ack.Reason})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
