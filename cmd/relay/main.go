package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"quietwire/internal/domain"
)

// --- Flags ---

var (
	listenAddr    string
	enableLogging bool
)

// --- Constants ---

// Networking and server limits.
const (
	readHeaderTO   = 5 * time.Second
	readTO         = 10 * time.Second
	writeTO        = 10 * time.Second
	idleTO         = 60 * time.Second
	maxRequestBody = 1 << 20 // 1 MiB cap for incoming JSON bodies
)

// Relay policy limits.
const (
	maxPerUserQueue = 1000             // cap messages kept per user
	maxPayloadBytes = 64 << 10         // 64 KiB max envelope payload
	maxOneTimeKeys  = 500              // max one-time prekeys per device
	maxFutureSkew   = 10 * time.Minute // reject timestamps too far in the future
)

// --- Metrics ---

var (
	bundlesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quietwire_relay_bundles_published_total",
		Help: "Total prekey bundles published",
	})
	bundlesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quietwire_relay_bundles_fetched_total",
		Help: "Total prekey bundles handed out",
	})
	oneTimeExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quietwire_relay_one_time_exhausted_total",
		Help: "Bundle fetches served without a one-time prekey",
	})
	messagesQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quietwire_relay_messages_queued_total",
		Help: "Total envelopes accepted for delivery",
	})
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quietwire_relay_queue_depth",
		Help: "Envelopes currently queued across all users",
	})
)

// --- State ---

// device is one registered device: its public bundle and the one-time pool
// the directory may hand out.
type device struct {
	bundle  domain.PreKeyBundle
	oneTime []domain.OneTimePreKey
}

// state holds registered devices and per-user message queues.
type state struct {
	mu      sync.Mutex
	devices map[string]*device
	queues  map[string][]domain.RelayMessage
	entropy *rand.Rand
}

// newState initialises an empty relay state.
func newState() *state {
	return &state{
		devices: make(map[string]*device),
		queues:  make(map[string][]domain.RelayMessage),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// publish stores (replaces) a device's bundle and one-time pool.
func (s *state) publish(id string, req publishRequest) error {
	if len(req.OneTime) > maxOneTimeKeys {
		return fmt.Errorf("too many one-time prekeys (max %d)", maxOneTimeKeys)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[id] = &device{
		bundle:  req.Bundle,
		oneTime: append([]domain.OneTimePreKey(nil), req.OneTime...),
	}
	return nil
}

// takeBundle returns the device's bundle with one one-time prekey popped.
// The pop happens under the lock: two initiators can never receive the
// same one-time key. An empty pool degrades to a bundle without one.
func (s *state) takeBundle(id string) (domain.PreKeyBundle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dev, ok := s.devices[id]
	if !ok {
		return domain.PreKeyBundle{}, false
	}
	b := dev.bundle
	if len(dev.oneTime) > 0 {
		opk := dev.oneTime[0]
		dev.oneTime = dev.oneTime[1:]
		b.OneTime = &opk
	} else {
		oneTimeExhausted.Inc()
	}
	return b, true
}

// enqueue appends a message to the recipient's queue, assigning its id.
func (s *state) enqueue(msg domain.RelayMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[msg.To]
	if len(q) >= maxPerUserQueue {
		return "", fmt.Errorf("queue full for %q", msg.To)
	}
	msg.ID = ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
	s.queues[msg.To] = append(q, msg)
	queueDepth.Inc()
	return msg.ID, nil
}

// fetch returns up to limit queued messages without removing them.
func (s *state) fetch(user string, limit int) []domain.RelayMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[user]
	if limit <= 0 || limit > len(q) {
		limit = len(q)
	}
	out := make([]domain.RelayMessage, limit)
	copy(out, q[:limit])
	return out
}

// ack drops the first count messages from the user's queue.
func (s *state) ack(user string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[user]
	if count > len(q) {
		count = len(q)
	}
	s.queues[user] = q[count:]
	queueDepth.Sub(float64(count))
}

// publishRequest mirrors the client's POST /devices/{id}/bundle body.
type publishRequest struct {
	Bundle  domain.PreKeyBundle    `json:"bundle"`
	OneTime []domain.OneTimePreKey `json:"one_time,omitempty"`
}

type ackRequest struct {
	Count int `json:"count"`
}

// --- Handlers ---

func handlePublish(st *state) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var req publishRequest
		if err := decodeBody(w, r, &req); err != nil {
			return
		}
		if req.Bundle.IdentityKey.IsZero() || req.Bundle.SignedPreKey.Pub.IsZero() {
			writeErr(w, http.StatusBadRequest, "incomplete bundle")
			return
		}
		if err := st.publish(id, req); err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		bundlesPublished.Inc()
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func handleFetchBundle(st *state) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		b, ok := st.takeBundle(id)
		if !ok {
			writeErr(w, http.StatusNotFound, "unknown user")
			return
		}
		bundlesFetched.Inc()
		writeJSON(w, b)
	}
}

func handleSend(st *state) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		to := r.PathValue("to")
		var msg domain.RelayMessage
		if err := decodeBody(w, r, &msg); err != nil {
			return
		}
		msg.To = to
		if len(msg.Payload) == 0 || len(msg.Payload) > maxPayloadBytes {
			writeErr(w, http.StatusBadRequest, "bad payload size")
			return
		}
		if msg.Timestamp > time.Now().Add(maxFutureSkew).Unix() {
			writeErr(w, http.StatusBadRequest, "timestamp too far in the future")
			return
		}
		id, err := st.enqueue(msg)
		if err != nil {
			writeErr(w, http.StatusTooManyRequests, err.Error())
			return
		}
		messagesQueued.Inc()
		writeJSON(w, map[string]string{"id": id})
	}
}

func handleFetchMessages(st *state) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := r.PathValue("user")
		limit, err := parseLimit(r.URL.Query().Get("limit"))
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid limit")
			return
		}
		writeJSON(w, st.fetch(user, limit))
	}
}

func handleAck(st *state) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := r.PathValue("user")
		var req ackRequest
		if err := decodeBody(w, r, &req); err != nil {
			return
		}
		if req.Count < 0 {
			writeErr(w, http.StatusBadRequest, "invalid count")
			return
		}
		st.ack(user, req.Count)
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

// --- Utilities ---

// decodeBody parses the JSON body with a size cap, writing the error
// response itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON body")
		return err
	}
	return nil
}

// writeJSON encodes v as JSON with no HTML escaping.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encode error: %v", err), http.StatusInternalServerError)
	}
}

// writeErr writes a JSON error object with a given status code.
func writeErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseLimit parses the optional "limit" query parameter.
func parseLimit(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	return n, nil
}

// withLogging logs method, path, status and duration for each request.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !enableLogging {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lrw, r)
		slog.Info("access",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lrw.status,
			"dur", time.Since(start),
		)
	})
}

// loggingResponseWriter captures the status code for access logs.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader records the status code then forwards to the underlying writer.
func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Write defaults the status to 200 if unset.
func (lrw *loggingResponseWriter) Write(p []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	return lrw.ResponseWriter.Write(p)
}

// --- Main ---

func main() {
	_ = godotenv.Load()

	pflag.StringVar(&listenAddr, "listen", envOr("QUIETWIRE_RELAY_LISTEN", ":8080"), "listen address")
	pflag.BoolVar(&enableLogging, "log", true, "enable access logging")
	pflag.Parse()

	st := newState()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /devices/{id}/bundle", handlePublish(st))
	mux.HandleFunc("GET /users/{id}/prekey-bundle", handleFetchBundle(st))
	mux.HandleFunc("POST /messages/{to}", handleSend(st))
	mux.HandleFunc("GET /messages/{user}", handleFetchMessages(st))
	mux.HandleFunc("POST /messages/{user}/ack", handleAck(st))
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           withLogging(mux),
		ReadHeaderTimeout: readHeaderTO,
		ReadTimeout:       readTO,
		WriteTimeout:      writeTO,
		IdleTimeout:       idleTO,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("relay listening", "addr", listenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	slog.Info("relay stopped")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
