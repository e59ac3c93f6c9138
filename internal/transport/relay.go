// Package transport carries consignments between payer and recipient through
// a store-and-forward relay addressed by terminal.
package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goodnatureofminers/sealtransfer/internal/consignment"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	defaultTTL     = 72 * time.Hour
	defaultMaxSize = 16 << 20

	consignmentPath = "/v1/consignments/{terminal}"
	ackPath         = "/v1/consignments/{terminal}/ack"
)

// RelayConfig tunes the mailbox.
type RelayConfig struct {
	// TTL is how long a consignment and its ack are kept.
	TTL time.Duration
	// MaxSize caps the accepted body size in bytes.
	MaxSize int64
}

type entry struct {
	data []byte
	ack  *Ack
}

// Relay is an in-memory mailbox of consignments keyed by terminal. Posted
// consignments are kept in their binary form whatever form they arrived in.
type Relay struct {
	mu      sync.Mutex
	entries *cache.Cache
	cfg     RelayConfig
	metrics RelayMetrics
	logger  *zap.Logger
}

// NewRelay builds a Relay.
func NewRelay(cfg RelayConfig, metrics RelayMetrics, logger *zap.Logger) *Relay {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaultMaxSize
	}
	return &Relay{
		entries: cache.New(cfg.TTL, cfg.TTL/4),
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.Named("relay"),
	}
}

// Register mounts the relay routes on mux.
func (r *Relay) Register(mux *gwruntime.ServeMux) error {
	routes := []struct {
		method  string
		pattern string
		handler gwruntime.HandlerFunc
	}{
		{http.MethodPost, consignmentPath, r.observed("post_consignment", r.postConsignment)},
		{http.MethodGet, consignmentPath, r.observed("get_consignment", r.getConsignment)},
		{http.MethodPost, ackPath, r.observed("post_ack", r.postAck)},
		{http.MethodGet, ackPath, r.observed("get_ack", r.getAck)},
	}
	for _, route := range routes {
		if err := mux.HandlePath(route.method, route.pattern, route.handler); err != nil {
			return fmt.Errorf("register %s %s: %w", route.method, route.pattern, err)
		}
	}
	return nil
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (r *Relay) observed(operation string, h gwruntime.HandlerFunc) gwruntime.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request, params map[string]string) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, req, params)
		r.metrics.ObserveRequest(operation, sw.code)
	}
}

func (r *Relay) postConsignment(w http.ResponseWriter, req *http.Request, params map[string]string) {
	terminal, ok := r.terminal(w, params)
	if !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.cfg.MaxSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "consignment too large")
			return
		}
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	c, err := consignment.Load(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !names(c, terminal) {
		writeError(w, http.StatusBadRequest, "consignment does not end at "+terminal.String())
		return
	}
	data, err = consignment.Marshal(c)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := terminal.String()
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, found := r.lookup(key); found {
		if bytes.Equal(existing.data, data) {
			w.WriteHeader(http.StatusOK)
			return
		}
		writeError(w, http.StatusConflict, "another consignment is already posted for "+key)
		return
	}
	r.entries.Set(key, &entry{data: data}, cache.DefaultExpiration)
	r.metrics.ObserveStored(len(data))
	r.logger.Info("consignment stored",
		zap.String("terminal", key),
		zap.Stringer("contract", c.ContractID),
		zap.Int("size", len(data)),
	)
	w.WriteHeader(http.StatusCreated)
}

func (r *Relay) getConsignment(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	terminal, ok := r.terminal(w, params)
	if !ok {
		return
	}
	r.mu.Lock()
	e, found := r.lookup(terminal.String())
	r.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "no consignment for "+terminal.String())
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.data)
}

func (r *Relay) postAck(w http.ResponseWriter, req *http.Request, params map[string]string) {
	terminal, ok := r.terminal(w, params)
	if !ok {
		return
	}
	var ack Ack
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 64<<10)).Decode(&ack); err != nil {
		writeError(w, http.StatusBadRequest, "decode ack: "+err.Error())
		return
	}

	key := terminal.String()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, found := r.lookup(key)
	if !found {
		writeError(w, http.StatusNotFound, "no consignment for "+key)
		return
	}
	if e.ack != nil {
		if *e.ack == ack {
			w.WriteHeader(http.StatusOK)
			return
		}
		writeError(w, http.StatusConflict, "consignment already acknowledged")
		return
	}
	e.ack = &ack
	r.logger.Info("consignment acknowledged", zap.String("terminal", key), zap.Bool("accepted", ack.Accepted))
	w.WriteHeader(http.StatusCreated)
}

func (r *Relay) getAck(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	terminal, ok := r.terminal(w, params)
	if !ok {
		return
	}
	r.mu.Lock()
	e, found := r.lookup(terminal.String())
	var ack *Ack
	if found && e.ack != nil {
		copied := *e.ack
		ack = &copied
	}
	r.mu.Unlock()
	if ack == nil {
		writeError(w, http.StatusNotFound, "no ack for "+terminal.String())
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (r *Relay) lookup(key string) (*entry, bool) {
	v, found := r.entries.Get(key)
	if !found {
		return nil, false
	}
	e, ok := v.(*entry)
	return e, ok
}

func (r *Relay) terminal(w http.ResponseWriter, params map[string]string) (model.Terminal, bool) {
	terminal, err := model.ParseTerminal(params["terminal"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return model.Terminal{}, false
	}
	return terminal, true
}

func names(c *consignment.Consignment, terminal model.Terminal) bool {
	for _, t := range c.Terminals {
		if t == terminal {
			return true
		}
	}
	return false
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
