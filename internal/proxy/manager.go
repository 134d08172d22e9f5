package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/hollowgate/launcherd/internal/domain"
)

// State is the proxy lifecycle state.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

// Config holds the proxy's listen address and request policy.
type Config struct {
	// ListenAddr is the loopback address the proxy binds and registers
	// as the system proxy.
	ListenAddr string
	Policy     Policy
}

// handle represents "proxy is running": the bound server plus the system
// proxy snapshot captured immediately before the proxy was enabled.
// Exactly zero or one handle exists at a time.
type handle struct {
	server   *http.Server
	addr     string
	snapshot domain.ProxySnapshot
}

// Manager owns the proxy lifecycle: Stopped → Starting → Running →
// Stopping → Stopped. Starting while Running is a caller error, not a
// silent no-op. The handle and state share one lock, never held across
// network operations.
type Manager struct {
	cfg    Config
	store  domain.SystemProxyStore
	logger *zap.Logger
	client *http.Client

	mu     sync.Mutex
	state  State
	handle *handle
}

// NewManager creates a proxy manager. The upstream client deliberately
// ignores environment proxy settings: while the proxy runs it IS the
// system proxy, and honoring them would loop requests back into itself.
func NewManager(cfg Config, store domain.SystemProxyStore, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		store:  store,
		logger: logger,
		client: &http.Client{
			Transport: &http.Transport{Proxy: nil},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsRunning reports whether the proxy is currently serving.
func (m *Manager) IsRunning() bool {
	return m.State() == Running
}

// Addr returns the bound listener address, or "" when not running.
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return ""
	}
	return m.handle.addr
}

// Start snapshots the system proxy settings, points them at the local
// listener, binds it and serves the accept loop on a background
// goroutine. Binding or settings-write failure aborts the transition,
// rolls back any settings mutation and leaves the state Stopped.
func (m *Manager) Start() (string, error) {
	m.mu.Lock()
	if m.state != Stopped {
		state := m.state
		m.mu.Unlock()
		return "", fmt.Errorf("proxy already %s", state)
	}
	m.state = Starting
	m.mu.Unlock()

	// The snapshot must exist before any mutation so stop can always
	// restore the exact prior configuration.
	snapshot, err := m.store.Get()
	if err != nil {
		m.setStopped()
		return "", fmt.Errorf("snapshot system proxy settings: %w", err)
	}

	listener, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		m.setStopped()
		return "", fmt.Errorf("bind proxy listener on %s: %w", m.cfg.ListenAddr, err)
	}

	// Register the bound address, not the configured one: with a ":0"
	// listen address they differ.
	if err := m.store.Set(domain.ProxySnapshot{
		Enabled: true,
		Server:  listener.Addr().String(),
		Bypass:  "localhost;127.*",
	}); err != nil {
		listener.Close()
		m.setStopped()
		return "", fmt.Errorf("write system proxy settings: %w", err)
	}

	server := &http.Server{Handler: m}
	h := &handle{
		server:   server,
		addr:     listener.Addr().String(),
		snapshot: snapshot,
	}

	m.mu.Lock()
	m.state = Running
	m.handle = h
	m.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			m.logger.Error("proxy accept loop failed", zap.Error(err))
		}
	}()

	m.logger.Info("proxy started", zap.String("addr", h.addr))
	return fmt.Sprintf("proxy listening on %s", h.addr), nil
}

// Stop shuts the accept loop down gracefully, then restores the
// snapshotted system proxy settings verbatim, even if that means leaving
// the system proxy disabled.
func (m *Manager) Stop(ctx context.Context) (string, error) {
	h, err := m.beginStop()
	if err != nil {
		return "", err
	}

	if err := h.server.Shutdown(ctx); err != nil {
		m.logger.Warn("proxy graceful shutdown incomplete", zap.Error(err))
	}

	m.finishStop(h)
	return "proxy stopped", nil
}

// ForceStop tears the proxy down without waiting for in-flight requests.
// Stopping an already-stopped proxy is a non-fatal no-op so cleanup paths
// can call it unconditionally.
func (m *Manager) ForceStop() {
	h, err := m.beginStop()
	if err != nil {
		m.logger.Debug("force stop skipped", zap.Error(err))
		return
	}

	if err := h.server.Close(); err != nil {
		m.logger.Warn("proxy close failed", zap.Error(err))
	}

	m.finishStop(h)
}

func (m *Manager) beginStop() (*handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Running {
		return nil, fmt.Errorf("proxy is not running (state %s)", m.state)
	}
	m.state = Stopping
	return m.handle, nil
}

// finishStop restores the pre-start settings on every stop path, normal
// or forced.
func (m *Manager) finishStop(h *handle) {
	if err := m.store.Set(h.snapshot); err != nil {
		m.logger.Error("failed to restore system proxy settings", zap.Error(err))
	}

	m.mu.Lock()
	m.state = Stopped
	m.handle = nil
	m.mu.Unlock()

	m.logger.Info("proxy stopped, system proxy settings restored")
}

func (m *Manager) setStopped() {
	m.mu.Lock()
	m.state = Stopped
	m.mu.Unlock()
}

// ServeHTTP handles one proxied request.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		// Known simplification: the tunnel request is accepted but no
		// bytes are ever relayed, so HTTPS traffic is not intercepted.
		w.WriteHeader(http.StatusOK)
		return
	}

	decision, matched := m.cfg.Policy.Evaluate(r)

	if matched && m.cfg.Policy.ShowLog {
		m.logger.Info("matched filtered request",
			zap.String("url", r.URL.String()),
			zap.String("decision", decision.String()))
	}

	switch decision {
	case Block:
		w.WriteHeader(http.StatusNoContent)
	case Redirect:
		m.relay(w, r, redirectURL(r.URL, m.cfg.Policy.UpstreamHost))
	default:
		m.relay(w, r, r.URL.String())
	}
}

// relay re-issues the request against target and copies the response
// back. Upstream failure answers 502; it is never fatal to the proxy.
func (m *Manager) relay(w http.ResponseWriter, r *http.Request, target string) {
	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		m.logger.Warn("invalid relay target", zap.String("target", target), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	copyHeaders(outReq.Header, r.Header)

	resp, err := m.client.Do(outReq)
	if err != nil {
		m.logger.Warn("upstream request failed",
			zap.String("target", target),
			zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		m.logger.Debug("relay copy interrupted", zap.Error(err))
	}
}

// redirectURL swaps the host for the upstream, keeping scheme, path and
// query intact.
func redirectURL(original *url.URL, upstreamHost string) string {
	redirected := *original
	redirected.Host = upstreamHost
	if redirected.Scheme == "" {
		redirected.Scheme = "http"
	}
	return redirected.String()
}

// hop-by-hop headers must not be relayed; Host is re-derived from the
// target URL.
var skipHeaders = map[string]bool{
	"Host":                true,
	"Connection":          true,
	"Proxy-Connection":    true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if skipHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}
