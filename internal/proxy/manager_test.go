package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hollowgate/launcherd/internal/domain"
	"github.com/hollowgate/launcherd/internal/infra"
)

func newTestManager(t *testing.T, store domain.SystemProxyStore, policy Policy) *Manager {
	t.Helper()
	cfg := Config{
		ListenAddr: "127.0.0.1:0",
		Policy:     policy,
	}
	return NewManager(cfg, store, zap.NewNop())
}

// proxyClient returns an http.Client routing every request through the
// running manager, the way a system-proxied application would.
func proxyClient(t *testing.T, m *Manager) *http.Client {
	t.Helper()
	proxyURL, err := url.Parse("http://" + m.Addr())
	require.NoError(t, err)
	return &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		Timeout:   5 * time.Second,
	}
}

func TestStartStopRestoresSnapshot(t *testing.T) {
	original := domain.ProxySnapshot{
		Enabled: false,
		Server:  "",
		Bypass:  "",
	}
	store := infra.NewMemoryProxyStore(original)
	m := newTestManager(t, store, testPolicy())

	_, err := m.Start()
	require.NoError(t, err)
	assert.Equal(t, Running, m.State())

	during, err := store.Get()
	require.NoError(t, err)
	assert.True(t, during.Enabled)
	assert.Equal(t, m.Addr(), during.Server)
	assert.Equal(t, "localhost;127.*", during.Bypass)

	_, err = m.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stopped, m.State())

	after, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, original, after, "pre-start settings must come back verbatim, disabled state included")
}

func TestStartWhileRunningFails(t *testing.T) {
	store := infra.NewMemoryProxyStore(domain.ProxySnapshot{})
	m := newTestManager(t, store, testPolicy())

	_, err := m.Start()
	require.NoError(t, err)
	defer m.ForceStop()

	_, err = m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestForceStopWhenStoppedIsNoop(t *testing.T) {
	store := infra.NewMemoryProxyStore(domain.ProxySnapshot{})
	m := newTestManager(t, store, testPolicy())

	m.ForceStop()
	assert.Equal(t, Stopped, m.State())
}

func TestStopWhenStoppedFails(t *testing.T) {
	store := infra.NewMemoryProxyStore(domain.ProxySnapshot{})
	m := newTestManager(t, store, testPolicy())

	_, err := m.Stop(context.Background())
	require.Error(t, err)
}

func TestConnectAnsweredWithoutTunnel(t *testing.T) {
	store := infra.NewMemoryProxyStore(domain.ProxySnapshot{})
	m := newTestManager(t, store, testPolicy())

	req := httptest.NewRequest(http.MethodConnect, "//secure.example.com:443", nil)
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestBlockedRequestAnswers204(t *testing.T) {
	store := infra.NewMemoryProxyStore(domain.ProxySnapshot{})
	m := newTestManager(t, store, testPolicy())

	req := httptest.NewRequest(http.MethodPost, "http://overseauspider.yuanshen.com/log", nil)
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRedirectRelaysToUpstream(t *testing.T) {
	var gotPath, gotQuery, gotHeader string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Get("X-Rpc-Client")
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, "relayed")
	}))
	defer upstream.Close()

	upstreamURL, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	policy := testPolicy()
	policy.UpstreamHost = upstreamURL.Host

	store := infra.NewMemoryProxyStore(domain.ProxySnapshot{})
	m := newTestManager(t, store, policy)

	req := httptest.NewRequest(http.MethodGet, "http://sg-public-api.hoyoverse.com/combo/box?lang=en", nil)
	req.Header.Set("X-Rpc-Client", "4")
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "relayed", string(body))
	assert.Equal(t, "/combo/box", gotPath)
	assert.Equal(t, "lang=en", gotQuery)
	assert.Equal(t, "4", gotHeader, "request headers must survive the redirect")
}

func TestUnreachableUpstreamAnswers502(t *testing.T) {
	// Bind then immediately close to get a port nothing listens on.
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	store := infra.NewMemoryProxyStore(domain.ProxySnapshot{})
	m := newTestManager(t, store, testPolicy())

	req := httptest.NewRequest(http.MethodGet, deadURL+"/anything", nil)
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestProxyEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer upstream.Close()

	store := infra.NewMemoryProxyStore(domain.ProxySnapshot{})
	m := newTestManager(t, store, testPolicy())

	_, err := m.Start()
	require.NoError(t, err)
	defer m.ForceStop()
	require.NotEmpty(t, m.Addr())

	client := proxyClient(t, m)

	resp, err := client.Get(upstream.URL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = client.Get("http://overseauspider.yuanshen.com/log")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
