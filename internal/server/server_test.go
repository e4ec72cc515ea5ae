package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/rwaoptions/internal/codec"
	"github.com/alanyoungcy/rwaoptions/internal/crypto"
	"github.com/alanyoungcy/rwaoptions/internal/disclosure"
	"github.com/alanyoungcy/rwaoptions/internal/domain"
	"github.com/alanyoungcy/rwaoptions/internal/ledger"
	"github.com/alanyoungcy/rwaoptions/internal/server/handler"
	"github.com/alanyoungcy/rwaoptions/internal/service"
	"github.com/alanyoungcy/rwaoptions/internal/wallet"
)

// memAudit keeps audit entries in memory, oldest first.
type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (m *memAudit) Log(_ context.Context, event string, detail map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, domain.AuditEntry{
		ID: int64(len(m.entries) + 1), Event: event, Detail: detail, CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *memAudit) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		out = append(out, m.entries[i])
	}
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type testEnv struct {
	srv    *httptest.Server
	ledger *ledger.Memory
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	signer, err := crypto.NewSigner(testKeyHex)
	require.NoError(t, err)
	w := wallet.New(signer, false, logger)

	mem := ledger.NewMemory()
	c := codec.New()
	params := disclosure.NewParams("0x04aa", "0x5FbDB2315678afecb367f032d93F642f64180aa3", 31337, time.Unix(1_700_000_000, 0), 30)
	session := service.NewSession(w.Account(), params, time.Unix(1_700_000_000, 0))
	cat := service.NewCatalog(mem, c, disclosure.NewAuthorizer(params, w, c, logger), session, logger).
		WithAudit(&memAudit{})

	h := Handlers{
		Health:     handler.NewHealthHandler(mem),
		Positions:  handler.NewPositionHandler(cat, session.Account, logger),
		Disclosure: handler.NewDisclosureHandler(cat, logger),
		Snapshots:  handler.NewSnapshotHandler(cat, logger),
		Audit:      handler.NewAuditHandler(cat, logger),
	}
	srv := httptest.NewServer(Routes(Config{APIKey: apiKey}, h, nil, logger))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, ledger: mem}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

const createBody = `{"asset":"USDT","strikePrice":"3.50","expiryDays":30,"premium":100,"amount":5000,"positionType":"call"}`

func TestServer_PositionFlow(t *testing.T) {
	env := newTestEnv(t, "")

	status, created := env.do(t, http.MethodPost, "/api/positions", createBody)
	require.Equal(t, http.StatusCreated, status)
	id := created["id"].(string)
	assert.Equal(t, "active", created["status"])
	assert.Equal(t, "active", created["displayStatus"])
	assert.Equal(t, true, created["canExercise"])
	assert.True(t, strings.HasPrefix(created["premium"].(string), codec.DefaultTag))

	status, list := env.do(t, http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list["positions"], 1)

	status, body := env.do(t, http.MethodPost, "/api/positions/"+id+"/disclose", `{"field":"premium","approve":false}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, domain.ErrUserRejected.Error(), body["error"])

	status, body = env.do(t, http.MethodPost, "/api/positions/"+id+"/disclose", `{"field":"amount","approve":true}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 5000.0, body["value"])

	status, body = env.do(t, http.MethodPost, "/api/positions/"+id+"/exercise", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "exercised", body["status"])

	status, _ = env.do(t, http.MethodPost, "/api/positions/"+id+"/exercise", "")
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.do(t, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["total"])
	assert.Equal(t, 0.0, body["active"])
}

func TestServer_ErrorMapping(t *testing.T) {
	env := newTestEnv(t, "")

	status, _ := env.do(t, http.MethodGet, "/api/positions/missing", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodPost, "/api/positions", `{"asset":"DOGE"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/api/positions", `{not json`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/api/snapshots", "")
	assert.Equal(t, http.StatusNotFound, status, "snapshots disabled")

	env.ledger.SetAvailable(false)
	status, _ = env.do(t, http.MethodPost, "/api/positions", createBody)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, body := env.do(t, http.MethodGet, "/api/positions", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["positions"])

	status, body = env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["ledgerAvailable"])
}

func TestServer_Session(t *testing.T) {
	env := newTestEnv(t, "")

	status, body := env.do(t, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", body["account"])
	assert.Equal(t, "publickey:0x04aa\n"+
		"contractAddresses:0x5FbDB2315678afecb367f032d93F642f64180aa3\n"+
		"contractsChainId:31337\n"+
		"startTimestamp:1700000000\n"+
		"durationDays:30", body["message"])
}

func TestServer_AuthExemptsHealth(t *testing.T) {
	env := newTestEnv(t, "secret")

	status, _ := env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/api/positions", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodGet, "/api/audit", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestServer_AuditLog(t *testing.T) {
	env := newTestEnv(t, "")

	status, created := env.do(t, http.MethodPost, "/api/positions", createBody)
	require.Equal(t, http.StatusCreated, status)
	id := created["id"].(string)
	status, _ = env.do(t, http.MethodPost, "/api/positions/"+id+"/exercise", "")
	require.Equal(t, http.StatusOK, status)

	status, body := env.do(t, http.MethodGet, "/api/audit", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2.0, body["count"])
	entries := body["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "position_exercised", entries[0].(map[string]any)["event"], "newest first")
	assert.Equal(t, "position_created", entries[1].(map[string]any)["event"])

	status, body = env.do(t, http.MethodGet, "/api/audit?limit=1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["count"])

	status, _ = env.do(t, http.MethodGet, "/api/audit?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_AuditRouteAbsentWithoutStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(Routes(Config{}, Handlers{Health: handler.NewHealthHandler(ledger.NewMemory())}, nil, logger))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/audit")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
