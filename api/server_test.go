package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-opera-forksim/sim"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewServer(cfg, log, sim.WithLogger(log))
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		enc, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(enc)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		ID    string                 `json:"id"`
		State map[string]interface{} `json:"state"`
	}
	decode(t, w, &resp)
	require.NotEmpty(t, resp.ID)
	require.Equal(t, "LEGACY", resp.State["defense_mode"])
	return resp.ID
}

func TestLegacyAttackOverHTTP(t *testing.T) {
	require := require.New(t)
	srv := newTestServer(t, Config{Metrics: true})
	h := srv.Handler()
	id := createSession(t, h)
	base := "/api/sessions/" + id

	var out sim.Outcome

	w := do(t, h, http.MethodPost, base+"/broadcast_chain", nil)
	require.Equal(http.StatusOK, w.Code)
	decode(t, w, &out)
	require.False(out.Success)
	require.Equal(sim.MsgNoAttackFork, out.Message)

	for _, cmd := range []string{"crack_key", "acquire_hash_power"} {
		w = do(t, h, http.MethodPost, base+"/"+cmd, nil)
		require.Equal(http.StatusOK, w.Code, cmd)
		out = sim.Outcome{}
		decode(t, w, &out)
		require.True(out.Success, cmd)
	}

	w = do(t, h, http.MethodPost, base+"/mine_attack_block", map[string]int{"count": 3})
	require.Equal(http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, base+"/broadcast_chain", nil)
	require.Equal(http.StatusOK, w.Code)
	out = sim.Outcome{}
	decode(t, w, &out)
	require.True(out.Success, out.Message)
	require.True(out.Reorganized)
	require.NotNil(out.Verdict)

	w = do(t, h, http.MethodGet, base+"/state", nil)
	require.Equal(http.StatusOK, w.Code)
	var st sim.State
	decode(t, w, &st)
	eve, ok := st.Wallet(sim.Adversary)
	require.True(ok)
	require.EqualValues(110, eve.Balance)

	w = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(body, `forksim_consensus_fork_decisions_total{accepted="true",mode="LEGACY",rule="longest_chain"} 1`)
	require.Contains(body, "forksim_api_requests_total")
}

func TestDefenseModeEndpoint(t *testing.T) {
	require := require.New(t)
	h := newTestServer(t, Config{}).Handler()
	base := "/api/sessions/" + createSession(t, h)

	w := do(t, h, http.MethodPost, base+"/defense_mode", map[string]string{"mode": "stake-cbl"})
	require.Equal(http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, base+"/crack_key", nil)
	require.Equal(http.StatusOK, w.Code)
	var out sim.Outcome
	decode(t, w, &out)
	require.False(out.Success)
	require.Equal(sim.MsgUncrackable, out.Message)

	w = do(t, h, http.MethodPost, base+"/defense_mode", map[string]string{"mode": "PARANOID"})
	require.Equal(http.StatusBadRequest, w.Code)
	var er ErrorResponse
	decode(t, w, &er)
	require.Equal(CodeInvalidArgument, er.Error.Code)
	require.NotEmpty(er.Error.RequestID)

	w = do(t, h, http.MethodPost, base+"/defense_mode", nil)
	require.Equal(http.StatusBadRequest, w.Code)
}

func TestMineHonestBody(t *testing.T) {
	require := require.New(t)
	h := newTestServer(t, Config{}).Handler()
	base := "/api/sessions/" + createSession(t, h)

	w := do(t, h, http.MethodPost, base+"/mine_honest_block", map[string]string{"miner": "Carol"})
	require.Equal(http.StatusOK, w.Code)
	var out sim.Outcome
	decode(t, w, &out)
	require.NotNil(out.Block)
	require.Equal("Carol", out.Block.Miner)

	w = do(t, h, http.MethodPost, base+"/mine_honest_block", map[string]int{"count": 3})
	require.Equal(http.StatusOK, w.Code)
	out = sim.Outcome{}
	decode(t, w, &out)
	require.Equal("Mined honest block 4", out.Message)

	req := httptest.NewRequest(http.MethodPost, base+"/mine_honest_block", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(http.StatusBadRequest, rec.Code)
}

func TestMiningCountBounded(t *testing.T) {
	require := require.New(t)
	h := newTestServer(t, Config{MaxBlocks: 5}).Handler()
	base := "/api/sessions/" + createSession(t, h)

	for _, cmd := range []string{"mine_honest_block", "mine_attack_block"} {
		for _, count := range []int{6, -1, 1 << 30} {
			w := do(t, h, http.MethodPost, base+"/"+cmd, map[string]int{"count": count})
			require.Equal(http.StatusBadRequest, w.Code, "%s count %d", cmd, count)
			var er ErrorResponse
			decode(t, w, &er)
			require.Equal(CodeInvalidArgument, er.Error.Code)
		}
	}

	var st sim.State
	decode(t, do(t, h, http.MethodGet, base+"/state", nil), &st)
	require.Len(st.Canonical, 1)

	w := do(t, h, http.MethodPost, base+"/mine_honest_block", map[string]int{"count": 5})
	require.Equal(http.StatusOK, w.Code)
	st = sim.State{}
	decode(t, do(t, h, http.MethodGet, base+"/state", nil), &st)
	require.Len(st.Canonical, 6)
}

func TestSessionCreateFailure(t *testing.T) {
	require := require.New(t)
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := sim.DefaultConfig()
	cfg.Mode = "PARANOID"
	h := NewServer(Config{}, log, sim.WithConfig(cfg), sim.WithLogger(log)).Handler()

	w := do(t, h, http.MethodPost, "/api/sessions", nil)
	require.Equal(http.StatusInternalServerError, w.Code)
	var er ErrorResponse
	decode(t, w, &er)
	require.Equal(CodeInternal, er.Error.Code)
}

func TestSessionLifecycle(t *testing.T) {
	require := require.New(t)
	srv := newTestServer(t, Config{MaxSessions: 1})
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/api/sessions/nope/state", nil)
	require.Equal(http.StatusNotFound, w.Code)
	var er ErrorResponse
	decode(t, w, &er)
	require.Equal(CodeNotFound, er.Error.Code)

	id := createSession(t, h)
	require.Equal(1, srv.Sessions().Len())

	w = do(t, h, http.MethodPost, "/api/sessions", nil)
	require.Equal(http.StatusServiceUnavailable, w.Code)

	w = do(t, h, http.MethodDelete, "/api/sessions/"+id, nil)
	require.Equal(http.StatusNoContent, w.Code)
	require.Zero(srv.Sessions().Len())

	w = do(t, h, http.MethodPost, "/api/sessions/"+id+"/reset", nil)
	require.Equal(http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(http.StatusNotFound, w.Code)
}

func TestSessionsIsolated(t *testing.T) {
	require := require.New(t)
	h := newTestServer(t, Config{}).Handler()
	a := createSession(t, h)
	b := createSession(t, h)
	require.NotEqual(a, b)

	do(t, h, http.MethodPost, "/api/sessions/"+a+"/mine_honest_block", nil)

	var sa, sb sim.State
	decode(t, do(t, h, http.MethodGet, "/api/sessions/"+a+"/state", nil), &sa)
	decode(t, do(t, h, http.MethodGet, "/api/sessions/"+b+"/state", nil), &sb)
	require.Len(sa.Canonical, 2)
	require.Len(sb.Canonical, 1)
}

func TestHealthAndRequestID(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}
