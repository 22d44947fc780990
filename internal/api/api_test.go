package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnb-control/gnbctl/internal/auth"
	"github.com/gnb-control/gnbctl/internal/conf"
	"github.com/gnb-control/gnbctl/internal/docs"
	"github.com/gnb-control/gnbctl/internal/params"
	"github.com/gnb-control/gnbctl/internal/procctl"
	"github.com/gnb-control/gnbctl/internal/restart"
	"github.com/gnb-control/gnbctl/internal/runlog"
)

type fakeOrch struct {
	restartOp  *restart.Operation
	restartErr error
	applyOut   []conf.Delta
	applyErr   error
	stopOp     *restart.Operation
	stopErr    error
	startOp    *restart.Operation
	startErr   error
	status     *restart.StatusReport
	statusErr  error

	gotChanges []params.Change
	gotApply   []params.Change
}

func (f *fakeOrch) Restart(ctx context.Context, changes []params.Change) (*restart.Operation, error) {
	f.gotChanges = changes
	return f.restartOp, f.restartErr
}

// Apply mimics the real orchestrator's contract: validation happens under
// the lock, before any write.
func (f *fakeOrch) Apply(changes []params.Change) ([]conf.Delta, error) {
	if err := params.ValidateAll(changes); err != nil {
		return nil, err
	}
	f.gotApply = changes
	return f.applyOut, f.applyErr
}
func (f *fakeOrch) Stop(ctx context.Context) (*restart.Operation, error)  { return f.stopOp, f.stopErr }
func (f *fakeOrch) Start(ctx context.Context) (*restart.Operation, error) { return f.startOp, f.startErr }
func (f *fakeOrch) Status(ctx context.Context) (*restart.StatusReport, error) {
	return f.status, f.statusErr
}

type fakeReader struct {
	snap *conf.Snapshot
	err  error
}

func (f *fakeReader) Snapshot() (*conf.Snapshot, error) { return f.snap, f.err }

type fakeLogs struct {
	tail *runlog.TailResult
	err  error
	got  int
}

func (f *fakeLogs) Tail(n int) (*runlog.TailResult, error) {
	f.got = n
	return f.tail, f.err
}

type fakeDocs struct {
	lastCall string
	excerpt  *docs.Excerpt
	err      error
}

func (f *fakeDocs) List() ([]string, error) {
	f.lastCall = "list"
	return []string{"ts_38104.txt"}, f.err
}
func (f *fakeDocs) Overview(document string) (*docs.Excerpt, error) {
	f.lastCall = "overview:" + document
	return f.excerpt, f.err
}
func (f *fakeDocs) Section(document, section string) (*docs.Excerpt, error) {
	f.lastCall = "section:" + document + ":" + section
	return f.excerpt, f.err
}
func (f *fakeDocs) TOC(document, keyword string) (*docs.Excerpt, error) {
	f.lastCall = "toc:" + document + ":" + keyword
	return f.excerpt, f.err
}

type auditRecord struct {
	tool   string
	user   string
	status string
	errMsg string
}

type fakeAudit struct {
	mu      sync.Mutex
	records []auditRecord
}

func (f *fakeAudit) Success(tool, user string, args map[string]any, result string, elapsed time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, auditRecord{tool: tool, user: user, status: "ok"})
}

func (f *fakeAudit) Failure(tool, user string, args map[string]any, err error, elapsed time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	f.records = append(f.records, auditRecord{tool: tool, user: user, status: "error", errMsg: msg})
}

func (f *fakeAudit) last(t *testing.T) auditRecord {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.records, "expected an audit record")
	return f.records[len(f.records)-1]
}

type testEnv struct {
	orch   *fakeOrch
	reader *fakeReader
	logs   *fakeLogs
	docs   *fakeDocs
	audit  *fakeAudit
	mux    *http.ServeMux
}

func newTestEnv(t *testing.T, mw *auth.Middleware) *testEnv {
	t.Helper()
	env := &testEnv{
		orch:   &fakeOrch{},
		reader: &fakeReader{snap: &conf.Snapshot{}},
		logs:   &fakeLogs{tail: &runlog.TailResult{Lines: []string{"boot ok"}}},
		docs:   &fakeDocs{excerpt: &docs.Excerpt{Document: "38.104", Content: "..."}},
		audit:  &fakeAudit{},
	}
	srv := NewServer(Options{
		Orchestrator: env.orch,
		Reader:       env.reader,
		Logs:         env.logs,
		Docs:         env.docs,
		Audit:        env.audit,
		Auth:         mw,
	})
	env.mux = http.NewServeMux()
	srv.RegisterRoutes(env.mux)
	return env
}

type envelope struct {
	Result        string          `json:"result"`
	Data          json.RawMessage `json:"data"`
	Code          string          `json:"code"`
	Message       string          `json:"message"`
	Details       json.RawMessage `json:"details"`
	CorrelationID string          `json:"correlationId"`
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) (int, envelope) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	assert.NotEmpty(t, env.CorrelationID)
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	status, resp := doJSON(t, env.mux, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", resp.Result)

	var data struct {
		Status     string          `json:"status"`
		Version    string          `json:"version"`
		Subsystems map[string]bool `json:"subsystems"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "ok", data.Status)
	assert.Equal(t, Version, data.Version)
	assert.True(t, data.Subsystems["orchestrator"])
}

func TestGetConfig(t *testing.T) {
	env := newTestEnv(t, nil)
	env.reader.snap = &conf.Snapshot{
		Identity: conf.IdentityInfo{Name: "gnb-oai"},
		RF:       conf.RFInfo{NominalBandwidth: "20MHz"},
	}

	status, resp := doJSON(t, env.mux, http.MethodGet, "/api/v1/config", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", resp.Result)
	assert.Contains(t, string(resp.Data), "gnb-oai")

	rec := env.audit.last(t)
	assert.Equal(t, "get_config", rec.tool)
	assert.Equal(t, "ok", rec.status)
}

func TestSetBandwidth_WriteOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	env.orch.applyOut = []conf.Delta{{Key: "dl_carrierBandwidth", Old: "51", New: "24"}}

	status, resp := doJSON(t, env.mux, http.MethodPost, "/api/v1/config/bandwidth",
		`{"bandwidth":"10MHz"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", resp.Result)
	assert.Contains(t, string(resp.Data), `"restarted":false`)

	require.Len(t, env.orch.gotApply, 1)
	assert.Equal(t, params.FamilyBandwidth, env.orch.gotApply[0].Family)
	assert.Equal(t, "10MHz", env.orch.gotApply[0].Bandwidth)
	assert.Nil(t, env.orch.gotChanges, "restart pipeline must not run without restart")
}

// TestSetBandwidth_WriteOnlyBusy verifies the write-only path shares the
// orchestrator's single-flight lock: a write racing an in-flight lifecycle
// operation is refused instead of mutating the file concurrently.
func TestSetBandwidth_WriteOnlyBusy(t *testing.T) {
	env := newTestEnv(t, nil)
	env.orch.applyErr = restart.ErrBusy

	status, resp := doJSON(t, env.mux, http.MethodPost, "/api/v1/config/bandwidth",
		`{"bandwidth":"10MHz"}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "BUSY", resp.Code)

	rec := env.audit.last(t)
	assert.Equal(t, "set_bandwidth", rec.tool)
	assert.Equal(t, "error", rec.status)
}

func TestSetBandwidth_WithRestart(t *testing.T) {
	env := newTestEnv(t, nil)
	env.orch.restartOp = &restart.Operation{
		ID:     "op-1",
		Stages: restart.Stages{Validate: "ok", Write: "ok", Stop: "ok", Start: "ok"},
		PIDs:   []int{4242},
	}

	status, resp := doJSON(t, env.mux, http.MethodPost, "/api/v1/config/bandwidth",
		`{"bandwidth":"20MHz","restart":true}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", resp.Result)
	assert.Contains(t, string(resp.Data), "4242")

	require.Len(t, env.orch.gotChanges, 1)
	assert.Equal(t, "20MHz", env.orch.gotChanges[0].Bandwidth)
	assert.Nil(t, env.orch.gotApply, "the restart pipeline carries the write itself")
}

func TestSetBandwidth_ValidationRejectedBeforeWrite(t *testing.T) {
	env := newTestEnv(t, nil)

	status, resp := doJSON(t, env.mux, http.MethodPost, "/api/v1/config/bandwidth",
		`{"bandwidth":"15MHz"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "error", resp.Result)
	assert.Equal(t, "VALIDATION", resp.Code)
	assert.Nil(t, env.orch.gotApply, "invalid change must never reach the file")

	rec := env.audit.last(t)
	assert.Equal(t, "set_bandwidth", rec.tool)
	assert.Equal(t, "error", rec.status)
	assert.Contains(t, rec.errMsg, "VALIDATION")
}

func TestSetMCS(t *testing.T) {
	t.Run("BothDirections", func(t *testing.T) {
		env := newTestEnv(t, nil)

		status, _ := doJSON(t, env.mux, http.MethodPost, "/api/v1/config/mcs",
			`{"dlMcs":16,"ulMcs":12}`)
		assert.Equal(t, http.StatusOK, status)
		require.Len(t, env.orch.gotApply, 2)
		assert.Equal(t, params.FamilyDownlinkMCS, env.orch.gotApply[0].Family)
		assert.Equal(t, 16, env.orch.gotApply[0].Value)
		assert.Equal(t, params.FamilyUplinkMCS, env.orch.gotApply[1].Family)
	})

	t.Run("NeitherDirection", func(t *testing.T) {
		env := newTestEnv(t, nil)

		status, resp := doJSON(t, env.mux, http.MethodPost, "/api/v1/config/mcs", `{}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "BAD_REQUEST", resp.Code)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		env := newTestEnv(t, nil)

		status, resp := doJSON(t, env.mux, http.MethodPost, "/api/v1/config/mcs",
			`{"dlMcs":29}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION", resp.Code)
	})
}

func TestSetAttenuation_KeyMissingConflict(t *testing.T) {
	env := newTestEnv(t, nil)
	env.orch.applyErr = conf.ErrKeyMissing

	status, resp := doJSON(t, env.mux, http.MethodPost, "/api/v1/config/attenuation",
		`{"txDb":12}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFIG_KEY_MISSING", resp.Code)
}

func TestStrictJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("UnknownField", func(t *testing.T) {
		status, resp := doJSON(t, env.mux, http.MethodPost, "/api/v1/config/bandwidth",
			`{"bandwidth":"10MHz","bogus":1}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "BAD_REQUEST", resp.Code)
	})

	t.Run("TrailingData", func(t *testing.T) {
		status, resp := doJSON(t, env.mux, http.MethodPost, "/api/v1/config/bandwidth",
			`{"bandwidth":"10MHz"}{"again":true}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "BAD_REQUEST", resp.Code)
	})
}

func TestRestart_Busy(t *testing.T) {
	env := newTestEnv(t, nil)
	env.orch.restartErr = restart.ErrBusy

	status, resp := doJSON(t, env.mux, http.MethodPost, "/api/v1/gnb/restart", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "BUSY", resp.Code)
}

func TestRestart_StopFailureCarriesStageReport(t *testing.T) {
	env := newTestEnv(t, nil)
	env.orch.restartOp = &restart.Operation{
		ID:     "op-2",
		Stages: restart.Stages{Validate: "skipped", Write: "skipped", Stop: "failed", Start: "not_reached"},
	}
	env.orch.restartErr = procctl.ErrStopFailed

	status, resp := doJSON(t, env.mux, http.MethodPost, "/api/v1/gnb/restart", "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "PROC_STOP_FAILED", resp.Code)
	assert.Contains(t, string(resp.Details), `"stop":"failed"`)
	assert.Contains(t, string(resp.Details), `"start":"not_reached"`)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.orch.status = &restart.StatusReport{State: "running", PIDs: []int{101}}

	status, resp := doJSON(t, env.mux, http.MethodGet, "/api/v1/gnb/status", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(resp.Data), `"running"`)
}

func TestLogs(t *testing.T) {
	t.Run("PassesLineCount", func(t *testing.T) {
		env := newTestEnv(t, nil)

		status, resp := doJSON(t, env.mux, http.MethodGet, "/api/v1/gnb/logs?lines=250", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 250, env.logs.got)
		assert.Contains(t, string(resp.Data), "boot ok")
	})

	t.Run("BadLineCount", func(t *testing.T) {
		env := newTestEnv(t, nil)

		status, resp := doJSON(t, env.mux, http.MethodGet, "/api/v1/gnb/logs?lines=many", "")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "BAD_REQUEST", resp.Code)
	})

	t.Run("NoLogsYet", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.logs.tail = nil
		env.logs.err = runlog.ErrNoLogs

		status, resp := doJSON(t, env.mux, http.MethodGet, "/api/v1/gnb/logs", "")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "RUNLOG_NOT_FOUND", resp.Code)
	})
}

func TestDocs(t *testing.T) {
	t.Run("List", func(t *testing.T) {
		env := newTestEnv(t, nil)
		status, resp := doJSON(t, env.mux, http.MethodGet, "/api/v1/docs", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(resp.Data), "ts_38104.txt")
	})

	t.Run("Overview", func(t *testing.T) {
		env := newTestEnv(t, nil)
		status, _ := doJSON(t, env.mux, http.MethodGet, "/api/v1/docs/38.104", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "overview:38.104", env.docs.lastCall)
	})

	t.Run("Section", func(t *testing.T) {
		env := newTestEnv(t, nil)
		status, _ := doJSON(t, env.mux, http.MethodGet, "/api/v1/docs/38.104?section=5.3", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "section:38.104:5.3", env.docs.lastCall)
	})

	t.Run("TOC", func(t *testing.T) {
		env := newTestEnv(t, nil)
		status, _ := doJSON(t, env.mux, http.MethodGet, "/api/v1/docs/38.104?toc=1&keyword=bandwidth", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "toc:38.104:bandwidth", env.docs.lastCall)
	})

	t.Run("NotFound", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.docs.excerpt = nil
		env.docs.err = docs.ErrNotFound

		status, resp := doJSON(t, env.mux, http.MethodGet, "/api/v1/docs/38.331", "")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "DOC_NOT_FOUND", resp.Code)
	})
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)

	status, resp := doJSON(t, env.mux, http.MethodDelete, "/api/v1/config", "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, "METHOD_NOT_ALLOWED", resp.Code)

	// Early rejects still produce an action-log record like any other
	// tool failure.
	rec := env.audit.last(t)
	assert.Equal(t, "get_config", rec.tool)
	assert.Equal(t, "error", rec.status)
	assert.Contains(t, rec.errMsg, "METHOD_NOT_ALLOWED")
}

// TestDocLookup_BadPathIsAudited covers the malformed docs path reject.
func TestDocLookup_BadPathIsAudited(t *testing.T) {
	env := newTestEnv(t, nil)

	status, resp := doJSON(t, env.mux, http.MethodGet, "/api/v1/docs/38.104/extra", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", resp.Code)

	rec := env.audit.last(t)
	assert.Equal(t, "read_doc", rec.tool)
	assert.Equal(t, "error", rec.status)
}

func TestScopeEnforcement(t *testing.T) {
	secret := "api-test-secret-0123456789abcdef"
	verifier, err := auth.NewVerifier(secret)
	require.NoError(t, err)
	env := newTestEnv(t, auth.NewMiddleware(verifier, false))

	mint := func(scopes []string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":    "viewer-7",
			"scopes": scopes,
			"exp":    time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)
		return signed
	}
	readToken := mint([]string{auth.ScopeRead})

	t.Run("ReadScopeCanRead", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
		req.Header.Set("Authorization", "Bearer "+readToken)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ReadScopeCannotControl", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/gnb/restart", nil)
		req.Header.Set("Authorization", "Bearer "+readToken)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("HealthNeedsNoToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
