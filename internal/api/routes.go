package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gnb-control/gnbctl/internal/auth"
	"github.com/gnb-control/gnbctl/internal/params"
	"github.com/gnb-control/gnbctl/internal/restart"
)

// RegisterRoutes registers all tool endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"

	// Health and metrics are unauthenticated probe surfaces.
	mux.HandleFunc(apiV1+"/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	mux.HandleFunc(apiV1+"/config", s.protect(auth.ScopeRead, s.handleGetConfig))
	mux.HandleFunc(apiV1+"/config/bandwidth", s.protect(auth.ScopeControl, s.handleSetBandwidth))
	mux.HandleFunc(apiV1+"/config/mcs", s.protect(auth.ScopeControl, s.handleSetMCS))
	mux.HandleFunc(apiV1+"/config/attenuation", s.protect(auth.ScopeControl, s.handleSetAttenuation))

	mux.HandleFunc(apiV1+"/gnb/restart", s.protect(auth.ScopeControl, s.handleRestart))
	mux.HandleFunc(apiV1+"/gnb/stop", s.protect(auth.ScopeControl, s.handleStop))
	mux.HandleFunc(apiV1+"/gnb/start", s.protect(auth.ScopeControl, s.handleStart))
	mux.HandleFunc(apiV1+"/gnb/status", s.protect(auth.ScopeRead, s.handleStatus))
	mux.HandleFunc(apiV1+"/gnb/logs", s.protect(auth.ScopeRead, s.handleLogs))

	mux.HandleFunc(apiV1+"/docs", s.protect(auth.ScopeRead, s.handleListDocs))
	mux.HandleFunc(apiV1+"/docs/", s.protect(auth.ScopeRead, s.handleDocLookup))
}

func (s *Server) protect(scope string, next http.HandlerFunc) http.HandlerFunc {
	if s.authMW == nil {
		return next
	}
	return s.authMW.RequireScope(scope, next)
}

func methodErr(allowed string) error {
	return fmt.Errorf("%w: only %s is allowed", ErrMethodNotAllowed, allowed)
}

// decodeStrict parses the request body as strict JSON: unknown fields and
// trailing data are rejected.
func decodeStrict(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON or unknown fields", ErrBadRequest)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: trailing data after JSON object", ErrBadRequest)
	}
	return nil
}

// finishOK records the invocation and writes the success envelope.
func (s *Server) finishOK(w http.ResponseWriter, r *http.Request, tool string, args map[string]any, started time.Time, data interface{}) {
	elapsed := time.Since(started)
	if s.metrics != nil {
		s.metrics.ObserveTool(tool, "ok", elapsed.Seconds())
	}
	if s.auditor != nil {
		summary, _ := json.Marshal(data)
		s.auditor.Success(tool, auth.SubjectFromRequest(r), args, string(summary), elapsed)
	}
	WriteSuccess(w, data)
}

// finishErr records the invocation and writes the mapped error envelope.
// details may carry a partial stage report.
func (s *Server) finishErr(w http.ResponseWriter, r *http.Request, tool string, args map[string]any, started time.Time, err error, details interface{}) {
	status, code, message := ToAPIError(err)
	elapsed := time.Since(started)
	if s.metrics != nil {
		s.metrics.ObserveTool(tool, "error", elapsed.Seconds())
	}
	if s.auditor != nil {
		s.auditor.Failure(tool, auth.SubjectFromRequest(r), args, err, elapsed)
	}
	s.logger.Printf("api: %s failed: %v", tool, err)
	WriteError(w, status, code, message, details)
}

// observeStages feeds a restart stage report into the metrics.
func (s *Server) observeStages(op *restart.Operation) {
	if s.metrics == nil || op == nil {
		return
	}
	for stage, outcome := range map[string]string{
		"validate": op.Stages.Validate,
		"write":    op.Stages.Write,
		"stop":     op.Stages.Stop,
		"start":    op.Stages.Start,
	} {
		s.metrics.RestartStages.WithLabelValues(stage, outcome).Inc()
	}
}

// applyChanges runs the write-only or full-restart path for a set of
// validated parameter changes.
func (s *Server) applyChanges(w http.ResponseWriter, r *http.Request, tool string, args map[string]any, changes []params.Change, withRestart bool) {
	started := time.Now()

	if withRestart {
		op, err := s.orchestrator.Restart(r.Context(), changes)
		s.observeStages(op)
		if err != nil {
			s.finishErr(w, r, tool, args, started, err, op)
			return
		}
		s.finishOK(w, r, tool, args, started, op)
		return
	}

	// Write-only applies still go through the orchestrator: the config file
	// is a single-writer resource and the apply must hold the same lock as a
	// restart's mutate stage.
	deltas, err := s.orchestrator.Apply(changes)
	if err != nil {
		s.finishErr(w, r, tool, args, started, err, nil)
		return
	}
	s.finishOK(w, r, tool, args, started, map[string]interface{}{
		"deltas":    deltas,
		"restarted": false,
		"note":      "changes take effect on the next restart",
	})
}

// handleHealth handles GET /api/v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
		return
	}

	subsystems := map[string]bool{
		"orchestrator": s.orchestrator != nil,
		"config":       s.reader != nil,
		"runlog":       s.logs != nil,
		"docs":         s.docs != nil,
		"audit":        s.auditor != nil,
	}
	status := "ok"
	for _, up := range subsystems {
		if !up {
			status = "degraded"
		}
	}

	health := map[string]interface{}{
		"status":     status,
		"uptimeSec":  time.Since(s.startTime).Seconds(),
		"version":    Version,
		"subsystems": subsystems,
	}
	if status != "ok" {
		WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED", "One or more subsystems are unavailable", health)
		return
	}
	WriteSuccess(w, health)
}

// handleGetConfig handles GET /api/v1/config.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.finishErr(w, r, "get_config", nil, time.Now(), methodErr("GET"), nil)
		return
	}
	started := time.Now()

	snap, err := s.reader.Snapshot()
	if err != nil {
		s.finishErr(w, r, "get_config", nil, started, err, nil)
		return
	}
	s.finishOK(w, r, "get_config", nil, started, snap)
}

// handleSetBandwidth handles POST /api/v1/config/bandwidth.
func (s *Server) handleSetBandwidth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.finishErr(w, r, "set_bandwidth", nil, time.Now(), methodErr("POST"), nil)
		return
	}

	var req struct {
		Bandwidth string `json:"bandwidth"`
		Restart   bool   `json:"restart"`
	}
	if err := decodeStrict(r, &req); err != nil {
		s.finishErr(w, r, "set_bandwidth", nil, time.Now(), err, nil)
		return
	}
	args := map[string]any{"bandwidth": req.Bandwidth, "restart": req.Restart}
	if req.Bandwidth == "" {
		s.finishErr(w, r, "set_bandwidth", args, time.Now(),
			fmt.Errorf("%w: bandwidth is required", ErrBadRequest), nil)
		return
	}

	changes := []params.Change{{Family: params.FamilyBandwidth, Bandwidth: req.Bandwidth}}
	s.applyChanges(w, r, "set_bandwidth", args, changes, req.Restart)
}

// handleSetMCS handles POST /api/v1/config/mcs.
func (s *Server) handleSetMCS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.finishErr(w, r, "set_mcs", nil, time.Now(), methodErr("POST"), nil)
		return
	}

	var req struct {
		DL      *int `json:"dlMcs"`
		UL      *int `json:"ulMcs"`
		Restart bool `json:"restart"`
	}
	if err := decodeStrict(r, &req); err != nil {
		s.finishErr(w, r, "set_mcs", nil, time.Now(), err, nil)
		return
	}
	args := map[string]any{"restart": req.Restart}
	var changes []params.Change
	if req.DL != nil {
		args["dlMcs"] = *req.DL
		changes = append(changes, params.Change{Family: params.FamilyDownlinkMCS, Value: *req.DL})
	}
	if req.UL != nil {
		args["ulMcs"] = *req.UL
		changes = append(changes, params.Change{Family: params.FamilyUplinkMCS, Value: *req.UL})
	}
	if len(changes) == 0 {
		s.finishErr(w, r, "set_mcs", args, time.Now(),
			fmt.Errorf("%w: at least one of dlMcs or ulMcs is required", ErrBadRequest), nil)
		return
	}
	s.applyChanges(w, r, "set_mcs", args, changes, req.Restart)
}

// handleSetAttenuation handles POST /api/v1/config/attenuation.
func (s *Server) handleSetAttenuation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.finishErr(w, r, "set_attenuation", nil, time.Now(), methodErr("POST"), nil)
		return
	}

	var req struct {
		Tx      *int `json:"txDb"`
		Rx      *int `json:"rxDb"`
		Restart bool `json:"restart"`
	}
	if err := decodeStrict(r, &req); err != nil {
		s.finishErr(w, r, "set_attenuation", nil, time.Now(), err, nil)
		return
	}
	args := map[string]any{"restart": req.Restart}
	var changes []params.Change
	if req.Tx != nil {
		args["txDb"] = *req.Tx
		changes = append(changes, params.Change{Family: params.FamilyTxAttenuation, Value: *req.Tx})
	}
	if req.Rx != nil {
		args["rxDb"] = *req.Rx
		changes = append(changes, params.Change{Family: params.FamilyRxAttenuation, Value: *req.Rx})
	}
	if len(changes) == 0 {
		s.finishErr(w, r, "set_attenuation", args, time.Now(),
			fmt.Errorf("%w: at least one of txDb or rxDb is required", ErrBadRequest), nil)
		return
	}
	s.applyChanges(w, r, "set_attenuation", args, changes, req.Restart)
}

// handleRestart handles POST /api/v1/gnb/restart. The body is ignored; a
// bare restart reuses the configuration file as written.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.finishErr(w, r, "gnb_restart", nil, time.Now(), methodErr("POST"), nil)
		return
	}
	started := time.Now()

	op, err := s.orchestrator.Restart(r.Context(), nil)
	s.observeStages(op)
	if err != nil {
		s.finishErr(w, r, "gnb_restart", nil, started, err, op)
		return
	}
	s.finishOK(w, r, "gnb_restart", nil, started, op)
}

// handleStop handles POST /api/v1/gnb/stop.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.finishErr(w, r, "gnb_stop", nil, time.Now(), methodErr("POST"), nil)
		return
	}
	started := time.Now()

	op, err := s.orchestrator.Stop(r.Context())
	if err != nil {
		s.finishErr(w, r, "gnb_stop", nil, started, err, op)
		return
	}
	s.finishOK(w, r, "gnb_stop", nil, started, op)
}

// handleStart handles POST /api/v1/gnb/start.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.finishErr(w, r, "gnb_start", nil, time.Now(), methodErr("POST"), nil)
		return
	}
	started := time.Now()

	op, err := s.orchestrator.Start(r.Context())
	if err != nil {
		s.finishErr(w, r, "gnb_start", nil, started, err, op)
		return
	}
	s.finishOK(w, r, "gnb_start", nil, started, op)
}

// handleStatus handles GET /api/v1/gnb/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.finishErr(w, r, "gnb_status", nil, time.Now(), methodErr("GET"), nil)
		return
	}
	started := time.Now()

	st, err := s.orchestrator.Status(r.Context())
	if err != nil {
		s.finishErr(w, r, "gnb_status", nil, started, err, nil)
		return
	}
	if s.metrics != nil {
		if len(st.PIDs) > 0 {
			s.metrics.ProcessUp.Set(1)
		} else {
			s.metrics.ProcessUp.Set(0)
		}
	}
	s.finishOK(w, r, "gnb_status", nil, started, st)
}

// handleLogs handles GET /api/v1/gnb/logs?lines=N.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.finishErr(w, r, "gnb_logs", nil, time.Now(), methodErr("GET"), nil)
		return
	}
	started := time.Now()

	lines := 0
	if raw := r.URL.Query().Get("lines"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.finishErr(w, r, "gnb_logs", map[string]any{"lines": raw}, started,
				fmt.Errorf("%w: lines must be an integer", ErrBadRequest), nil)
			return
		}
		lines = parsed
	}
	args := map[string]any{"lines": lines}

	tail, err := s.logs.Tail(lines)
	if err != nil {
		s.finishErr(w, r, "gnb_logs", args, started, err, nil)
		return
	}
	s.finishOK(w, r, "gnb_logs", args, started, tail)
}

// handleListDocs handles GET /api/v1/docs.
func (s *Server) handleListDocs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.finishErr(w, r, "list_docs", nil, time.Now(), methodErr("GET"), nil)
		return
	}
	started := time.Now()

	names, err := s.docs.List()
	if err != nil {
		s.finishErr(w, r, "list_docs", nil, started, err, nil)
		return
	}
	s.finishOK(w, r, "list_docs", nil, started, map[string]interface{}{"documents": names})
}

// handleDocLookup handles GET /api/v1/docs/{number}. Query parameters pick
// the view: toc=1 (optionally with keyword=) for the table of contents,
// section= for one section, neither for the overview.
func (s *Server) handleDocLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.finishErr(w, r, "read_doc", nil, time.Now(), methodErr("GET"), nil)
		return
	}
	started := time.Now()

	document := strings.TrimPrefix(r.URL.Path, "/api/v1/docs/")
	if document == "" || strings.Contains(document, "/") {
		s.finishErr(w, r, "read_doc", map[string]any{"path": r.URL.Path}, started,
			fmt.Errorf("%w: a single document number is required", ErrBadRequest), nil)
		return
	}

	q := r.URL.Query()
	section := q.Get("section")
	wantTOC := q.Get("toc") == "1" || q.Get("toc") == "true"
	keyword := q.Get("keyword")
	args := map[string]any{"document": document, "section": section, "toc": wantTOC, "keyword": keyword}

	var (
		excerpt interface{}
		err     error
	)
	switch {
	case wantTOC:
		excerpt, err = s.docs.TOC(document, keyword)
	case section != "":
		excerpt, err = s.docs.Section(document, section)
	default:
		excerpt, err = s.docs.Overview(document)
	}
	if err != nil {
		s.finishErr(w, r, "read_doc", args, started, err, nil)
		return
	}
	s.finishOK(w, r, "read_doc", args, started, excerpt)
}
