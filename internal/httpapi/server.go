package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"orchestrator/internal/errs"
	"orchestrator/internal/eventstore"
	"orchestrator/internal/modes"
	"orchestrator/internal/orchestrator"
	"orchestrator/internal/project"
	"orchestrator/internal/provider"
)

// Server is the HTTP surface of spec §6, grounded on PedroCLI's
// pkg/httpbridge server/handlers split.
type Server struct {
	mux         *http.ServeMux
	orch        *orchestrator.Orchestrator
	modeMgr     *modes.Manager
	broadcaster *Broadcaster
	projects    *project.Registry
	taskSchema  *gojsonschema.Schema
	store       eventstore.Store
	providers   *provider.Registry
}

var taskSubmissionSchema = `{
	"type": "object",
	"required": ["description"],
	"properties": {
		"description": {"type": "string", "minLength": 1},
		"project_id": {"type": "string"},
		"mode": {"type": "string", "enum": ["SPEED", "QUALITY", "AUTONOMY", "COST"]},
		"priority": {"type": "integer", "minimum": 0, "maximum": 100}
	}
}`

// NewServer wires handlers onto a fresh mux. store and providers back the
// health endpoint's database/provider checks; either may be nil in tests
// that don't exercise /health.
func NewServer(orch *orchestrator.Orchestrator, modeMgr *modes.Manager, broadcaster *Broadcaster, projects *project.Registry, store eventstore.Store, providers *provider.Registry) *Server {
	schema, _ := gojsonschema.NewSchema(gojsonschema.NewStringLoader(taskSubmissionSchema))
	s := &Server{
		mux:         http.NewServeMux(),
		orch:        orch,
		modeMgr:     modeMgr,
		broadcaster: broadcaster,
		projects:    projects,
		taskSchema:  schema,
		store:       store,
		providers:   providers,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /tasks", s.handleCreateTask)
	s.mux.HandleFunc("GET /tasks", s.handleListTasks)
	s.mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	s.mux.HandleFunc("DELETE /tasks/{id}", s.handleCancelTask)
	s.mux.HandleFunc("POST /tasks/{id}/retry", s.handleRetryTask)
	s.mux.HandleFunc("GET /modes", s.handleListModes)
	s.mux.HandleFunc("GET /modes/current", s.handleCurrentMode)
	s.mux.HandleFunc("POST /modes/switch", s.handleSwitchMode)
	s.mux.HandleFunc("GET /modes/{name}", s.handleModeInfo)
	s.mux.HandleFunc("POST /projects", s.handleCreateProject)
	s.mux.HandleFunc("GET /projects", s.handleListProjects)
	s.mux.HandleFunc("GET /projects/{id}", s.handleGetProject)
	s.mux.HandleFunc("DELETE /projects/{id}", s.handleDeleteProject)
	s.mux.HandleFunc("PUT /modes/{name}", s.handleModeUpdate)
	s.mux.HandleFunc("GET /monitoring/overview", s.handleStatusOverview)
	s.mux.HandleFunc("GET /monitoring/stats", s.handleStatusStats)
	s.mux.HandleFunc("GET /monitoring/costs", s.handleStatusCosts)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /events/stream", s.handleSSE)
	s.mux.HandleFunc("GET /ws/events", s.broadcaster.ServeWS)
}

type taskSubmission struct {
	Description string `json:"description"`
	ProjectID   string `json:"project_id"`
	Mode        string `json:"mode"`
	Priority    int    `json:"priority"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	body, err := readAndValidate(r, s.taskSchema)
	if err != nil {
		writeError(w, err)
		return
	}
	var sub taskSubmission
	if err := json.Unmarshal(body, &sub); err != nil {
		writeError(w, errs.Wrap(errs.Validation, "invalid request body", err))
		return
	}
	id, err := s.orch.Submit(sub.Description, sub.ProjectID, modes.Name(sub.Mode), sub.Priority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, err := s.orch.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.orch.Cancel(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRetryTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	newID, err := s.orch.Retry(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": newID})
}

// handleListTasks implements GET tasks?status&project_id&mode&page&page_size,
// filtering s.orch.List() and returning a newest-first paginated slice; the
// order of tasks with equal CreatedAt is not defined.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	projectID := q.Get("project_id")
	mode := q.Get("mode")
	page := parsePositiveInt(q.Get("page"), 1)
	pageSize := parsePositiveInt(q.Get("page_size"), 20)

	var filtered []*orchestrator.Task
	for _, t := range s.orch.List() {
		if status != "" && string(t.Status) != status {
			continue
		}
		if projectID != "" && t.ProjectID != projectID {
			continue
		}
		if mode != "" && string(t.Mode) != mode {
			continue
		}
		filtered = append(filtered, t)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].CreatedAt.After(filtered[j].CreatedAt) })

	total := len(filtered)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": filtered[start:end], "page": page, "page_size": pageSize, "total": total,
	})
}

// parsePositiveInt parses s as a positive int, falling back to def on any
// parse failure or non-positive value.
func parsePositiveInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) handleListModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []string{string(modes.SPEED), string(modes.QUALITY), string(modes.AUTONOMY), string(modes.COST)})
}

func (s *Server) handleModeInfo(w http.ResponseWriter, r *http.Request) {
	name := modes.Name(r.PathValue("name"))
	strategy, ok := s.modeMgr.Strategy(name)
	if !ok {
		writeError(w, errs.New(errs.NotFound, "unknown mode "+string(name)))
		return
	}
	writeJSON(w, http.StatusOK, strategy.Config())
}

func (s *Server) handleCurrentMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(s.modeMgr.Active())})
}

func (s *Server) handleSwitchMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.Wrap(errs.Validation, "invalid request body", err))
		return
	}
	if err := s.modeMgr.SwitchMode(modes.Name(body.Mode)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// modeUpdateRequest is the PUT modes/{mode} {config, is_active} body of
// spec.md's mode HTTP surface. config fields are pointers so only the ones
// present in the request body are patched into the mode's Config.
type modeUpdateRequest struct {
	Config *struct {
		MaxRetries           *int     `json:"max_retries"`
		CostLimit            *float64 `json:"cost_limit"`
		RequireHumanApproval *bool    `json:"require_human_approval"`
		UseLocalModels       *bool    `json:"use_local_models"`
		TaskTimeoutMs        *int64   `json:"task_timeout_ms"`
	} `json:"config"`
	IsActive *bool `json:"is_active"`
}

// handleModeUpdate implements PUT modes/{mode} {config, is_active}: config
// patches the named mode's Config in place via modes.Manager.UpdateConfig,
// and is_active=true switches the active mode to it. is_active=false is a
// no-op — the manager always keeps exactly one mode active, so there is no
// "deactivate" operation to perform.
func (s *Server) handleModeUpdate(w http.ResponseWriter, r *http.Request) {
	name := modes.Name(r.PathValue("name"))
	if _, ok := s.modeMgr.Strategy(name); !ok {
		writeError(w, errs.New(errs.NotFound, "unknown mode "+string(name)))
		return
	}

	var body modeUpdateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, errs.Wrap(errs.Validation, "invalid request body", err))
			return
		}
	}

	if body.Config != nil {
		cfg := body.Config
		err := s.modeMgr.UpdateConfig(name, func(c *modes.Config) {
			if cfg.MaxRetries != nil {
				c.MaxRetries = *cfg.MaxRetries
			}
			if cfg.CostLimit != nil {
				c.CostLimit = cfg.CostLimit
			}
			if cfg.RequireHumanApproval != nil {
				c.RequireHumanApproval = *cfg.RequireHumanApproval
			}
			if cfg.UseLocalModels != nil {
				c.UseLocalModels = *cfg.UseLocalModels
			}
			if cfg.TaskTimeoutMs != nil {
				c.TaskTimeoutMs = *cfg.TaskTimeoutMs
			}
		})
		if err != nil {
			writeError(w, err)
			return
		}
	}

	if body.IsActive != nil && *body.IsActive {
		if err := s.modeMgr.SwitchMode(name); err != nil {
			writeError(w, err)
			return
		}
	}

	strategy, _ := s.modeMgr.Strategy(name)
	writeJSON(w, http.StatusOK, strategy.Config())
}

type projectCreation struct {
	Name string `json:"name"`
	Root string `json:"root"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body projectCreation
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.Wrap(errs.Validation, "invalid request body", err))
		return
	}
	if body.Name == "" {
		writeError(w, errs.New(errs.Validation, "name must not be empty"))
		return
	}
	p := s.projects.Create(body.Name, body.Root)
	writeJSON(w, http.StatusCreated, map[string]string{"id": p.ID})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.projects.List())
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.projects.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.projects.Delete(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatusOverview(w http.ResponseWriter, r *http.Request) {
	tasks := s.orch.List()
	active, queued := 0, 0
	for _, t := range tasks {
		if t.Status.IsActive() {
			active++
		} else if t.Status == orchestrator.StatusPending {
			queued++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total": len(tasks), "active": active, "queued": queued, "mode": string(s.modeMgr.Active()),
	})
}

func (s *Server) handleStatusStats(w http.ResponseWriter, r *http.Request) {
	tasks := s.orch.List()
	var completed, failed, cancelled int
	for _, t := range tasks {
		switch t.Status {
		case orchestrator.StatusCompleted:
			completed++
		case orchestrator.StatusFailed:
			failed++
		case orchestrator.StatusCancelled:
			cancelled++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total": len(tasks), "completed": completed, "failed": failed, "cancelled": cancelled,
	})
}

// handleStatusCosts implements GET monitoring/costs?days, summing cost and
// token usage over tasks created in the last `days` days. days<=0 or absent
// means no windowing — sum over every task ever submitted.
func (s *Server) handleStatusCosts(w http.ResponseWriter, r *http.Request) {
	days := parsePositiveInt(r.URL.Query().Get("days"), 0)
	var cutoff time.Time
	if days > 0 {
		cutoff = time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	}

	tasks := s.orch.List()
	var totalCost float64
	var totalTokens int
	for _, t := range tasks {
		if days > 0 && t.CreatedAt.Before(cutoff) {
			continue
		}
		totalCost += t.Cost
		totalTokens += t.TokensUsed
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_cost": totalCost, "total_tokens": totalTokens, "days": days,
	})
}

// handleHealth implements GET health → {status, database, cache, provider,
// local_provider}. database is probed via a cheap, side-effect-free
// eventstore.Store call (Store exposes no dedicated ping method); cache is
// reported "disabled" since no SPEC_FULL.md component models a cache layer
// (see DESIGN.md); provider/local_provider reflect the cloud-or-llamacpp and
// ollama backends respectively, when a provider registry is wired in.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	database := "unknown"
	if s.store != nil {
		if _, err := s.store.GetLatestVersion(r.Context(), "__health__"); err != nil {
			database = "unhealthy"
		} else {
			database = "ok"
		}
	}

	providerStatus := providerHealth(r.Context(), s.providers, "cloud", "llamacpp")
	localProviderStatus := providerHealth(r.Context(), s.providers, "ollama")

	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "ok",
		"database":       database,
		"cache":          "disabled",
		"provider":       providerStatus,
		"local_provider": localProviderStatus,
	})
}

// providerHealth reports "ok"/"unhealthy" for the first name in candidates
// that is registered, or "unconfigured" if none are.
func providerHealth(ctx context.Context, registry *provider.Registry, candidates ...string) string {
	if registry == nil {
		return "unconfigured"
	}
	for _, name := range candidates {
		p, ok := registry.Get(name)
		if !ok {
			continue
		}
		if p.HealthCheck(ctx).Healthy {
			return "ok"
		}
		return "unhealthy"
	}
	return "unconfigured"
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = "tasks"
	}
	s.broadcaster.ServeSSE(w, r, channel)
}

func readAndValidate(r *http.Request, schema *gojsonschema.Schema) ([]byte, error) {
	var buf strings.Builder
	if _, err := buf.ReadFrom(r.Body); err != nil {
		return nil, errs.Wrap(errs.Validation, "read request body", err)
	}
	body := []byte(buf.String())

	if schema != nil {
		result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
		if err != nil {
			return nil, errs.Wrap(errs.Validation, "validate request body", err)
		}
		if !result.Valid() {
			return nil, errs.New(errs.Validation, "request body failed schema validation")
		}
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := errs.Internal
	msg := err.Error()
	if e, ok := err.(*errs.Error); ok {
		kind = e.Kind
		msg = e.Message
	}
	switch kind {
	case errs.Validation:
		status = http.StatusBadRequest
	case errs.NotFound:
		status = http.StatusNotFound
	case errs.Conflict:
		status = http.StatusConflict
	case errs.CostExceeded, errs.Unresolvable:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": msg, "type": string(kind)})
}
