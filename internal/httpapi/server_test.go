package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/internal/agent"
	"orchestrator/internal/agentregistry"
	"orchestrator/internal/eventbus"
	"orchestrator/internal/eventstore"
	"orchestrator/internal/modes"
	"orchestrator/internal/orchestrator"
	"orchestrator/internal/project"
	"orchestrator/internal/provider"
	"orchestrator/internal/workerpool"
)

type instantAgent struct{ typ agent.Type }

func (a *instantAgent) Type() agent.Type                 { return a.typ }
func (a *instantAgent) Capabilities() agent.Capabilities { return agent.Capabilities{Name: string(a.typ)} }
func (a *instantAgent) Execute(ctx context.Context, task agent.Task, onProgress agent.ProgressFunc) (agent.Result, error) {
	return agent.Result{Success: true, Output: map[string]interface{}{"ok": true}}, nil
}
func (a *instantAgent) Validate(result agent.Result) agent.ValidationResult {
	return agent.BaseValidate(result)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	bus := eventbus.New(0)
	registry := agentregistry.New(0)
	require.NoError(t, registry.Register(&instantAgent{typ: agent.TypeImplement}))
	require.NoError(t, registry.Register(&instantAgent{typ: agent.TypeTest}))
	modeMgr := modes.NewManager(bus)
	orch := orchestrator.New(bus, eventstore.NewInMemoryStore(), registry, modeMgr, workerpool.New(4))
	broadcaster := NewBroadcaster(bus)
	projects := project.NewRegistry()
	return NewServer(orch, modeMgr, broadcaster, projects, eventstore.NewInMemoryStore(), provider.NewRegistry())
}

func doRequest(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreateTaskAndGetTask(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/tasks", map[string]interface{}{"description": "add a feature"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct{ ID string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	deadline := time.Now().Add(2 * time.Second)
	var getRec *httptest.ResponseRecorder
	for time.Now().Before(deadline) {
		getRec = doRequest(s, http.MethodGet, "/tasks/"+created.ID, nil)
		var body map[string]interface{}
		_ = json.Unmarshal(getRec.Body.Bytes(), &body)
		if body["Status"] == "completed" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, http.StatusOK, getRec.Code)
}

func TestHandleCreateTaskRejectsEmptyDescription(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/tasks", map[string]interface{}{"description": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetTaskUnknownReturns404(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/tasks/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListModes(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/modes", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.ElementsMatch(t, []string{"SPEED", "QUALITY", "AUTONOMY", "COST"}, names)
}

func TestHandleCurrentModeDefaultsToSpeed(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/modes/current", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SPEED")
}

func TestHandleSwitchMode(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/modes/switch", map[string]string{"mode": "QUALITY"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(s, http.MethodGet, "/modes/current", nil)
	assert.Contains(t, rec.Body.String(), "QUALITY")
}

func TestHandleModeInfoUnknownMode(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/modes/NONSENSE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleProjectCRUD(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/projects", map[string]string{"name": "my-app", "root": "/repos/my-app"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct{ ID string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(s, http.MethodGet, "/projects/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/projects", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodDelete, "/projects/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(s, http.MethodGet, "/projects/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateProjectRejectsEmptyName(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/projects", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatusEndpoints(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/monitoring/overview", "/monitoring/stats", "/monitoring/costs", "/health"} {
		rec := doRequest(s, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestHandleHealthReportsAllFourSubsystems(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, "disabled", body["cache"])
	assert.Equal(t, "unconfigured", body["provider"])
	assert.Equal(t, "unconfigured", body["local_provider"])
}

func TestHandleStatusCostsWindowsByDays(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/monitoring/costs?days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(7), body["days"])
}

func TestHandleListTasksFiltersAndPaginates(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		rec := doRequest(s, http.MethodPost, "/tasks", map[string]interface{}{"description": "add a feature", "project_id": "proj-a"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := doRequest(s, http.MethodPost, "/tasks", map[string]interface{}{"description": "add a feature", "project_id": "proj-b"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(s, http.MethodGet, "/tasks?project_id=proj-a&page=1&page_size=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tasks    []map[string]interface{} `json:"tasks"`
		Page     int                      `json:"page"`
		PageSize int                      `json:"page_size"`
		Total    int                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)
	assert.Len(t, body.Tasks, 2)
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, 2, body.PageSize)
}

func TestHandleModeUpdatePatchesConfigAndSwitches(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPut, "/modes/QUALITY", map[string]interface{}{
		"config":    map[string]interface{}{"max_retries": 7},
		"is_active": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, float64(7), cfg["MaxRetries"])

	current := doRequest(s, http.MethodGet, "/modes/current", nil)
	assert.Contains(t, current.Body.String(), "QUALITY")
}

func TestHandleModeUpdateUnknownModeReturns404(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPut, "/modes/NONSENSE", map[string]interface{}{"is_active": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
