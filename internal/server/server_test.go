package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightline/composer/internal/cost"
	"github.com/brightline/composer/internal/grouping"
	"github.com/brightline/composer/internal/model"
	"github.com/brightline/composer/internal/pools"
	"github.com/brightline/composer/internal/store"
	"github.com/brightline/composer/internal/usage"
)

// stubGenerator partitions the cleaned keywords into two groups without
// calling the API, or fails when err is set.
type stubGenerator struct {
	err error
}

func (s *stubGenerator) GeneratePlan(ctx context.Context, req grouping.PlanRequest) (*grouping.PlanResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	mid := (len(req.Keywords) + 1) / 2
	return &grouping.PlanResult{
		Groups: []grouping.PlannedGroup{
			{GroupIndex: 0, Label: "First Half", Phrases: req.Keywords[:mid]},
			{GroupIndex: 1, Label: "Second Half", Phrases: req.Keywords[mid:]},
		},
		Usage: grouping.Usage{Model: "stub-model", TokensIn: 100, TokensOut: 40},
	}, nil
}

func (s *stubGenerator) Model() string { return "stub-model" }

type testEnv struct {
	srv   *httptest.Server
	store store.Store
	gen   *stubGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	gen := &stubGenerator{}
	ledger := usage.NewLedger(st, cost.NewCalculator(cost.DefaultRates()))
	planner := grouping.NewPlanner(st, gen, ledger)
	s := New(pools.NewService(st), planner, "org-default", []string{"*"})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: st, gen: gen}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any, org string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if org != "" {
		req.Header.Set(orgHeader, org)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func uploadFive(t *testing.T, e *testEnv, org string) model.KeywordPool {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/api/pools/keywords", map[string]any{
		"projectId": "proj-1",
		"poolType":  "body",
		"keywords":  []string{"blue mug", "red mug", "green mug", "travel mug", "espresso cup"},
	}, org)
	require.Equal(t, http.StatusOK, status)

	var res struct {
		Pool       model.KeywordPool `json:"pool"`
		Validation struct {
			Valid   bool   `json:"valid"`
			Warning string `json:"warning"`
		} `json:"validation"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Validation.Valid)
	assert.NotEmpty(t, res.Validation.Warning)
	return res.Pool
}

func cleanPool(t *testing.T, e *testEnv, poolID, org string) model.KeywordPool {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/api/pools/"+poolID+"/clean", map[string]any{
		"settings": map[string]bool{},
		"project":  map[string]string{"clientName": "Brightline"},
	}, org)
	require.Equal(t, http.StatusOK, status)
	var pool model.KeywordPool
	require.NoError(t, json.Unmarshal(env.Data, &pool))
	return pool
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	status, env := e.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), "ok")
}

func TestLifecycleEndToEnd(t *testing.T) {
	e := newTestEnv(t)
	org := "org-1"

	pool := uploadFive(t, e, org)
	assert.Equal(t, model.PoolStatusUploaded, pool.Status)

	cleaned := cleanPool(t, e, pool.ID, org)
	assert.Equal(t, model.PoolStatusCleaned, cleaned.Status)
	assert.Len(t, cleaned.CleanedKeywords, 5)

	// Generate grouping plan.
	status, env := e.do(t, http.MethodPost, "/api/pools/"+pool.ID+"/grouping-plan", map[string]any{
		"config": map[string]any{"basis": "theme"},
	}, org)
	require.Equal(t, http.StatusOK, status)
	var planRes struct {
		Pool   model.KeywordPool    `json:"pool"`
		Groups []model.KeywordGroup `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &planRes))
	assert.Equal(t, model.PoolStatusGrouped, planRes.Pool.Status)
	assert.NotNil(t, planRes.Pool.GroupedAt)
	require.Len(t, planRes.Groups, 2)

	// Approve, then add an override: approval must drop.
	status, _ = e.do(t, http.MethodPost, "/api/pools/"+pool.ID+"/approve-groups", nil, org)
	require.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, http.MethodPost, "/api/pools/"+pool.ID+"/overrides", map[string]any{
		"phrase": "blue mug",
		"action": "remove",
	}, org)
	require.Equal(t, http.StatusCreated, status)

	stored, err := e.store.GetPool(context.Background(), org, pool.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ApprovedAt)

	// Read groups with overlay.
	status, env = e.do(t, http.MethodGet, "/api/pools/"+pool.ID+"/groups", nil, org)
	require.Equal(t, http.StatusOK, status)
	var view grouping.GroupsView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Overrides, 1)
	total := 0
	for _, g := range view.Effective {
		total += len(g.Phrases)
	}
	assert.Equal(t, 4, total, "overlay removed one phrase")

	// Reset overrides.
	status, env = e.do(t, http.MethodDelete, "/api/pools/"+pool.ID+"/overrides", nil, org)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"deleted":1`)
}

func TestGroupingPlanGuards(t *testing.T) {
	e := newTestEnv(t)
	org := "org-1"
	pool := uploadFive(t, e, org)

	status, env := e.do(t, http.MethodPost, "/api/pools/"+pool.ID+"/grouping-plan", map[string]any{
		"config": map[string]any{"basis": "theme"},
	}, org)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_pool_status", env.Error.Code)
	assert.Contains(t, env.Error.Message, "uploaded")
	assert.Contains(t, env.Error.Message, "cleaned")
}

func TestGroupingPlanUpstreamFailure(t *testing.T) {
	e := newTestEnv(t)
	org := "org-1"
	pool := uploadFive(t, e, org)
	cleanPool(t, e, pool.ID, org)

	e.gen.err = eris.New("AI error")
	status, env := e.do(t, http.MethodPost, "/api/pools/"+pool.ID+"/grouping-plan", map[string]any{
		"config": map[string]any{"basis": "theme"},
	}, org)
	assert.Equal(t, http.StatusBadGateway, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "generation_failed", env.Error.Code)

	// Pool still cleaned and retryable.
	stored, err := e.store.GetPool(context.Background(), org, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PoolStatusCleaned, stored.Status)

	e.gen.err = nil
	status, _ = e.do(t, http.MethodPost, "/api/pools/"+pool.ID+"/grouping-plan", map[string]any{
		"config": map[string]any{"basis": "theme"},
	}, org)
	assert.Equal(t, http.StatusOK, status)
}

func TestPoolNotFoundMapsTo404(t *testing.T) {
	e := newTestEnv(t)
	status, env := e.do(t, http.MethodGet, "/api/pools/ghost", nil, "org-1")
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "pool_not_found", env.Error.Code)
}

func TestOrganizationHeaderScopesPools(t *testing.T) {
	e := newTestEnv(t)

	uploadFive(t, e, "org-1")

	status, env := e.do(t, http.MethodGet, "/api/pools?projectId=proj-1", nil, "org-2")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]", string(bytes.TrimSpace(env.Data)))

	status, env = e.do(t, http.MethodGet, "/api/pools?projectId=proj-1", nil, "org-1")
	require.Equal(t, http.StatusOK, status)
	var list []model.KeywordPool
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestDefaultOrganizationFallback(t *testing.T) {
	e := newTestEnv(t)

	// No header: pool lands in the configured default org.
	status, env := e.do(t, http.MethodPost, "/api/pools/keywords", map[string]any{
		"projectId": "proj-1",
		"poolType":  "titles",
		"keywords":  []string{"mug headline"},
	}, "")
	require.Equal(t, http.StatusOK, status)

	var res struct {
		Pool model.KeywordPool `json:"pool"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "org-default", res.Pool.OrganizationID)
}

func TestUploadTextBody(t *testing.T) {
	e := newTestEnv(t)

	status, env := e.do(t, http.MethodPost, "/api/pools/keywords", map[string]any{
		"projectId": "proj-1",
		"poolType":  "body",
		"text":      "keyword\nblue mug\nred mug\n",
	}, "org-1")
	require.Equal(t, http.StatusOK, status)

	var res struct {
		Pool model.KeywordPool `json:"pool"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, []string{"blue mug", "red mug"}, res.Pool.RawKeywords)
}

func TestUploadMultipartCSV(t *testing.T) {
	e := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("projectId", "proj-1"))
	require.NoError(t, mw.WriteField("poolType", "body"))
	fw, err := mw.CreateFormFile("file", "keywords.csv")
	require.NoError(t, err)
	fmt.Fprint(fw, "keyword\nblue mug\nred mug\n")
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/pools/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(orgHeader, "org-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	var res struct {
		Pool model.KeywordPool `json:"pool"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, []string{"blue mug", "red mug"}, res.Pool.RawKeywords)
}

func TestDeleteKeywordsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	org := "org-1"
	pool := uploadFive(t, e, org)

	status, env := e.do(t, http.MethodDelete, "/api/pools/"+pool.ID+"/keywords", nil, org)
	require.Equal(t, http.StatusOK, status)

	var cleared model.KeywordPool
	require.NoError(t, json.Unmarshal(env.Data, &cleared))
	assert.Empty(t, cleared.RawKeywords)
	assert.Equal(t, model.PoolStatusUploaded, cleared.Status)
}

func TestApproveCleanFlow(t *testing.T) {
	e := newTestEnv(t)
	org := "org-1"
	pool := uploadFive(t, e, org)
	cleanPool(t, e, pool.ID, org)

	status, env := e.do(t, http.MethodPost, "/api/pools/"+pool.ID+"/approve-clean", nil, org)
	require.Equal(t, http.StatusOK, status)
	var approved model.KeywordPool
	require.NoError(t, json.Unmarshal(env.Data, &approved))
	assert.NotNil(t, approved.ApprovedAt)

	status, env = e.do(t, http.MethodPost, "/api/pools/"+pool.ID+"/unapprove-clean", nil, org)
	require.Equal(t, http.StatusOK, status)
	var reverted model.KeywordPool
	require.NoError(t, json.Unmarshal(env.Data, &reverted))
	assert.Nil(t, reverted.ApprovedAt)
	assert.Equal(t, model.PoolStatusUploaded, reverted.Status)
}
