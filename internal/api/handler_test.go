package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quotebias/app"
	"quotebias/domain/core"
	"quotebias/domain/discrimination"
	"quotebias/domain/quotes"
	apperrors "quotebias/internal/errors"
	"quotebias/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	ds *quotes.Dataset
}

func (s staticSource) Load(ctx context.Context) (*quotes.Dataset, error) { return s.ds, nil }
func (s staticSource) Describe() string                                  { return "static:" + s.ds.Name }

func record(gender, age, city string, top1 float64) quotes.Record {
	r := quotes.NewRecord()
	r.Values[quotes.ColGender] = gender
	r.Values[quotes.ColAge] = age
	r.Values[quotes.ColCity] = city
	r.Outcomes["top1"] = top1
	return r
}

// six profiles where F is quoted 20 more than M
func survey() *quotes.Dataset {
	ds := quotes.NewDataset("survey", []string{quotes.ColGender, quotes.ColAge, quotes.ColCity}, []string{"top1"})
	for i, age := range []string{"20", "30", "40", "50", "60", "70"} {
		base := 500 + float64(i)
		ds.Append(record("M", age, "MI", base), record("F", age, "MI", base+20))
	}
	return ds
}

func newTestEngine(t *testing.T, plan *discrimination.Plan) http.Handler {
	t.Helper()
	ds := survey()
	store := app.NewDatasetStore(staticSource{ds}, staticSource{ds}, nil)
	svc := app.NewComparisonService(app.ComparisonServiceConfig{Outcome: "top1", Workers: 2})
	h := NewDiscriminationHandler(svc, store, plan, nil, report.NewRenderer("€"), nil)
	return NewEngine(h)
}

var testCovariates = `["age","city"]`

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostCompare(t *testing.T) {
	h := newTestEngine(t, nil)

	rec := do(t, h, http.MethodPost, "/api/compare",
		`{"attribute":"gender","test":"F","baseline":"M","covariates":`+testCovariates+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "F vs M", resp.Pairs)
	assert.Equal(t, 6, resp.N)
	assert.Equal(t, 20.0, resp.Median)
	assert.True(t, resp.Significant)
	require.NotNil(t, resp.Display)
	assert.Equal(t, "20 €", resp.Display.Mean)
	assert.Equal(t, "<0.05", resp.Display.PValue)
}

func TestPostCompare_NumericOutputOmitsDisplay(t *testing.T) {
	h := newTestEngine(t, nil)

	rec := do(t, h, http.MethodPost, "/api/compare",
		`{"attribute":"gender","test":"M","baseline":"F","covariates":`+testCovariates+`,"options":{"numeric_output":true}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"display"`)
	assert.Contains(t, rec.Body.String(), `"median":-20`)
}

func TestPostCompare_Errors(t *testing.T) {
	h := newTestEngine(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed body", `{"attribute":`, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"missing field", `{"attribute":"gender","test":"F"}`, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"identical values", `{"attribute":"gender","test":"F","baseline":"F","covariates":` + testCovariates + `}`, http.StatusBadRequest, apperrors.CodeConfigInvalid},
		{"unobserved value", `{"attribute":"gender","test":"X","baseline":"M","covariates":` + testCovariates + `}`, http.StatusBadRequest, apperrors.CodeConfigInvalid},
		{"attribute is a covariate", `{"attribute":"age","test":"20","baseline":"30","covariates":` + testCovariates + `}`, http.StatusBadRequest, apperrors.CodeConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/compare", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestPostCompare_EmptyResultIs422(t *testing.T) {
	ds := quotes.NewDataset("split", []string{quotes.ColGender, quotes.ColAge, quotes.ColCity}, []string{"top1"})
	ds.Append(record("M", "20", "MI", 500), record("F", "30", "MI", 520))
	store := app.NewDatasetStore(staticSource{ds}, nil, nil)
	svc := app.NewComparisonService(app.ComparisonServiceConfig{})
	h := NewEngine(NewDiscriminationHandler(svc, store, nil, nil, report.NewRenderer("€"), nil))

	rec := do(t, h, http.MethodPost, "/api/compare",
		`{"attribute":"gender","test":"F","baseline":"M","covariates":`+testCovariates+`}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), apperrors.CodeEmptyResult)
}

func TestPostBaseline(t *testing.T) {
	h := newTestEngine(t, nil)

	rec := do(t, h, http.MethodPost, "/api/baseline", `{"covariates":["gender","age","city"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, discrimination.ControlAttribute, resp.Attribute)
	assert.Equal(t, 100.0, resp.TieRate)
	assert.Equal(t, 1.0, resp.PValue)
	assert.False(t, resp.Significant)
}

func TestPostBaseline_RepeatsWithoutRepeatedProfiles(t *testing.T) {
	h := newTestEngine(t, nil)

	rec := do(t, h, http.MethodPost, "/api/baseline", `{"covariates":["gender","age","city"],"repeats":true}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func testPlan() *discrimination.Plan {
	return &discrimination.Plan{
		Name:       "gender",
		Outcome:    "top1",
		Covariates: []string{quotes.ColAge, quotes.ColCity},
		Comparisons: []discrimination.Comparison{
			{Attribute: quotes.ColGender, TestValue: "F", BaselineValue: "M"},
			{Attribute: quotes.ColGender, TestValue: "M", BaselineValue: "F"},
		},
	}
}

func TestPostRun_ConfiguredPlan(t *testing.T) {
	h := newTestEngine(t, testPlan())

	rec := do(t, h, http.MethodPost, "/api/run", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Table.Rows, 2)
	assert.Equal(t, "F vs M", resp.Table.Rows[0].Pairs)
	assert.Equal(t, "M vs F", resp.Table.Rows[1].Pairs)
	assert.Len(t, resp.Display, 2)
	assert.Len(t, resp.Fingerprint, 64)
	assert.Equal(t, []string{"Attribute", "Pairs", "Ties5", ".05()", ".50()", ".95()", "m()", "p-value"}, resp.Columns)
}

func TestPostRun_PostedPlan(t *testing.T) {
	h := newTestEngine(t, nil)

	body := `{"name":"posted","outcome":"top1","covariates":["age","city"],"control":true,
		"options":{"numeric_output":true,"include_quartiles":true},
		"comparisons":[{"attribute":"gender","test":"F","baseline":"M"}]}`
	rec := do(t, h, http.MethodPost, "/api/run", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Table.Rows, 2)
	assert.Equal(t, discrimination.ControlAttribute, resp.Table.Rows[0].Attribute)
	assert.Empty(t, resp.Display)
	assert.Equal(t, "n", resp.Columns[len(resp.Columns)-2])
}

func TestPostRun_NoPlan(t *testing.T) {
	h := newTestEngine(t, nil)
	rec := do(t, h, http.MethodPost, "/api/run", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostRun_InvalidPostedPlan(t *testing.T) {
	h := newTestEngine(t, nil)

	rec := do(t, h, http.MethodPost, "/api/run", `{"name":"empty","covariates":["age","city"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), apperrors.CodeConfigInvalid)

	rec = do(t, h, http.MethodPost, "/api/run", `{"dedup":"latest","control":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSourcesAndValues(t *testing.T) {
	h := newTestEngine(t, nil)

	rec := do(t, h, http.MethodGet, "/api/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records":12`)
	assert.Contains(t, rec.Body.String(), `"control"`)

	rec = do(t, h, http.MethodGet, "/api/values/gender", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"column":"gender","values":["F","M"]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/values/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(apperrors.CodeConfigInvalid))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(apperrors.CodeEmptyDistribution))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(apperrors.CodeDataSource))
	assert.Equal(t, http.StatusInternalServerError, StatusFor("UNKNOWN"))
}

type mockRuns struct {
	mock.Mock
}

func (m *mockRuns) SaveRun(ctx context.Context, table *discrimination.ComparisonTable) error {
	return m.Called(ctx, table).Error(0)
}

func (m *mockRuns) GetRun(ctx context.Context, id core.RunID) (*discrimination.ComparisonTable, error) {
	args := m.Called(ctx, id)
	table, _ := args.Get(0).(*discrimination.ComparisonTable)
	return table, args.Error(1)
}

func (m *mockRuns) ListRuns(ctx context.Context, limit int) ([]discrimination.RunSummary, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]discrimination.RunSummary)
	return runs, args.Error(1)
}

func newEngineWithRuns(t *testing.T, runs *mockRuns) http.Handler {
	t.Helper()
	ds := survey()
	store := app.NewDatasetStore(staticSource{ds}, staticSource{ds}, nil)
	svc := app.NewComparisonService(app.ComparisonServiceConfig{Outcome: "top1", Workers: 2})
	h := NewDiscriminationHandler(svc, store, testPlan(), nil, report.NewRenderer("€"), nil)
	return NewEngine(h.WithRuns(runs))
}

func TestPostRun_SavesRun(t *testing.T) {
	runs := &mockRuns{}
	runs.On("SaveRun", mock.Anything, mock.AnythingOfType("*discrimination.ComparisonTable")).Return(nil).Once()
	h := newEngineWithRuns(t, runs)

	rec := do(t, h, http.MethodPost, "/api/run", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Saved)
	runs.AssertExpectations(t)
}

func TestPostRun_SaveFailureStillAnswers(t *testing.T) {
	runs := &mockRuns{}
	runs.On("SaveRun", mock.Anything, mock.Anything).Return(apperrors.DatabaseError("insert run", assert.AnError))
	h := newEngineWithRuns(t, runs)

	rec := do(t, h, http.MethodPost, "/api/run", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Saved)
	assert.Len(t, resp.Table.Rows, 2)
}

func TestListRuns(t *testing.T) {
	runs := &mockRuns{}
	summaries := []discrimination.RunSummary{{RunID: "r2", Name: "second", Rows: 3}, {RunID: "r1", Name: "first", Rows: 1}}
	runs.On("ListRuns", mock.Anything, 2).Return(summaries, nil).Once()
	h := newEngineWithRuns(t, runs)

	rec := do(t, h, http.MethodGet, "/api/runs?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Runs []discrimination.RunSummary `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 2)
	assert.Equal(t, "second", body.Runs[0].Name)
	runs.AssertExpectations(t)

	rec = do(t, h, http.MethodGet, "/api/runs?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRun(t *testing.T) {
	runs := &mockRuns{}
	table := discrimination.NewComparisonTable("stored", discrimination.Options{})
	table.Rows = append(table.Rows, discrimination.DistributionSummary{Attribute: "gender", Pairs: "F vs M", N: 6, Median: 20})
	runs.On("GetRun", mock.Anything, core.RunID("known")).Return(table, nil)
	runs.On("GetRun", mock.Anything, core.RunID("missing")).Return(nil, apperrors.NotFound("run missing"))
	h := newEngineWithRuns(t, runs)

	rec := do(t, h, http.MethodGet, "/api/runs/known", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Saved)
	require.Len(t, resp.Display, 1)
	assert.Equal(t, "F vs M", resp.Display[0].Pairs)

	rec = do(t, h, http.MethodGet, "/api/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuns_WithoutStore(t *testing.T) {
	h := newTestEngine(t, testPlan())

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/runs", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/runs/abc", "").Code)
}
