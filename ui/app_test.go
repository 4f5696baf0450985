package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quotebias/app"
	"quotebias/domain/discrimination"
	"quotebias/domain/quotes"
	"quotebias/internal/api"
	"quotebias/internal/report"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	ds *quotes.Dataset
}

func (s staticSource) Load(ctx context.Context) (*quotes.Dataset, error) { return s.ds, nil }
func (s staticSource) Describe() string                                  { return "static" }

func survey() *quotes.Dataset {
	ds := quotes.NewDataset("survey", []string{quotes.ColGender, quotes.ColAge}, []string{"top1"})
	for i, age := range []string{"20", "30", "40", "50", "60", "70"} {
		m := quotes.NewRecord()
		m.Values[quotes.ColGender], m.Values[quotes.ColAge] = "M", age
		m.Outcomes["top1"] = 400 + float64(i)
		f := m.Clone()
		f.Values[quotes.ColGender] = "F"
		f.Outcomes["top1"] = 430 + float64(i)
		ds.Append(m, f)
	}
	return ds
}

func newTestApp(plan *discrimination.Plan) *App {
	store := app.NewDatasetStore(staticSource{survey()}, nil, nil)
	svc := app.NewComparisonService(app.ComparisonServiceConfig{Outcome: "top1"})
	renderer := report.NewRenderer("€")
	handler := api.NewDiscriminationHandler(svc, store, plan, nil, renderer, nil)
	return NewApp(Config{}, handler, renderer, nil)
}

func genderPlan() *discrimination.Plan {
	return &discrimination.Plan{
		Name:       "Gender",
		Outcome:    "top1",
		Covariates: []string{quotes.ColAge},
		Comparisons: []discrimination.Comparison{
			{Attribute: quotes.ColGender, TestValue: "F", BaselineValue: "M"},
		},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestApp(nil).Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestIndexRedirectsToReport(t *testing.T) {
	rec := get(t, newTestApp(nil).Handler(), "/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/report", rec.Header().Get("Location"))
}

func TestReport_HTML(t *testing.T) {
	rec := get(t, newTestApp(genderPlan()).Handler(), "/report")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "<table>")
	assert.Contains(t, body, "F vs M")
	assert.Contains(t, body, "30 €")
}

func TestReport_HTMLEscapesPlanName(t *testing.T) {
	plan := genderPlan()
	plan.Name = `<img src=x onerror="alert(1)">`

	rec := get(t, newTestApp(plan).Handler(), "/report")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.String()
	assert.NotContains(t, body, "<img")
	assert.Contains(t, body, "&lt;img src=x onerror=&quot;alert(1)&quot;&gt;")
}

func TestReport_MarkdownAndLaTeX(t *testing.T) {
	h := newTestApp(genderPlan()).Handler()

	md := get(t, h, "/report.md")
	require.Equal(t, http.StatusOK, md.Code)
	assert.True(t, strings.HasPrefix(md.Body.String(), "## "))
	assert.Contains(t, md.Body.String(), "**<0.05**")

	tex := get(t, h, "/report.tex")
	require.Equal(t, http.StatusOK, tex.Code)
	assert.Contains(t, tex.Body.String(), `\toprule`)
	assert.Contains(t, tex.Body.String(), `\textbf{<0.05}`)
}

func TestReport_NoPlan(t *testing.T) {
	rec := get(t, newTestApp(nil).Handler(), "/report")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReport_UnknownOutcome(t *testing.T) {
	plan := genderPlan()
	plan.Outcome = "top2"

	rec := get(t, newTestApp(plan).Handler(), "/report")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIMounted(t *testing.T) {
	h := newTestApp(nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/compare",
		strings.NewReader(`{"attribute":"gender","test":"F","baseline":"M","covariates":["age"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"pairs":"F vs M"`)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := app.NewDatasetStore(staticSource{survey()}, nil, nil)
	svc := app.NewComparisonService(app.ComparisonServiceConfig{Outcome: "top1", Metrics: app.NewMetrics(reg)})
	renderer := report.NewRenderer("€")
	handler := api.NewDiscriminationHandler(svc, store, genderPlan(), nil, renderer, nil)
	h := NewApp(Config{Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}, handler, renderer, nil).Handler()

	require.Equal(t, http.StatusOK, get(t, h, "/report").Code)

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `quotebias_analysis_comparisons_total{kind="comparison",status="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "quotebias_analysis_run_duration_seconds_count 1")
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	rec := get(t, newTestApp(nil).Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
