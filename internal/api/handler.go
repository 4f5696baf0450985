package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quotebias/app"
	"quotebias/domain/core"
	"quotebias/domain/discrimination"
	"quotebias/domain/quotes"
	"quotebias/internal"
	"quotebias/internal/config"
	apperrors "quotebias/internal/errors"
	"quotebias/internal/report"
	"quotebias/ports"
)

// DiscriminationHandler serves comparisons over the configured datasets
type DiscriminationHandler struct {
	service  *app.ComparisonService
	store    *app.DatasetStore
	plan     *discrimination.Plan
	analysis *config.AnalysisConfig
	renderer *report.Renderer
	runs     ports.RunRepository
	logger   *internal.Logger
}

// NewDiscriminationHandler creates a new discrimination handler. plan is the
// configured default plan served by Run when the request has no body; posted
// plans get their defaults from analysis.
func NewDiscriminationHandler(
	service *app.ComparisonService,
	store *app.DatasetStore,
	plan *discrimination.Plan,
	analysis *config.AnalysisConfig,
	renderer *report.Renderer,
	logger *internal.Logger,
) *DiscriminationHandler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DiscriminationHandler{
		service:  service,
		store:    store,
		plan:     plan,
		analysis: analysis,
		renderer: renderer,
		logger:   logger.With("API"),
	}
}

// WithRuns stores every API run in repo and enables the /runs routes
func (h *DiscriminationHandler) WithRuns(repo ports.RunRepository) *DiscriminationHandler {
	h.runs = repo
	return h
}

// CompareRequest is the body of POST /api/compare
type CompareRequest struct {
	Attribute  string                 `json:"attribute" binding:"required"`
	Test       string                 `json:"test" binding:"required"`
	Baseline   string                 `json:"baseline" binding:"required"`
	Outcome    string                 `json:"outcome"`
	Covariates []string               `json:"covariates"`
	Options    discrimination.Options `json:"options"`
}

// BaselineRequest is the body of POST /api/baseline. Repeats forces the
// in-dataset repeat strategy even when a control dataset is configured.
type BaselineRequest struct {
	Outcome    string                 `json:"outcome"`
	Covariates []string               `json:"covariates"`
	Repeats    bool                   `json:"repeats"`
	Options    discrimination.Options `json:"options"`
}

// RowResponse is one summary, with its rendered cells unless numeric
// output was requested.
type RowResponse struct {
	discrimination.DistributionSummary
	Display *report.DisplayRow `json:"display,omitempty"`
}

// TableResponse is the result of POST /api/run
type TableResponse struct {
	Table       *discrimination.ComparisonTable `json:"table"`
	Columns     []string                        `json:"columns"`
	Display     []report.DisplayRow             `json:"display,omitempty"`
	Fingerprint string                          `json:"fingerprint"`
	Saved       bool                            `json:"saved"`
}

// Register mounts the handler's routes on r
func (h *DiscriminationHandler) Register(r gin.IRouter) {
	r.GET("/sources", h.GetSources)
	r.GET("/values/:column", h.GetValues)
	r.POST("/compare", h.PostCompare)
	r.POST("/baseline", h.PostBaseline)
	r.POST("/run", h.PostRun)
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/:id", h.GetRun)
}

// GetSources describes the loaded datasets
func (h *DiscriminationHandler) GetSources(c *gin.Context) {
	survey, control, err := h.store.Datasets(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	surveyName, controlName := h.store.Sources()

	resp := gin.H{
		"survey": gin.H{
			"source":      surveyName,
			"records":     survey.Len(),
			"categorical": survey.Categorical,
			"numeric":     survey.Numeric,
		},
	}
	if control != nil {
		resp["control"] = gin.H{"source": controlName, "records": control.Len()}
	}
	c.JSON(http.StatusOK, resp)
}

// GetValues lists the distinct observed values of a categorical column
func (h *DiscriminationHandler) GetValues(c *gin.Context) {
	column := c.Param("column")

	survey, _, err := h.store.Datasets(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if !survey.HasCategorical(column) {
		h.fail(c, apperrors.NotFound("column "+column))
		return
	}
	c.JSON(http.StatusOK, gin.H{"column": column, "values": survey.Distinct(column)})
}

// PostCompare runs a single comparison
func (h *DiscriminationHandler) PostCompare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperrors.InvalidInput(err.Error()))
		return
	}

	survey, _, err := h.store.Datasets(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	comparison := discrimination.Comparison{
		Attribute:     req.Attribute,
		TestValue:     req.Test,
		BaselineValue: req.Baseline,
		Outcome:       req.Outcome,
	}
	covariates := req.Covariates
	if len(covariates) == 0 {
		covariates = quotes.CovariatesExcept(req.Attribute)
	}
	row, err := h.service.Compare(c.Request.Context(), survey, comparison, covariates, req.Options)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.row(row, req.Options))
}

// PostBaseline summarizes the control pairs
func (h *DiscriminationHandler) PostBaseline(c *gin.Context) {
	var req BaselineRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, apperrors.InvalidInput(err.Error()))
			return
		}
	}

	survey, control, err := h.store.Datasets(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if req.Repeats {
		control = nil
	}

	covariates := req.Covariates
	if len(covariates) == 0 {
		covariates = quotes.DefaultCovariates()
	}
	row, err := h.service.Baseline(c.Request.Context(), survey, control, covariates, req.Outcome, req.Options)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.row(row, req.Options))
}

// PostRun executes the posted plan, or the configured plan on an empty body
func (h *DiscriminationHandler) PostRun(c *gin.Context) {
	plan := h.plan
	if c.Request.ContentLength != 0 {
		var posted discrimination.Plan
		if err := c.ShouldBindJSON(&posted); err != nil {
			h.fail(c, apperrors.InvalidInput(err.Error()))
			return
		}
		config.ApplyPlanDefaults(&posted, h.analysis)
		if err := config.ValidatePlan(&posted); err != nil {
			h.fail(c, err)
			return
		}
		plan = &posted
	}
	if plan == nil {
		h.fail(c, apperrors.InvalidInput("no plan posted and none configured"))
		return
	}

	table, err := h.RunTable(c.Request.Context(), plan)
	if err != nil {
		h.fail(c, err)
		return
	}

	saved := false
	if h.runs != nil {
		if err := h.runs.SaveRun(c.Request.Context(), table); err != nil {
			h.logger.Warn("run %s not stored: %v", table.RunID, err)
		} else {
			saved = true
		}
	}
	c.JSON(http.StatusOK, h.tableResponse(table, saved))
}

// ListRuns lists stored runs, newest first
func (h *DiscriminationHandler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		h.fail(c, apperrors.NotFound("run store"))
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.fail(c, apperrors.InvalidInput("limit must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun returns a stored run
func (h *DiscriminationHandler) GetRun(c *gin.Context) {
	if h.runs == nil {
		h.fail(c, apperrors.NotFound("run store"))
		return
	}
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		h.fail(c, apperrors.InvalidInput(err.Error()))
		return
	}

	table, err := h.runs.GetRun(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.tableResponse(table, true))
}

func (h *DiscriminationHandler) tableResponse(table *discrimination.ComparisonTable, saved bool) TableResponse {
	resp := TableResponse{
		Table:       table,
		Columns:     table.Columns(),
		Fingerprint: table.Fingerprint().String(),
		Saved:       saved,
	}
	if table.NumericOutput {
		resp.Columns = report.NumericColumns(table)
	} else {
		resp.Display = h.renderer.RenderTable(table)
	}
	return resp
}

// RunTable runs plan over the stored datasets
func (h *DiscriminationHandler) RunTable(ctx context.Context, plan *discrimination.Plan) (*discrimination.ComparisonTable, error) {
	survey, control, err := h.store.Datasets(ctx)
	if err != nil {
		return nil, err
	}
	return h.service.Run(ctx, survey, control, plan)
}

// DefaultPlan returns the configured plan, nil when none is configured
func (h *DiscriminationHandler) DefaultPlan() *discrimination.Plan {
	return h.plan
}

func (h *DiscriminationHandler) row(s discrimination.DistributionSummary, opts discrimination.Options) RowResponse {
	resp := RowResponse{DistributionSummary: s}
	if !opts.NumericOutput {
		display := h.renderer.Render(s)
		resp.Display = &display
	}
	return resp
}

func (h *DiscriminationHandler) fail(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	status := StatusFor(code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		h.logger.Debug("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

// StatusFor maps an error code to its HTTP status
func StatusFor(code string) int {
	switch code {
	case apperrors.CodeConfigInvalid, apperrors.CodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeEmptyResult, apperrors.CodeEmptyDistribution:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
