package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/carebase/carebase/internal/platform/auth"
)

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"sql"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "appointment-volume-by-status",
		Name:        "Appointment Volume by Status",
		Description: "Number of appointments grouped by lifecycle status",
		SQL:         `SELECT status, COUNT(*) AS total FROM appointments GROUP BY status ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "no-show-rate-by-provider",
		Name:        "No-Show Rate by Provider",
		Description: "Share of resolved appointments each provider's patients missed",
		SQL: `SELECT provider_id,
       COUNT(*) FILTER (WHERE status = 'no_show') AS no_shows,
       COUNT(*) AS resolved,
       ROUND(COUNT(*) FILTER (WHERE status = 'no_show')::numeric / COUNT(*), 4) AS no_show_rate
  FROM appointments
 WHERE status IN ('completed', 'no_show')
 GROUP BY provider_id
 ORDER BY no_show_rate DESC`,
		Parameters: []string{},
	},
	{
		ID:          "invoice-aging",
		Name:        "Invoice Aging",
		Description: "Outstanding invoice balances bucketed by days since the date of service",
		SQL: `SELECT CASE
            WHEN CURRENT_DATE - service_date::date <= 30 THEN '0-30'
            WHEN CURRENT_DATE - service_date::date <= 60 THEN '31-60'
            WHEN CURRENT_DATE - service_date::date <= 90 THEN '61-90'
            ELSE '90+'
       END AS bucket,
       COUNT(*) AS invoices,
       SUM(balance_cents) AS balance_cents
  FROM invoices
 WHERE status IN ('submitted', 'partially_paid', 'overdue')
 GROUP BY bucket
 ORDER BY bucket`,
		Parameters: []string{},
	},
	{
		ID:          "revenue-by-month",
		Name:        "Revenue by Month",
		Description: "Payments collected per calendar month",
		SQL: `SELECT to_char(date_trunc('month', received_at), 'YYYY-MM') AS month,
       SUM(amount_cents) AS collected_cents,
       COUNT(*) AS payments
  FROM payments
 GROUP BY month
 ORDER BY month DESC`,
		Parameters: []string{},
	},
	{
		ID:          "payer-mix",
		Name:        "Payer Mix",
		Description: "Primary insurance policies grouped by payer",
		SQL: `SELECT payer_name,
       COUNT(*) AS policies,
       COUNT(*) FILTER (WHERE verification_status = 'verified') AS verified
  FROM insurance_policies
 WHERE insurance_type = 'primary'
 GROUP BY payer_name
 ORDER BY policies DESC`,
		Parameters: []string{},
	},
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates a new reporting handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole("admin", "biller"))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measureID := c.Param("id")

	measure := FindMeasure(measureID)
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	// Collect parameters from query string
	params := map[string]string{}
	for _, p := range measure.Parameters {
		if v := c.QueryParam(p); v != "" {
			params[p] = v
		}
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	report := MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now(),
		Results:     results,
		Parameters:  params,
	}

	return c.JSON(http.StatusOK, report)
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}

	if results == nil {
		results = []map[string]interface{}{}
	}

	return results, nil
}

// FindMeasure looks up a measure by ID, useful for testing.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
