// Package httpapi is the collaborator HTTP surface §1 scopes out of the
// core pipeline: request decoding, error-code mapping, and nothing
// else. All business logic lives in internal/orchestrator. Grounded on
// the teacher's cmd/engine/main.go, which wires an identical
// echo.New()+middleware.CORSWithConfig+handler-returns-c.JSON surface
// around its own RunEngine call.
package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Victor-armando18/pricing-engine/internal/domain/pricingerr"
	"github.com/Victor-armando18/pricing-engine/internal/orchestrator"
	"github.com/Victor-armando18/pricing-engine/internal/preparation"
)

// calculateRequest is the wire shape of §6's CalculateRequest, trimmed
// to what this service's preparation stage actually consumes: a
// proposal identifier resolved against the database snapshot, plus an
// optional delta for the cache-hit fast path.
type calculateRequest struct {
	Tenant  string            `json:"tenant"`
	Changes *preparation.Delta `json:"changes,omitempty"`
}

// errorBody is §7's "one structured error with kind, message, and
// violations" contract.
type errorBody struct {
	Kind       string   `json:"kind"`
	Message    string   `json:"message"`
	Violations []string `json:"violations,omitempty"`
}

// NewServer builds an *echo.Echo wired to orch, with CORS enabled for
// the calculate endpoint and a plain health check for readiness probes.
func NewServer(orch *orchestrator.Orchestrator, requestDeadline time.Duration) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{Timeout: requestDeadline}))

	e.GET("/healthz", handleHealth)
	e.POST("/v1/proposals/:proposalId/calculate", handleCalculate(orch))

	return e
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func handleCalculate(orch *orchestrator.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		proposalID := c.Param("proposalId")

		var req calculateRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{
				Kind:    string(pricingerr.InvalidInput),
				Message: "malformed request body",
			})
		}

		resp, err := orch.Calculate(c.Request().Context(), orchestrator.Request{
			ProposalID: proposalID,
			Tenant:     req.Tenant,
			Changes:    req.Changes,
		})
		if err != nil {
			return c.JSON(statusFor(err), toErrorBody(err))
		}
		return c.JSON(http.StatusOK, map[string]any{
			"result":     resp.Result,
			"idempotent": resp.Idempotent,
			"timings":    resp.Timings,
		})
	}
}

func toErrorBody(err error) errorBody {
	body := errorBody{Kind: string(pricingerr.KindOf(err)), Message: err.Error()}
	var pe *pricingerr.Error
	if errs, ok := err.(*pricingerr.Error); ok {
		pe = errs
	}
	if pe != nil {
		body.Message = pe.Message
		body.Violations = pe.Violations
	}
	return body
}

// statusFor maps §7's error taxonomy onto HTTP status codes. Idempotency
// replay is informational, not a failure, but Calculate never returns it
// as an error (Outcome.Idempotent carries that instead), so it has no
// case here.
func statusFor(err error) int {
	switch pricingerr.KindOf(err) {
	case pricingerr.InvalidInput, pricingerr.InvalidMargin, pricingerr.RuleCompileError:
		return http.StatusBadRequest
	case pricingerr.ResourceLimit:
		return http.StatusRequestEntityTooLarge
	case pricingerr.DataFetchError:
		return http.StatusNotFound
	case pricingerr.DatabaseError, pricingerr.EventPublishError, pricingerr.WebhookError, pricingerr.RuleEvalError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
