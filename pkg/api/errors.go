package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/broadcastqueue/eventsubd/pkg/auth"
	"github.com/broadcastqueue/eventsubd/pkg/executor"
	"github.com/broadcastqueue/eventsubd/pkg/statestore"
	"github.com/broadcastqueue/eventsubd/pkg/webhook"
)

// Problem is an RFC 7807 error response body: every error response carries
// {type, title, status, detail, instance}.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

const problemTypeBase = "https://broadcastqueue.dev/problems/"

// newProblem builds a Problem whose Type is problemTypeBase+kind.
func newProblem(status int, kind, title, detail, instance string) *Problem {
	return &Problem{
		Type:     problemTypeBase + kind,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

// writeProblem writes p as the response body with p.Status as the HTTP
// status, using echo's JSON encoder directly rather than echo.NewHTTPError
// — Problem's shape doesn't fit echo's {message} convention.
func writeProblem(c *echo.Context, p *Problem) error {
	return c.JSON(p.Status, p)
}

// problemError maps err to an RFC 7807 Problem, dispatching on the package
// sentinel each storage/domain layer returns. instance is typically the
// request path, used to let a client correlate a logged error with the
// request that produced it.
func problemError(err error, instance string) *Problem {
	switch {
	case errors.Is(err, webhook.ErrSignatureMismatch):
		return newProblem(http.StatusForbidden, "invalid-signature", "Invalid webhook signature", err.Error(), instance)
	case errors.Is(err, webhook.ErrStale):
		return newProblem(http.StatusBadRequest, "invalid-timestamp", "Webhook timestamp outside freshness window", err.Error(), instance)
	case errors.Is(err, executor.ErrOpIDConflict):
		return newProblem(http.StatusPreconditionFailed, "op-id-conflict", "Operation id replayed with a different body", err.Error(), instance)
	case errors.Is(err, statestore.ErrAlreadyTerminal):
		return newProblem(http.StatusConflict, "already-terminal", "Queue entry already in a terminal status", err.Error(), instance)
	case errors.Is(err, statestore.ErrEntryNotFound):
		return newProblem(http.StatusNotFound, "entry-not-found", "Queue entry not found", err.Error(), instance)
	case errors.Is(err, statestore.ErrTenantNotFound):
		return newProblem(http.StatusNotFound, "tenant-not-found", "Tenant not found", err.Error(), instance)
	case errors.Is(err, auth.ErrExpired):
		return newProblem(http.StatusUnauthorized, "token-expired", "Subscription token expired", err.Error(), instance)
	case errors.Is(err, auth.ErrWrongAudience), errors.Is(err, auth.ErrBadSignature), errors.Is(err, auth.ErrMalformedToken):
		return newProblem(http.StatusUnauthorized, "invalid-token", "Subscription token rejected", err.Error(), instance)
	default:
		slog.Error("api: unexpected error", "error", err, "instance", instance)
		return newProblem(http.StatusInternalServerError, "internal", "Internal server error", "", instance)
	}
}

// invalidArgument builds a 400 invalid_argument Problem for request-shape
// failures that never reach a service/storage error (missing fields, bad
// JSON, unparseable headers).
func invalidArgument(detail, instance string) *Problem {
	return newProblem(http.StatusBadRequest, "invalid-argument", "Invalid request", detail, instance)
}

// unprocessable builds a 422 Problem for a syntactically valid request this
// server still can't act on (e.g. an unknown command/patch variant on the
// wire, rejected rather than guessed at).
func unprocessable(detail, instance string) *Problem {
	return newProblem(http.StatusUnprocessableEntity, "invalid-payload", "Unprocessable request", detail, instance)
}

// unauthorized builds a 401 Problem for a missing/invalid admin credential.
func unauthorized(detail, instance string) *Problem {
	return newProblem(http.StatusUnauthorized, "unauthorized", "Authentication required", detail, instance)
}
