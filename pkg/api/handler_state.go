package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// getStateHandler handles GET /api/state?tenant=…&scope=session|since[&since=…].
// scope=session/since both currently resolve to the same full projection
// read — the State Store has no separate "since a given instant" query, and
// pruning never moves current_version, so a fresh Snapshot is always a
// superset of what an older "since" cursor would have returned.
func (s *Server) getStateHandler(c *echo.Context) error {
	instance := c.Request().URL.Path
	tenant := c.QueryParam("tenant")
	if tenant == "" {
		return writeProblem(c, invalidArgument("tenant is required", instance))
	}
	scope := c.QueryParam("scope")
	if scope == "" {
		scope = "session"
	}
	if scope != "session" && scope != "since" {
		return writeProblem(c, invalidArgument("scope must be session or since", instance))
	}
	if scope == "since" && c.QueryParam("since") == "" {
		return writeProblem(c, invalidArgument("since is required when scope=since", instance))
	}

	snapshot, err := s.states.Snapshot(c.Request().Context(), tenant)
	if err != nil {
		return writeProblem(c, problemError(err, instance))
	}

	return c.JSON(http.StatusOK, snapshot)
}
