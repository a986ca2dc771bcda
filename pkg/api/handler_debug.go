package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	echo "github.com/labstack/echo/v5"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
	"github.com/broadcastqueue/eventsubd/pkg/replay"
	"github.com/broadcastqueue/eventsubd/pkg/tap"
)

// ndjsonSink streams StageEvents to an HTTP response body as newline-
// delimited JSON, one object per pipeline stage observation, for as long as
// the client keeps the connection open — capture start/stop is simply
// opening and closing this connection.
type ndjsonSink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (n *ndjsonSink) Accept(ev tap.StageEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	n.w.Write(body)
	n.w.WriteByte('\n')
	n.w.Flush()
}

// debugTapHandler handles GET /debug/tap. Every captured StageEvent, across
// every tenant, is streamed until the client disconnects.
func (s *Server) debugTapHandler(c *echo.Context) error {
	resp := c.Response()
	resp.Header().Set("Content-Type", "application/x-ndjson")
	resp.WriteHeader(http.StatusOK)

	sink := &ndjsonSink{w: bufio.NewWriter(resp)}
	name := fmt.Sprintf("debug-tap-%s", c.Request().RemoteAddr)
	s.tap.AddSink(name, sink)
	defer s.tap.RemoveSink(name)

	<-c.Request().Context().Done()
	return nil
}

// debugReplayRequest is the body of POST /debug/replay: a captured
// StageNormalizer stream plus the tenant's Settings at the start of the
// capture window — Replay needs a starting point it can't derive from the
// command stream alone.
type debugReplayRequest struct {
	Tenant  string           `json:"tenant"`
	Initial domain.Settings  `json:"initial_settings"`
	Records []tap.StageEvent `json:"records"`
}

// debugReplayHandler handles POST /debug/replay, reconstructing a tenant's
// final state by replaying a captured StageNormalizer stream purely in
// memory. It never calls s.states/s.exec/s.events — only pkg/replay — so the
// durable store is guaranteed untouched.
func (s *Server) debugReplayHandler(c *echo.Context) error {
	instance := c.Request().URL.Path

	var req debugReplayRequest
	if err := c.Bind(&req); err != nil {
		return writeProblem(c, invalidArgument(err.Error(), instance))
	}
	if req.Tenant == "" {
		return writeProblem(c, invalidArgument("tenant is required", instance))
	}

	final, err := replay.Replay(req.Tenant, req.Records, req.Initial)
	if err != nil {
		return writeProblem(c, unprocessable(err.Error(), instance))
	}

	return c.JSON(http.StatusOK, final)
}
