package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/broadcastqueue/eventsubd/pkg/auth"
	"github.com/broadcastqueue/eventsubd/pkg/domain"
	"github.com/broadcastqueue/eventsubd/pkg/sse"
)

// overlaySSEHandler handles GET /overlay/sse, scoped to the overlay
// audience.
func (s *Server) overlaySSEHandler(c *echo.Context) error {
	return s.serveSSE(c, auth.AudienceOverlay)
}

// adminSSEHandler handles GET /admin/sse, scoped to the admin audience.
func (s *Server) adminSSEHandler(c *echo.Context) error {
	return s.serveSSE(c, auth.AudienceAdmin)
}

// serveSSE authenticates the subscription token, opens a Hub subscription,
// and streams patches as text/event-stream frames until the client
// disconnects, writing a heartbeat on every idle tick (cfg.SSEHeartbeat,
// default 25s, keeps intermediaries from closing the connection).
func (s *Server) serveSSE(c *echo.Context, aud auth.Audience) error {
	req := c.Request()
	instance := req.URL.Path

	tenant := c.QueryParam("tenant")
	token := c.QueryParam("token")
	if tenant == "" || token == "" {
		return writeProblem(c, invalidArgument("tenant and token are required", instance))
	}

	scopedTenant, err := auth.Verify(token, s.sseSigningKey, aud, s.clock.Now())
	if err != nil {
		return writeProblem(c, problemError(err, instance))
	}
	if scopedTenant != tenant {
		return writeProblem(c, unauthorized("token not valid for this tenant", instance))
	}

	sinceVersion := int64(0)
	if raw := c.QueryParam("since_version"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return writeProblem(c, invalidArgument("since_version must be an integer", instance))
		}
		sinceVersion = v
	}
	if raw := req.Header.Get("Last-Event-ID"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			sinceVersion = v
		}
	}

	var typeFamilies map[string]bool
	if raw := c.QueryParam("types"); raw != "" {
		typeFamilies = make(map[string]bool)
		for _, t := range strings.Split(raw, ",") {
			typeFamilies[strings.TrimSpace(t)] = true
		}
	}

	if s.listener != nil {
		if err := s.listener.Subscribe(req.Context(), tenant); err != nil {
			return writeProblem(c, problemError(err, instance))
		}
	}

	sub, err := s.hub.Subscribe(req.Context(), tenant, sinceVersion)
	if err != nil {
		return writeProblem(c, problemError(err, instance))
	}
	defer sub.Close()

	resp := c.Response()
	resp.Header().Set("Content-Type", "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	writer := sse.NewWriter(resp, resp)

	ticker := time.NewTicker(s.cfg.SSEHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-req.Context().Done():
			return nil
		case p, ok := <-sub.Patches:
			if !ok {
				return nil
			}
			if !patchMatchesFamilies(p, typeFamilies) {
				continue
			}
			if err := writer.WritePatch(p); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := writer.WriteHeartbeat(); err != nil {
				return nil
			}
		}
	}
}

// patchMatchesFamilies reports whether p should be delivered given the
// client's ?types= coarse family filter. A nil/empty filter matches
// everything; state.replace always bypasses the filter since a client can't
// reconcile its state without it.
func patchMatchesFamilies(p domain.Patch, families map[string]bool) bool {
	if len(families) == 0 || p.Type == domain.PatchStateReplace {
		return true
	}
	return families[p.Type.Family()]
}
