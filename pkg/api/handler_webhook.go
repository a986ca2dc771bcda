package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
	"github.com/broadcastqueue/eventsubd/pkg/eventstore"
	"github.com/broadcastqueue/eventsubd/pkg/normalize"
	"github.com/broadcastqueue/eventsubd/pkg/policy"
	"github.com/broadcastqueue/eventsubd/pkg/statestore"
	"github.com/broadcastqueue/eventsubd/pkg/tap"
	"github.com/broadcastqueue/eventsubd/pkg/webhook"
)

const (
	headerMessageID   = "Twitch-Eventsub-Message-Id"
	headerTimestamp   = "Twitch-Eventsub-Message-Timestamp"
	headerSignature   = "Twitch-Eventsub-Message-Signature"
	headerMessageType = "Twitch-Eventsub-Message-Type"

	messageTypeVerification = "webhook_callback_verification"
	messageTypeNotification = "notification"
	messageTypeRevocation   = "revocation"
)

// envelope is the subset of Twitch's EventSub wire format this handler
// parses directly; everything domain-specific is left to pkg/normalize.
type envelope struct {
	Challenge    string `json:"challenge"`
	Subscription struct {
		Type      string `json:"type"`
		Condition struct {
			BroadcasterUserID string `json:"broadcaster_user_id"`
		} `json:"condition"`
	} `json:"subscription"`
	Event map[string]any `json:"event"`
}

// webhookHandler handles POST /eventsub/webhook. It verifies the
// request, durably records it, and acknowledges before the pipeline runs to
// completion: a storage failure before the Event Record is durable is the
// only failure that withholds acknowledgement (Twitch will retry).
func (s *Server) webhookHandler(c *echo.Context) error {
	req := c.Request()
	instance := req.URL.Path

	messageID := req.Header.Get(headerMessageID)
	timestampRaw := req.Header.Get(headerTimestamp)
	signature := req.Header.Get(headerSignature)
	messageType := req.Header.Get(headerMessageType)
	if messageID == "" || timestampRaw == "" || signature == "" || messageType == "" {
		return writeProblem(c, invalidArgument("missing required Twitch-Eventsub-Message-* header", instance))
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return writeProblem(c, invalidArgument("failed to read request body", instance))
	}

	timestamp, err := time.Parse(time.RFC3339, timestampRaw)
	if err != nil {
		return writeProblem(c, invalidArgument("invalid message-timestamp", instance))
	}

	now := s.clock.Now()
	if err := webhook.Verify(webhook.Notification{
		MessageID:    messageID,
		TimestampRaw: timestampRaw,
		Timestamp:    timestamp,
		Signature:    signature,
		Body:         body,
	}, s.webhookKey, now); err != nil {
		return writeProblem(c, problemError(err, instance))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return writeProblem(c, invalidArgument("invalid JSON body", instance))
	}

	s.publishTap(tap.StageEvent{
		Timestamp: now,
		Stage:     tap.StageIngress,
		TraceID:   s.ids.New(),
		Tenant:    env.Subscription.Condition.BroadcasterUserID,
		Meta:      map[string]string{"message_type": messageType, "subscription_type": env.Subscription.Type},
	}, string(body), "")

	if messageType == messageTypeVerification {
		return c.String(http.StatusOK, env.Challenge)
	}

	tenant := env.Subscription.Condition.BroadcasterUserID

	_, err = s.events.Insert(c.Request().Context(), domain.EventRecord{
		Tenant:            tenant,
		ExternalMessageID: messageID,
		Type:              env.Subscription.Type,
		RawPayload:        body,
		EventTime:         timestamp,
		ReceivedAt:        now,
	})
	if err != nil {
		if errors.Is(err, eventstore.ErrDuplicateMessage) {
			return c.NoContent(http.StatusNoContent)
		}
		return writeProblem(c, problemError(err, instance))
	}

	if messageType == messageTypeNotification {
		go s.runPipeline(context.WithoutCancel(c.Request().Context()), tenant, messageID, env, timestamp, now)
	}

	return c.NoContent(http.StatusNoContent)
}

// runPipeline normalizes, evaluates, and executes one notification
// asynchronously, after the webhook ack has already been sent. Failures
// downstream of the ack never un-acknowledge the webhook; they're logged
// and observable via the tap instead.
func (s *Server) runPipeline(ctx context.Context, tenant, messageID string, env envelope, eventTime, receivedAt time.Time) {
	traceID := s.ids.New()

	raw := domain.RawNotification{
		SubscriptionType: env.Subscription.Type,
		Tenant:           tenant,
		MessageID:        messageID,
		EventTime:        eventTime,
		Event:            env.Event,
	}

	normalized, err := normalize.Normalize(raw)
	if err != nil {
		slog.Warn("pipeline: normalize failed", "tenant", tenant, "trace_id", traceID, "error", err)
		return
	}
	s.publishTapJSON(tap.StageEvent{Timestamp: receivedAt, Stage: tap.StageNormalizer, TraceID: traceID, Tenant: tenant}, raw, normalized)

	if normalized.Type == domain.EventNoOp {
		return
	}

	settings, err := s.states.GetSettings(ctx, tenant)
	if err != nil {
		slog.Error("pipeline: load settings failed", "tenant", tenant, "trace_id", traceID, "error", err)
		return
	}
	tz, err := s.states.Timezone(ctx, tenant)
	if err != nil {
		slog.Error("pipeline: load timezone failed", "tenant", tenant, "trace_id", traceID, "error", err)
		return
	}
	day := statestore.TenantDay(eventTime, tz)
	activity, err := s.states.BuildActivity(ctx, tenant, day, eventTime.Add(-time.Duration(settings.Policy.AntiSpamWindowSec)*time.Second))
	if err != nil {
		slog.Error("pipeline: build activity failed", "tenant", tenant, "trace_id", traceID, "error", err)
		return
	}

	commands := policy.Evaluate(normalized, settings, activity)
	s.publishTapJSON(tap.StageEvent{Timestamp: s.clock.Now(), Stage: tap.StagePolicy, TraceID: traceID, Tenant: tenant}, normalized, commands)
	if len(commands) == 0 {
		return
	}

	if _, err := s.exec.Execute(ctx, tenant, commands, ""); err != nil {
		slog.Error("pipeline: execute failed", "tenant", tenant, "trace_id", traceID, "error", err)
		s.publishTap(tap.StageEvent{Timestamp: s.clock.Now(), Stage: tap.StageCommand, TraceID: traceID, Tenant: tenant}, "", fmt.Sprintf("execute failed: %v", err))
	}
}

// publishTap is a thin wrapper fixing In/Out on a StageEvent before
// forwarding to the Tap, so handlers don't repeat the field assignment.
func (s *Server) publishTap(ev tap.StageEvent, in, out string) {
	ev.In = in
	ev.Out = out
	s.tap.Publish(ev)
}

// publishTapJSON marshals in/out to JSON for the Tap's In/Out fields.
func (s *Server) publishTapJSON(ev tap.StageEvent, in, out any) {
	tap.PublishJSON(s.tap, ev, in, out)
}
