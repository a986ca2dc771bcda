package sse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

// channelName returns the PostgreSQL NOTIFY channel used for a tenant's
// committed patches. Sanitized via pgx.Identifier at LISTEN time.
func channelName(tenant string) string {
	return "eventsubd_patches_" + tenant
}

// Notify publishes patches on the tenant's channel from within the same
// database transaction that appended them to the command log, so NOTIFY only
// fires if the transaction commits. tx is the *sql.Tx the Command Executor
// is already holding.
func Notify(ctx context.Context, tx *sql.Tx, tenant string, patches []domain.Patch) error {
	for _, p := range patches {
		payload, err := json.Marshal(wirePatch{
			Tenant:  p.Tenant,
			Version: p.Version,
			Type:    string(p.Type),
			At:      p.At,
			Data:    p.Data,
		})
		if err != nil {
			return fmt.Errorf("sse: marshal patch for notify: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channelName(tenant), string(payload)); err != nil {
			return fmt.Errorf("sse: pg_notify: %w", err)
		}
	}
	return nil
}

type wirePatch struct {
	Tenant  string      `json:"tenant"`
	Version int64       `json:"version"`
	Type    string      `json:"type"`
	At      time.Time   `json:"at"`
	Data    interface{} `json:"data"`
}

// PgListener receives cross-process NOTIFY deliveries on a dedicated pgx
// connection and re-broadcasts them through the local Hub, so subscribers
// connected to a different replica than the one that ran the Command
// Executor still receive every patch in order. Adapted from the teacher's
// NotifyListener, simplified to one command type: this process either
// LISTENs on a tenant channel (because it has a local subscriber) or it
// doesn't.
type PgListener struct {
	connString string
	hub        *Hub

	mu       sync.Mutex
	conn     *pgx.Conn
	channels map[string]bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPgListener constructs a listener that will forward NOTIFY payloads into hub.
func NewPgListener(connString string, hub *Hub) *PgListener {
	return &PgListener{
		connString: connString,
		hub:        hub,
		channels:   make(map[string]bool),
	}
}

// Start opens the dedicated LISTEN connection and begins the receive loop.
func (l *PgListener) Start(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return fmt.Errorf("sse: connect for LISTEN: %w", err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		l.receiveLoop(loopCtx)
	}()
	return nil
}

// Stop cancels the receive loop and closes the dedicated connection.
func (l *PgListener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	if l.done != nil {
		<-l.done
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close(context.Background())
	}
}

// Subscribe issues LISTEN for tenant's channel if not already active.
func (l *PgListener) Subscribe(ctx context.Context, tenant string) error {
	name := channelName(tenant)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.channels[name] {
		return nil
	}
	sanitized := pgx.Identifier{name}.Sanitize()
	if _, err := l.conn.Exec(ctx, "LISTEN "+sanitized); err != nil {
		return fmt.Errorf("sse: LISTEN %s: %w", name, err)
	}
	l.channels[name] = true
	return nil
}

func (l *PgListener) receiveLoop(ctx context.Context) {
	for {
		l.mu.Lock()
		conn := l.conn
		l.mu.Unlock()

		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("sse: wait for notification failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		var p wirePatch
		if err := json.Unmarshal([]byte(notification.Payload), &p); err != nil {
			slog.Error("sse: invalid notify payload", "channel", notification.Channel, "error", err)
			continue
		}

		l.hub.ingestRemote(p.Tenant, domain.Patch{
			Tenant:  p.Tenant,
			Version: p.Version,
			Type:    domain.PatchType(p.Type),
			At:      p.At,
			Data:    p.Data,
		})
	}
}
