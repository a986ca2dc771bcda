package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// CommandLogEntry holds the schema definition for one applied Command at a
// specific per-tenant version — the append-only Command Log.
type CommandLogEntry struct {
	ent.Schema
}

// Fields of the CommandLogEntry.
func (CommandLogEntry) Fields() []ent.Field {
	return []ent.Field{
		field.String("tenant_id").
			Immutable(),
		field.Int64("version").
			Immutable().
			Comment("Monotonic per-tenant sequence, assigned by AppendNext under version_index"),
		field.String("op_id").
			Optional().
			Nillable().
			Immutable().
			Comment("Client idempotency key for admin-originated commands; empty for policy-originated ones"),
		field.String("type").
			Immutable(),
		field.JSON("payload", []byte{}).
			Immutable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the CommandLogEntry.
func (CommandLogEntry) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("tenant", Tenant.Type).
			Ref("command_log").
			Unique().
			Required(),
	}
}

// Indexes of the CommandLogEntry.
func (CommandLogEntry) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "version").
			Unique(),
		index.Fields("tenant_id", "op_id").
			Unique().
			Annotations(entsql.IndexWhere("op_id IS NOT NULL")),
	}
}
