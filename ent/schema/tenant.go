package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Tenant holds the schema definition for the Tenant entity. Kept as
// logical-schema reference only (see DESIGN.md): rows are created
// out-of-band, this repository only ever reads tenants, never writes one.
type Tenant struct {
	ent.Schema
}

// Fields of the Tenant.
func (Tenant) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable().
			Comment("External tenant identifier"),
		field.String("timezone").
			Default("UTC").
			Comment("IANA timezone name used to compute the tenant-local day boundary"),
		field.JSON("settings", map[string]interface{}{}).
			Optional().
			Comment("Settings, field-wise patchable via MergeSettings"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Tenant.
func (Tenant) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("events", EventRecord.Type),
		edge.To("queue_entries", QueueEntry.Type),
		edge.To("command_log", CommandLogEntry.Type),
		edge.To("stream_sessions", StreamSession.Type),
		edge.To("version_index", VersionIndex.Type).
			Unique(),
		edge.To("daily_counters", DailyCounter.Type),
	}
}
