package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// StreamSession holds the schema definition for the open/closed boundary
// used to scope a tenant's "today" and stream-start/offline commands.
// At most one session may be open (ended_at IS NULL) per tenant.
type StreamSession struct {
	ent.Schema
}

// Fields of the StreamSession.
func (StreamSession) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id").
			Immutable(),
		field.String("tenant_id").
			Immutable(),
		field.Time("started_at").
			Immutable(),
		field.Time("ended_at").
			Optional().
			Nillable(),
	}
}

// Edges of the StreamSession.
func (StreamSession) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("tenant", Tenant.Type).
			Ref("stream_sessions").
			Unique().
			Required(),
	}
}

// Indexes of the StreamSession.
func (StreamSession) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id").
			Unique().
			Annotations(entsql.IndexWhere("ended_at IS NULL")),
	}
}
