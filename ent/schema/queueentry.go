package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// QueueEntry holds the schema definition for a single channel-point
// redemption's slot in the overlay queue.
type QueueEntry struct {
	ent.Schema
}

// Fields of the QueueEntry.
func (QueueEntry) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("tenant_id").
			Immutable(),
		field.String("user_id").
			Immutable(),
		field.String("user_login").
			Immutable(),
		field.String("user_display").
			Immutable(),
		field.String("user_avatar").
			Optional().
			Immutable(),
		field.String("reward_id").
			Immutable(),
		field.String("redemption_id").
			Optional().
			Nillable().
			Immutable(),
		field.Time("enqueued_at").
			Immutable(),
		field.Enum("status").
			Values("QUEUED", "COMPLETED", "REMOVED"),
		field.Enum("status_reason").
			Values("", "UNDO", "STREAM_START_CLEAR", "EXPLICIT_REMOVE").
			Default(""),
		field.Bool("managed").
			Default(false),
		field.Time("last_updated_at"),
	}
}

// Edges of the QueueEntry.
func (QueueEntry) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("tenant", Tenant.Type).
			Ref("queue_entries").
			Unique().
			Required(),
	}
}

// Indexes of the QueueEntry.
func (QueueEntry) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "redemption_id").
			Unique().
			Annotations(entsql.IndexWhere("redemption_id IS NOT NULL")),
		index.Fields("tenant_id", "status"),
	}
}
