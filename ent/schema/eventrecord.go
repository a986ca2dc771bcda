package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// EventRecord holds the schema definition for the append-only Event Store
// entity: the raw, durable record of one inbound webhook notification.
type EventRecord struct {
	ent.Schema
}

// Fields of the EventRecord.
func (EventRecord) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id").
			Immutable(),
		field.String("tenant_id").
			Immutable(),
		field.String("external_message_id").
			Immutable().
			Comment("Twitch's message id; unique across all tenants, enforces idempotent ingest"),
		field.String("type").
			Immutable().
			Comment("Subscription type, e.g. channel_points_custom_reward_redemption.add"),
		field.JSON("raw_payload", []byte{}).
			Immutable(),
		field.Time("event_time").
			Immutable(),
		field.Time("received_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the EventRecord.
func (EventRecord) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("tenant", Tenant.Type).
			Ref("events").
			Unique().
			Required(),
	}
}

// Indexes of the EventRecord.
func (EventRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("external_message_id").
			Unique(),
		index.Fields("tenant_id", "received_at"),
	}
}
