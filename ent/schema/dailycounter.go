package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// DailyCounter holds the schema definition for a tenant-local per-user,
// per-day redemption counter, keyed on the tenant-local "day" string
// computed by pkg/statestore.TenantDay.
type DailyCounter struct {
	ent.Schema
}

// Fields of the DailyCounter.
func (DailyCounter) Fields() []ent.Field {
	return []ent.Field{
		field.String("tenant_id").
			Immutable(),
		field.String("day").
			Immutable().
			Comment("Tenant-local calendar day, YYYY-MM-DD"),
		field.String("user_id").
			Immutable(),
		field.Int("count").
			Default(0),
	}
}

// Edges of the DailyCounter.
func (DailyCounter) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("tenant", Tenant.Type).
			Ref("daily_counters").
			Unique().
			Required(),
	}
}

// Indexes of the DailyCounter.
func (DailyCounter) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "day", "user_id").
			Unique(),
	}
}
