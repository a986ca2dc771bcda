package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// VersionIndex holds the schema definition for the `(tenant) ->
// current_version` index the Command Executor bumps under the same
// transaction as each command log append.
type VersionIndex struct {
	ent.Schema
}

// Fields of the VersionIndex.
func (VersionIndex) Fields() []ent.Field {
	return []ent.Field{
		field.String("tenant_id").
			Unique().
			Immutable(),
		field.Int64("current_version").
			Default(0),
	}
}

// Edges of the VersionIndex.
func (VersionIndex) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("tenant", Tenant.Type).
			Ref("version_index").
			Unique().
			Required(),
	}
}
