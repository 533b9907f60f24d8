package bus

import "context"

const (
	EventDefinitionUpdated = "definition.updated"
	EventDefinitionEvicted = "definition.evicted"
)

// Event tells peer instances that a cached definition is stale.
type Event struct {
	Type         string `json:"type"`
	DefinitionID string `json:"definition_id"`
	// Origin is the publishing instance; receivers skip their own events.
	Origin string `json:"origin,omitempty"`
}

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	StartForwarder(ctx context.Context, onEvent func(ev Event)) error
	Close() error
}
