package probe

import (
	"context"
	"fmt"

	"github.com/netmedic/netmedic/pkg/models"
	"github.com/netmedic/netmedic/pkg/tools"
)

// RegisterAll wires every probe supported on this host into the registry.
// Registration is explicit and happens once at startup; nothing here
// touches global state.
func RegisterAll(registry *tools.Registry, rt *Runtime) error {
	for _, p := range rt.Probes() {
		def := models.ToolDefinition{
			Name:        p.Name,
			Description: p.Description,
			Parameters:  p.Parameters,
		}
		name := p.Name
		handler := func(ctx context.Context, args map[string]any) (*models.ProbeResult, error) {
			return rt.Run(ctx, name, args)
		}
		if err := registry.Register(def, handler); err != nil {
			return fmt.Errorf("register probe %s: %w", name, err)
		}
	}
	return nil
}

// ActionProbeNames returns the names of the state-changing probes usable
// on this host. The protocol layer treats these as triggers for
// post-action verification.
func (r *Runtime) ActionProbeNames() []string {
	var names []string
	for _, p := range r.Probes() {
		if p.Action {
			names = append(names, p.Name)
		}
	}
	return names
}
