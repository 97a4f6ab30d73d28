// Package tools owns the authoritative tool set: the definitions shown to
// the model and the dispatch handlers the loop calls. Every failure mode
// of dispatch (unknown tool, bad arguments, handler error, panic) is
// returned as an error-shaped ToolResult, never as a Go error, so the
// model always sees something it can react to.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/netmedic/netmedic/pkg/models"
)

// Handler executes a tool and returns its structured outcome.
type Handler func(ctx context.Context, args map[string]any) (*models.ProbeResult, error)

// Registry maps tool names to definitions and handlers. Registration
// happens once at startup; after that the registry is read-only and safe
// for concurrent dispatch.
type Registry struct {
	platform string
	tools    map[string]*entry
	order    []string
}

type entry struct {
	def     models.ToolDefinition
	handler Handler
}

// NewRegistry creates an empty registry. The platform string appears in
// rendered results, including registry-level failures.
func NewRegistry(platform string) *Registry {
	return &Registry{
		platform: platform,
		tools:    make(map[string]*entry),
	}
}

// Register adds a tool. Duplicate names are an error.
func (r *Registry) Register(def models.ToolDefinition, handler Handler) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool %q has no handler", def.Name)
	}
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %q is already registered", def.Name)
	}
	r.tools[def.Name] = &entry{def: def, handler: handler}
	r.order = append(r.order, def.Name)
	return nil
}

// Definitions returns all tool definitions in registration order.
func (r *Registry) Definitions() []models.ToolDefinition {
	defs := make([]models.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }

// Execute dispatches a tool request.
//
// Flow:
//  1. Resolve the tool name.
//  2. Validate and coerce arguments against the definition.
//  3. Run the handler (panics are captured).
//  4. Render the structured result into model-facing content.
func (r *Registry) Execute(ctx context.Context, req models.ToolRequest) models.ToolResult {
	start := time.Now()

	ent, ok := r.tools[req.Name]
	if !ok {
		return r.errorResult(req, start, fmt.Sprintf("unknown tool %q", req.Name))
	}

	args, err := normalizeArgs(ent.def, req.Arguments)
	if err != nil {
		return r.errorResult(req, start, fmt.Sprintf("invalid arguments: %s", err))
	}

	res, err := r.runHandler(ctx, ent.handler, args)
	if err != nil {
		return r.errorResult(req, start, err.Error())
	}
	if res == nil {
		return r.errorResult(req, start, "tool returned no result")
	}

	return models.ToolResult{
		CallID:     req.CallID,
		Name:       req.Name,
		Content:    RenderResult(req.Name, res),
		Success:    res.Success,
		DurationMs: time.Since(start).Milliseconds(),
		Error:      res.Error,
	}
}

// runHandler isolates handler panics so a buggy probe cannot take the
// loop down with it.
func (r *Registry) runHandler(ctx context.Context, handler Handler, args map[string]any) (res *models.ProbeResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = fmt.Errorf("tool panicked: %v", rec)
		}
	}()
	return handler(ctx, args)
}

func (r *Registry) errorResult(req models.ToolRequest, start time.Time, message string) models.ToolResult {
	rendered := RenderResult(req.Name, &models.ProbeResult{
		Success:  false,
		Data:     map[string]any{},
		Error:    message,
		Platform: r.platform,
	})
	return models.ToolResult{
		CallID:     req.CallID,
		Name:       req.Name,
		Content:    rendered,
		Success:    false,
		DurationMs: time.Since(start).Milliseconds(),
		Error:      message,
	}
}
