package e2e

import (
	"context"
	"fmt"

	"github.com/netmedic/netmedic/pkg/models"
	"github.com/netmedic/netmedic/pkg/tools"
)

// stubToolDefinitions returns the synthetic diagnostic tool set the
// harness registers. Names and data fields mirror the real probes so the
// default stop conditions and the verification policy apply unchanged.
func stubToolDefinitions() []models.ToolDefinition {
	return []models.ToolDefinition{
		{Name: "check_adapter_status", Description: "List network adapters and their link state."},
		{Name: "get_ip_config", Description: "Read the host's IPv4 address and default gateway."},
		{Name: "ping_gateway", Description: "Ping the default gateway.",
			Parameters: []models.ToolParameter{
				{Name: "gateway", Type: models.ParamString, Description: "Gateway IPv4 address."},
			}},
		{Name: "ping_dns", Description: "Ping 8.8.8.8 to test raw internet reachability."},
		{Name: "test_dns_resolution", Description: "Resolve a hostname to check the DNS path.",
			Parameters: []models.ToolParameter{
				{Name: "domain", Type: models.ParamString, Default: "google.com", Description: "Hostname to resolve."},
			}},
		{Name: "enable_wifi", Description: "Turn the Wi-Fi radio on."},
	}
}

// healthyData holds the canned all-is-well results, keyed by tool name.
var healthyData = map[string]func() map[string]any{
	"check_adapter_status": func() map[string]any {
		return map[string]any{"connected_count": 1, "adapter_count": 2}
	},
	"get_ip_config": func() map[string]any {
		return map[string]any{"has_valid_ip": true, "is_apipa": false, "ip_address": "192.168.1.52", "gateway": "192.168.1.1"}
	},
	"ping_gateway": func() map[string]any {
		return map[string]any{"reachable": true, "target": "192.168.1.1", "packet_loss_percent": 0, "avg_latency_ms": 1.8}
	},
	"ping_dns": func() map[string]any {
		return map[string]any{"internet_accessible": true, "target": "8.8.8.8", "packet_loss_percent": 0, "avg_latency_ms": 14.2}
	},
	"test_dns_resolution": func() map[string]any {
		return map[string]any{"dns_working": true, "domain": "google.com", "resolved_ip": "142.250.185.78"}
	},
	"enable_wifi": func() map[string]any {
		return map[string]any{"previous_state": "off", "current_state": "on", "changed": true}
	},
}

// healthyHandler returns the canned healthy handler for one stub tool.
func healthyHandler(name string) tools.Handler {
	data, ok := healthyData[name]
	if !ok {
		panic(fmt.Sprintf("no canned result for tool %q", name))
	}
	return func(context.Context, map[string]any) (*models.ProbeResult, error) {
		return &models.ProbeResult{Success: true, Data: data()}, nil
	}
}

// StaticHandler returns a handler that always produces the given result.
func StaticHandler(res models.ProbeResult) tools.Handler {
	return func(context.Context, map[string]any) (*models.ProbeResult, error) {
		out := res
		return &out, nil
	}
}

// BlockingHandler returns a handler that sends on started and then
// blocks until the dispatch context is cancelled. started must be
// buffered or actively read.
func BlockingHandler(started chan<- struct{}) tools.Handler {
	return func(ctx context.Context, _ map[string]any) (*models.ProbeResult, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
}
