package probe

import (
	"strconv"
	"strings"

	"github.com/netmedic/netmedic/pkg/models"
)

func systemProbes() []*Probe {
	return []*Probe{
		{
			Name: "get_system_info",
			Description: "Read hostname, OS version, and uptime. " +
				"CALL WHEN you need to identify the machine or its OS release while explaining a finding. " +
				"DO NOT CALL IF the information is already in the conversation. " +
				"OUTPUT MEANING: purely informational; it never indicates a fault by itself.",
			Commands: map[string]string{
				PlatformMacOS:   "hostname; sw_vers -productVersion; uptime",
				PlatformLinux:   "hostname; uname -sr; uptime",
				PlatformWindows: "hostname && ver",
			},
			Parse: parseSystemInfo,
		},
		{
			Name: "list_processes",
			Description: "List the top processes by CPU usage. " +
				"CALL WHEN the user reports slowness, or before kill_process to find the exact process name. " +
				"DO NOT CALL IF the problem is clearly network-side only. " +
				"OUTPUT MEANING: each entry is pid, cpu percent, and name; pass the name field to kill_process.",
			Parameters: []models.ToolParameter{
				{Name: "limit", Type: models.ParamInteger, Required: false, Default: 10,
					Description: "How many processes to return. Defaults to 10."},
			},
			Commands: map[string]string{
				PlatformMacOS:   "ps -Aco pid=,pcpu=,comm= -r | head -n {{limit}}",
				PlatformLinux:   "ps -eo pid=,pcpu=,comm= --sort=-pcpu | head -n {{limit}}",
				PlatformWindows: `powershell -NoProfile -Command "Get-Process | Sort-Object CPU -Descending | Select-Object -First {{limit}} Id,CPU,ProcessName | Format-Table -HideTableHeaders"`,
			},
			Parse: parseProcessList,
		},
	}
}

func parseSystemInfo(platform string, _ map[string]any, out CommandOutput) *models.ProbeResult {
	var lines []string
	for _, line := range strings.Split(out.Stdout, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	data := map[string]any{}
	if len(lines) > 0 {
		data["hostname"] = lines[0]
	}
	if len(lines) > 1 {
		data["os_version"] = lines[1]
	}
	if platform != PlatformWindows && len(lines) > 2 {
		data["uptime"] = lines[2]
	}

	return &models.ProbeResult{
		Success: out.ExitCode == 0 && len(lines) > 0,
		Data:    data,
	}
}

// parseProcessList handles both column layouts: "pid pcpu comm" on unix
// and "Id CPU ProcessName" from powershell. Both are pid-number-name.
func parseProcessList(_ string, _ map[string]any, out CommandOutput) *models.ProbeResult {
	var processes []map[string]any
	for _, line := range strings.Split(out.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		cpu, _ := strconv.ParseFloat(fields[1], 64)
		processes = append(processes, map[string]any{
			"pid":  pid,
			"cpu":  cpu,
			"name": strings.Join(fields[2:], " "),
		})
	}

	return &models.ProbeResult{
		Success: out.ExitCode == 0,
		Data: map[string]any{
			"count":     len(processes),
			"processes": processes,
		},
	}
}
