package probe

import (
	"regexp"
	"strings"
	"time"

	"github.com/netmedic/netmedic/pkg/models"
)

// protectedProcesses are targets kill_process refuses per platform.
// Names are compared case-insensitively with any .exe suffix stripped.
var protectedProcesses = map[string][]string{
	PlatformMacOS:   {"launchd", "kernel_task", "windowserver", "loginwindow"},
	PlatformLinux:   {"init", "systemd", "kthreadd", "xorg", "xwayland", "gnome-shell"},
	PlatformWindows: {"system", "smss", "csrss", "wininit", "winlogon", "services", "lsass", "svchost", "dwm", "explorer"},
}

func actionProbes() []*Probe {
	return []*Probe{
		{
			Name: "enable_wifi",
			Description: "Turn the Wi-Fi radio on. " +
				"CALL WHEN check_adapter_status shows no connected adapter and the machine has wireless hardware. " +
				"DO NOT CALL IF an adapter is already connected; there is nothing to enable. " +
				"OUTPUT MEANING: previous_state and current_state show the radio before and after; " +
				"changed false with current_state off usually means the change needs administrator rights.",
			Action: true,
			Commands: map[string]string{
				PlatformMacOS:   "networksetup -getairportpower en0; networksetup -setairportpower en0 on; networksetup -getairportpower en0",
				PlatformLinux:   "nmcli radio wifi; nmcli radio wifi on; nmcli radio wifi",
				PlatformWindows: `netsh interface show interface name="Wi-Fi" & netsh interface set interface name="Wi-Fi" admin=enable & netsh interface show interface name="Wi-Fi"`,
			},
			Parse: parseEnableWifi,
		},
		{
			Name: "kill_process",
			Description: "Terminate a process by name. " +
				"CALL WHEN a specific process is hung or eating the CPU and the user agreed to stop it; " +
				"take the exact name from list_processes. " +
				"DO NOT CALL IF the target is a system process; protected names are refused. " +
				"OUTPUT MEANING: terminated true means at least one matching process was signalled; " +
				"a protected refusal lists the blocked name under blocked.",
			Parameters: []models.ToolParameter{
				{Name: "name", Type: models.ParamString, Required: true,
					Description: "Process name to terminate, as shown by list_processes."},
			},
			Action: true,
			Before: blockProtectedTargets,
			Commands: map[string]string{
				PlatformMacOS:   "pkill -x {{name}}",
				PlatformLinux:   "pkill -x {{name}}",
				PlatformWindows: "taskkill /IM {{name}} /F",
			},
			Parse: parseKillProcess,
		},
		{
			Name: "run_dism_sfc",
			Description: "Scan Windows component store and system file integrity (DISM then SFC). " +
				"CALL WHEN Windows misbehaves in ways that suggest corrupted system files. " +
				"DO NOT CALL IF the problem is plainly network-side; this is a slow, Windows-only scan. " +
				"OUTPUT MEANING: current_state healthy means no corruption; repaired means fixes were applied; " +
				"the scan may also time out on slow machines, which is not itself a fault.",
			Action:  true,
			Timeout: 60 * time.Second,
			Commands: map[string]string{
				PlatformWindows: "DISM /Online /Cleanup-Image /ScanHealth && sfc /verifyonly",
			},
			Parse: parseDismSfc,
		},
		{
			Name: "repair_office365",
			Description: "Launch a Microsoft 365 quick repair via Office Click-to-Run. " +
				"CALL WHEN Office applications crash or fail to start on Windows. " +
				"DO NOT CALL IF Office is not installed or the problem is unrelated to Office. " +
				"OUTPUT MEANING: current_state repair_started means the repair was handed to Click-to-Run; " +
				"it continues in the background after this tool returns.",
			Action: true,
			Commands: map[string]string{
				PlatformWindows: `"%CommonProgramFiles%\microsoft shared\ClickToRun\OfficeClickToRun.exe" scenario=Repair platform=x64 culture=en-us RepairType=QuickRepair DisplayLevel=False`,
			},
			Parse: parseOfficeRepair,
		},
		{
			Name: "fix_dell_audio",
			Description: "Restart the Windows Audio service, the usual fix for dead audio on Dell laptops. " +
				"CALL WHEN audio stopped working on a Windows machine and no hardware fault is suspected. " +
				"DO NOT CALL IF audio works; restarting the service interrupts playback. " +
				"OUTPUT MEANING: previous_state and current_state show the service around the restart; " +
				"current_state running with changed true means the restart took.",
			Action: true,
			Commands: map[string]string{
				PlatformWindows: "sc query Audiosrv & net stop Audiosrv & net start Audiosrv & sc query Audiosrv",
			},
			Parse: parseDellAudio,
		},
	}
}

// blockProtectedTargets refuses kill_process calls against the platform's
// protected set and normalizes the target name for the shell.
func blockProtectedTargets(platform string, args map[string]any) *models.ProbeResult {
	name := strings.TrimSpace(strings.ToLower(strFromArgs(args, "name")))
	bare := strings.TrimSuffix(name, ".exe")
	for _, protected := range protectedProcesses[platform] {
		if bare == protected {
			return &models.ProbeResult{
				Success: false,
				Data: map[string]any{
					"terminated": false,
					"blocked":    []string{name},
					"protected":  true,
				},
				Error: "protected process",
				Suggestions: []string{
					"This process is essential to the operating system and will not be terminated.",
				},
			}
		}
	}
	if platform == PlatformWindows && name != "" && !strings.Contains(name, ".") {
		args["name"] = name + ".exe"
	}
	return nil
}

func strFromArgs(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

var (
	airportPowerPattern = regexp.MustCompile(`Wi-Fi Power \([^)]+\): (On|Off)`)
	nmcliStatePattern   = regexp.MustCompile(`(?m)^(enabled|disabled)\s*$`)
	netshAdminPattern   = regexp.MustCompile(`Administrative state:\s+(\w+)`)
	scStatePattern      = regexp.MustCompile(`STATE\s+:\s+\d+\s+(\w+)`)
)

func parseEnableWifi(platform string, _ map[string]any, out CommandOutput) *models.ProbeResult {
	var states []string
	switch platform {
	case PlatformMacOS:
		for _, m := range airportPowerPattern.FindAllStringSubmatch(out.Stdout, -1) {
			states = append(states, strings.ToLower(m[1]))
		}
	case PlatformLinux:
		for _, m := range nmcliStatePattern.FindAllStringSubmatch(out.Stdout, -1) {
			if m[1] == "enabled" {
				states = append(states, "on")
			} else {
				states = append(states, "off")
			}
		}
	case PlatformWindows:
		for _, m := range netshAdminPattern.FindAllStringSubmatch(out.Stdout, -1) {
			if strings.EqualFold(m[1], "Enabled") {
				states = append(states, "on")
			} else {
				states = append(states, "off")
			}
		}
	}

	previous, current := "unknown", "unknown"
	if len(states) > 0 {
		previous = states[0]
		current = states[len(states)-1]
	}

	var suggestions []string
	if current != "on" {
		suggestions = append(suggestions,
			"The radio did not come on. Rerun with administrator rights, or check for a hardware Wi-Fi switch.")
	}

	return &models.ProbeResult{
		Success: current == "on",
		Data: map[string]any{
			"previous_state": previous,
			"current_state":  current,
			"changed":        previous != current && previous != "unknown",
		},
		Suggestions: suggestions,
	}
}

func parseKillProcess(platform string, args map[string]any, out CommandOutput) *models.ProbeResult {
	target := strFromArgs(args, "name")
	terminated := out.ExitCode == 0

	data := map[string]any{
		"terminated": terminated,
		"target":     target,
	}

	if terminated {
		return &models.ProbeResult{Success: true, Data: data}
	}

	// pkill exits 1 when nothing matched; taskkill says so in its output.
	noMatch := (out.ExitCode == 1 && platform != PlatformWindows) ||
		strings.Contains(out.Stderr, "not found") ||
		strings.Contains(out.Stdout, "not found")
	if noMatch {
		return &models.ProbeResult{
			Success: false,
			Data:    data,
			Error:   "no matching process",
			Suggestions: []string{
				"No process with that exact name is running. Use list_processes to get the current name.",
			},
		}
	}

	return &models.ProbeResult{Success: false, Data: data}
}

func parseDismSfc(_ string, _ map[string]any, out CommandOutput) *models.ProbeResult {
	lower := strings.ToLower(out.Stdout)
	current := "unknown"
	switch {
	case strings.Contains(lower, "successfully repaired"):
		current = "repaired"
	case strings.Contains(lower, "unable to fix"):
		current = "corrupt"
	case strings.Contains(lower, "no component store corruption detected"),
		strings.Contains(lower, "did not find any integrity violations"):
		current = "healthy"
	case strings.Contains(lower, "repairable"):
		current = "corrupt"
	}

	var suggestions []string
	if current == "corrupt" {
		suggestions = append(suggestions,
			"Corruption was found that the quick scan could not fix. Run DISM /RestoreHealth from an elevated prompt.")
	}

	return &models.ProbeResult{
		Success: current == "healthy" || current == "repaired",
		Data: map[string]any{
			"previous_state": "unverified",
			"current_state":  current,
			"changed":        current == "repaired",
		},
		Suggestions: suggestions,
	}
}

func parseOfficeRepair(_ string, _ map[string]any, out CommandOutput) *models.ProbeResult {
	if out.ExitCode != 0 {
		notInstalled := strings.Contains(out.Stderr, "not recognized") ||
			strings.Contains(out.Stderr, "cannot find")
		res := &models.ProbeResult{
			Success: false,
			Data: map[string]any{
				"previous_state": "unknown",
				"current_state":  "not_started",
				"changed":        false,
			},
		}
		if notInstalled {
			res.Error = "office click-to-run not installed"
			res.Suggestions = []string{"Office Click-to-Run is not present on this machine; there is nothing to repair."}
		}
		return res
	}

	return &models.ProbeResult{
		Success: true,
		Data: map[string]any{
			"previous_state": "unknown",
			"current_state":  "repair_started",
			"changed":        true,
			"repair_type":    "quick",
		},
		Suggestions: []string{
			"The repair continues in the background; Office applications should be closed until it finishes.",
		},
	}
}

func parseDellAudio(_ string, _ map[string]any, out CommandOutput) *models.ProbeResult {
	var states []string
	for _, m := range scStatePattern.FindAllStringSubmatch(out.Stdout, -1) {
		states = append(states, strings.ToLower(m[1]))
	}

	previous, current := "unknown", "unknown"
	if len(states) > 0 {
		previous = states[0]
		current = states[len(states)-1]
	}
	restarted := strings.Contains(out.Stdout, "started successfully")
	if restarted && current == "unknown" {
		current = "running"
	}

	var suggestions []string
	if current != "running" {
		suggestions = append(suggestions,
			"The audio service did not come back. Check the audio driver in Device Manager or run the Dell audio driver installer.")
	}

	return &models.ProbeResult{
		Success: current == "running",
		Data: map[string]any{
			"previous_state": previous,
			"current_state":  current,
			"changed":        restarted,
		},
		Suggestions: suggestions,
	}
}
