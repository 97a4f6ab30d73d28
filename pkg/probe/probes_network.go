package probe

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/netmedic/netmedic/pkg/models"
)

func networkProbes() []*Probe {
	return []*Probe{
		{
			Name: "check_adapter_status",
			Description: "List network adapters and their link state. " +
				"CALL WHEN starting any connectivity diagnosis, or after enable_wifi to confirm the change. " +
				"DO NOT CALL IF you already have a fresh adapter listing from this conversation. " +
				"OUTPUT MEANING: connected_count is the number of adapters with an active link; " +
				"0 means nothing is plugged in or the radio is off.",
			Commands: map[string]string{
				PlatformMacOS:   "ifconfig",
				PlatformLinux:   "ip -o link show",
				PlatformWindows: "netsh interface show interface",
			},
			Parse: parseAdapterStatus,
		},
		{
			Name: "get_ip_config",
			Description: "Read the host's IPv4 address and default gateway. " +
				"CALL WHEN at least one adapter is connected and you need to know whether DHCP gave a usable address. " +
				"DO NOT CALL IF no adapter is connected; there will be no address to read. " +
				"OUTPUT MEANING: has_valid_ip false or is_apipa true means the host never got a proper lease; " +
				"gateway is the router address to use with ping_gateway.",
			Commands: map[string]string{
				PlatformMacOS:   "ifconfig; echo '---ROUTE---'; route -n get default",
				PlatformLinux:   "ip -4 addr show; echo '---ROUTE---'; ip route show default",
				PlatformWindows: "ipconfig",
			},
			Parse: parseIPConfig,
		},
		{
			Name: "ping_gateway",
			Description: "Ping the default gateway to test the local network segment. " +
				"CALL WHEN get_ip_config reported a gateway; pass that address as the gateway argument. " +
				"DO NOT CALL IF the host has no valid IP yet. " +
				"OUTPUT MEANING: reachable false means the problem is between this host and the router; " +
				"anything beyond the router is not the issue yet.",
			Parameters: []models.ToolParameter{
				{Name: "gateway", Type: models.ParamString, Required: true,
					Description: "Gateway IPv4 address from get_ip_config."},
			},
			Timeout: 30 * time.Second,
			Commands: map[string]string{
				PlatformMacOS:   "ping -c 4 {{gateway}}",
				PlatformLinux:   "ping -c 4 -W 2 {{gateway}}",
				PlatformWindows: "ping -n 4 {{gateway}}",
			},
			Parse: parsePingGateway,
		},
		{
			Name: "ping_dns",
			Description: "Ping 8.8.8.8 to test raw internet reachability without DNS. " +
				"CALL WHEN the gateway is reachable and you need to know whether the WAN link works. " +
				"DO NOT CALL IF the gateway itself is unreachable; fix the local segment first. " +
				"OUTPUT MEANING: internet_accessible false with a reachable gateway points at the modem, " +
				"the ISP, or a VPN black-holing traffic.",
			Timeout: 30 * time.Second,
			Commands: map[string]string{
				PlatformMacOS:   "ping -c 4 8.8.8.8",
				PlatformLinux:   "ping -c 4 -W 2 8.8.8.8",
				PlatformWindows: "ping -n 4 8.8.8.8",
			},
			Parse: parsePingDNS,
		},
		{
			Name: "test_dns_resolution",
			Description: "Resolve a hostname to check the DNS path. " +
				"CALL WHEN raw connectivity works (ping_dns succeeded) but browsing fails. " +
				"DO NOT CALL IF the internet is not reachable at the IP level; DNS cannot work without it. " +
				"OUTPUT MEANING: dns_working false while internet_accessible was true means the configured " +
				"DNS server is broken; switching to a public resolver is the usual fix.",
			Parameters: []models.ToolParameter{
				{Name: "domain", Type: models.ParamString, Required: false, Default: "google.com",
					Description: "Hostname to resolve. Defaults to google.com."},
			},
			Commands: map[string]string{
				PlatformMacOS:   "nslookup {{domain}}",
				PlatformLinux:   "nslookup {{domain}}",
				PlatformWindows: "nslookup {{domain}}",
			},
			Parse: parseDNSResolution,
		},
		{
			Name: "check_vpn_status",
			Description: "Detect an active VPN tunnel. " +
				"CALL WHEN connectivity is partially broken and a VPN could be interfering, " +
				"or the user mentions a VPN. " +
				"DO NOT CALL IF the adapter has no link at all; a VPN is irrelevant then. " +
				"OUTPUT MEANING: vpn_active true names the tunnel interface; " +
				"disconnecting it is a quick way to rule the VPN out.",
			Commands: map[string]string{
				PlatformMacOS:   "ifconfig",
				PlatformLinux:   "ip -o addr show",
				PlatformWindows: "rasdial",
			},
			Parse: parseVPNStatus,
		},
	}
}

var (
	ifconfigHeaderPattern = regexp.MustCompile(`^([a-z][a-z0-9]*):\s+flags=`)
	ipv4Pattern           = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)
	inetPattern           = regexp.MustCompile(`inet (\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`)
	lossPattern           = regexp.MustCompile(`(\d+(?:\.\d+)?)% (?:packet )?loss`)
	winLossPattern        = regexp.MustCompile(`\((\d+)% loss\)`)
	rttAvgPattern         = regexp.MustCompile(`(?:round-trip|rtt) min/avg/max[^=]*= *[\d.]+/([\d.]+)/`)
	winAvgPattern         = regexp.MustCompile(`Average = (\d+)ms`)
)

func parseAdapterStatus(platform string, _ map[string]any, out CommandOutput) *models.ProbeResult {
	type adapter struct {
		name  string
		state string
	}
	var adapters []adapter

	switch platform {
	case PlatformMacOS:
		current := ""
		status := map[string]string{}
		var order []string
		for _, line := range strings.Split(out.Stdout, "\n") {
			if m := ifconfigHeaderPattern.FindStringSubmatch(line); m != nil {
				current = m[1]
				if !strings.HasPrefix(current, "lo") {
					status[current] = "inactive"
					order = append(order, current)
				}
				continue
			}
			if current != "" && strings.Contains(line, "status: active") {
				if _, tracked := status[current]; tracked {
					status[current] = "active"
				}
			}
		}
		for _, name := range order {
			adapters = append(adapters, adapter{name: name, state: status[name]})
		}
	case PlatformLinux:
		for _, line := range strings.Split(out.Stdout, "\n") {
			fields := strings.Fields(line)
			if len(fields) < 2 || !strings.HasSuffix(fields[1], ":") {
				continue
			}
			name := strings.TrimSuffix(fields[1], ":")
			if name == "lo" {
				continue
			}
			state := "unknown"
			for i, f := range fields {
				if f == "state" && i+1 < len(fields) {
					state = strings.ToLower(fields[i+1])
					break
				}
			}
			adapters = append(adapters, adapter{name: name, state: state})
		}
	case PlatformWindows:
		for _, line := range strings.Split(out.Stdout, "\n") {
			fields := strings.Fields(line)
			if len(fields) < 4 {
				continue
			}
			if fields[0] != "Enabled" && fields[0] != "Disabled" {
				continue
			}
			adapters = append(adapters, adapter{
				name:  strings.Join(fields[3:], " "),
				state: strings.ToLower(fields[1]),
			})
		}
	}

	connected := 0
	list := make([]map[string]any, 0, len(adapters))
	for _, a := range adapters {
		up := a.state == "active" || a.state == "up" || a.state == "connected"
		if up {
			connected++
		}
		list = append(list, map[string]any{"name": a.name, "state": a.state, "connected": up})
	}

	var suggestions []string
	if connected == 0 {
		suggestions = append(suggestions,
			"No adapter has an active link. Turn the Wi-Fi radio on with enable_wifi or check the network cable.")
	}

	return &models.ProbeResult{
		Success: out.ExitCode == 0,
		Data: map[string]any{
			"connected_count": connected,
			"adapter_count":   len(adapters),
			"adapters":        list,
		},
		Suggestions: suggestions,
	}
}

func parseIPConfig(platform string, _ map[string]any, out CommandOutput) *models.ProbeResult {
	var ip, gateway string

	switch platform {
	case PlatformMacOS, PlatformLinux:
		sections := strings.SplitN(out.Stdout, "---ROUTE---", 2)
		for _, m := range inetPattern.FindAllStringSubmatch(sections[0], -1) {
			candidate := m[1]
			if strings.HasPrefix(candidate, "127.") {
				continue
			}
			if ip == "" || strings.HasPrefix(ip, "169.254.") {
				ip = candidate
			}
		}
		if len(sections) == 2 {
			route := sections[1]
			if platform == PlatformMacOS {
				if idx := strings.Index(route, "gateway:"); idx >= 0 {
					if m := ipv4Pattern.FindString(route[idx:]); m != "" {
						gateway = m
					}
				}
			} else if idx := strings.Index(route, "default via"); idx >= 0 {
				if m := ipv4Pattern.FindString(route[idx:]); m != "" {
					gateway = m
				}
			}
		}
	case PlatformWindows:
		var inGateway bool
		for _, line := range strings.Split(out.Stdout, "\n") {
			switch {
			case strings.Contains(line, "IPv4 Address"):
				if m := ipv4Pattern.FindString(line); m != "" {
					if ip == "" || strings.HasPrefix(ip, "169.254.") {
						ip = m
					}
				}
				inGateway = false
			case strings.Contains(line, "Default Gateway"):
				inGateway = true
				if m := ipv4Pattern.FindString(line); m != "" && gateway == "" {
					gateway = m
					inGateway = false
				}
			case inGateway:
				// The gateway value can wrap to the next line (IPv6 first).
				// Continuation lines carry a single bare address; anything
				// else is a new label and ends the gateway block.
				fields := strings.Fields(line)
				if len(fields) != 1 {
					inGateway = false
					continue
				}
				if m := ipv4Pattern.FindString(fields[0]); m != "" && gateway == "" {
					gateway = m
					inGateway = false
				}
			}
		}
	}

	isAPIPA := strings.HasPrefix(ip, "169.254.")
	hasValid := ip != "" && !isAPIPA

	var suggestions []string
	switch {
	case isAPIPA:
		suggestions = append(suggestions,
			"The adapter self-assigned a 169.254.x.x address: DHCP is not answering. Renew the lease or restart the router.")
	case ip == "":
		suggestions = append(suggestions,
			"No IPv4 address is assigned. Check that the adapter is connected and DHCP is enabled.")
	case gateway == "":
		suggestions = append(suggestions,
			"An address is assigned but no default gateway is set; traffic cannot leave this host.")
	}

	return &models.ProbeResult{
		Success: ip != "",
		Data: map[string]any{
			"has_valid_ip": hasValid,
			"is_apipa":     isAPIPA,
			"ip_address":   ip,
			"gateway":      gateway,
		},
		Suggestions: suggestions,
	}
}

// parsePingOutput extracts loss and latency from any platform's ping output.
func parsePingOutput(out CommandOutput) (lossPercent float64, avgLatencyMs float64, parsed bool) {
	text := out.Stdout
	if m := lossPattern.FindStringSubmatch(text); m != nil {
		lossPercent, _ = strconv.ParseFloat(m[1], 64)
		parsed = true
	} else if m := winLossPattern.FindStringSubmatch(text); m != nil {
		lossPercent, _ = strconv.ParseFloat(m[1], 64)
		parsed = true
	}
	if m := rttAvgPattern.FindStringSubmatch(text); m != nil {
		avgLatencyMs, _ = strconv.ParseFloat(m[1], 64)
	} else if m := winAvgPattern.FindStringSubmatch(text); m != nil {
		avgLatencyMs, _ = strconv.ParseFloat(m[1], 64)
	}
	return lossPercent, avgLatencyMs, parsed
}

func parsePingGateway(_ string, args map[string]any, out CommandOutput) *models.ProbeResult {
	loss, avg, parsed := parsePingOutput(out)
	reachable := parsed && loss < 100
	if !parsed {
		reachable = false
		loss = 100
	}

	var suggestions []string
	if !reachable {
		suggestions = append(suggestions,
			"The router is not answering. Power-cycle the router or check the link between this host and it.")
	}

	return &models.ProbeResult{
		Success: reachable,
		Data: map[string]any{
			"reachable":           reachable,
			"target":              args["gateway"],
			"packet_loss_percent": loss,
			"avg_latency_ms":      avg,
		},
		Suggestions: suggestions,
	}
}

func parsePingDNS(_ string, _ map[string]any, out CommandOutput) *models.ProbeResult {
	loss, avg, parsed := parsePingOutput(out)
	accessible := parsed && loss < 100
	if !parsed {
		loss = 100
	}

	var suggestions []string
	if !accessible {
		suggestions = append(suggestions,
			"The local network works but the internet is unreachable. Restart the modem, or disconnect any VPN and retest.")
	}

	return &models.ProbeResult{
		Success: accessible,
		Data: map[string]any{
			"internet_accessible": accessible,
			"target":              "8.8.8.8",
			"packet_loss_percent": loss,
			"avg_latency_ms":      avg,
		},
		Suggestions: suggestions,
	}
}

func parseDNSResolution(_ string, args map[string]any, out CommandOutput) *models.ProbeResult {
	domain, _ := args["domain"].(string)
	lower := strings.ToLower(out.Stdout + out.Stderr)
	failed := strings.Contains(lower, "can't find") ||
		strings.Contains(lower, "nxdomain") ||
		strings.Contains(lower, "no servers could be reached") ||
		strings.Contains(lower, "server failed")

	// The first Address line is the resolver itself; answers follow.
	var resolved string
	seenServer := false
	for _, line := range strings.Split(out.Stdout, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "Address") {
			continue
		}
		if !seenServer {
			seenServer = true
			continue
		}
		if m := ipv4Pattern.FindString(trimmed); m != "" {
			resolved = m
			break
		}
	}

	working := !failed && resolved != ""

	var suggestions []string
	if !working {
		suggestions = append(suggestions,
			"Name resolution is failing. Point the adapter's DNS server at 8.8.8.8 or 1.1.1.1 and retest.")
	}

	return &models.ProbeResult{
		Success: working,
		Data: map[string]any{
			"dns_working": working,
			"domain":      domain,
			"resolved_ip": resolved,
		},
		Suggestions: suggestions,
	}
}

var tunnelInterfacePrefixes = []string{"utun", "tun", "tap", "wg", "ppp", "ipsec"}

func parseVPNStatus(platform string, _ map[string]any, out CommandOutput) *models.ProbeResult {
	var active bool
	var iface string

	switch platform {
	case PlatformMacOS, PlatformLinux:
		current := ""
		for _, line := range strings.Split(out.Stdout, "\n") {
			if platform == PlatformMacOS {
				if m := ifconfigHeaderPattern.FindStringSubmatch(line); m != nil {
					current = m[1]
					continue
				}
				if current != "" && isTunnelInterface(current) && inetPattern.MatchString(line) {
					active = true
					iface = current
				}
				continue
			}
			// ip -o addr show: "14: tun0    inet 10.8.0.2/24 ..."
			fields := strings.Fields(line)
			if len(fields) >= 4 && isTunnelInterface(fields[1]) && fields[2] == "inet" {
				active = true
				iface = fields[1]
			}
		}
	case PlatformWindows:
		// rasdial lists connected entries; "No connections" means none.
		lower := strings.ToLower(out.Stdout)
		if !strings.Contains(lower, "no connections") {
			for _, line := range strings.Split(out.Stdout, "\n") {
				trimmed := strings.TrimSpace(line)
				if trimmed == "" || strings.HasPrefix(trimmed, "Connected to") || strings.HasPrefix(trimmed, "Command completed") {
					continue
				}
				active = true
				iface = trimmed
				break
			}
		}
	}

	var suggestions []string
	if active {
		suggestions = append(suggestions,
			"An active VPN tunnel can black-hole traffic. Disconnect it and rerun ping_dns to rule it out.")
	}

	return &models.ProbeResult{
		Success: true,
		Data: map[string]any{
			"vpn_active": active,
			"interface":  iface,
		},
		Suggestions: suggestions,
	}
}

func isTunnelInterface(name string) bool {
	for _, prefix := range tunnelInterfacePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
