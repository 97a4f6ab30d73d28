package probe

// builtinProbes assembles the full probe set. Registration order is the
// order tools are presented to the model, so the diagnostic ladder comes
// first, then the read-only helpers, then the remediation actions.
func builtinProbes(cfg Config) []*Probe {
	var probes []*Probe
	probes = append(probes, networkProbes()...)
	probes = append(probes, systemProbes()...)
	probes = append(probes, actionProbes()...)
	probes = append(probes, cleanupProbe(cfg))
	return probes
}
