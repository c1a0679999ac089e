package config

import "time"

// Three-tier resolution: unit override, else global default, else builtin
// constant. Pure functions so the fallback chain is testable on its own.

// ResolveCLI returns the CLI tool name a unit should run.
func ResolveCLI(uc UnitConfig, d Defaults) string {
	if uc.CLI != "" {
		return uc.CLI
	}
	if d.CLI != "" {
		return d.CLI
	}
	return DefaultCLI
}

// ResolveModel returns the model selector, or empty for the tool's default.
func ResolveModel(uc UnitConfig, d Defaults) string {
	if uc.Model != "" {
		return uc.Model
	}
	return d.Model
}

// ResolveOverlap returns the effective overlap policy for a unit.
func ResolveOverlap(uc UnitConfig, d Defaults) OverlapPolicy {
	if uc.Overlap != "" {
		return ParseOverlap(uc.Overlap)
	}
	if d.Overlap != "" {
		return ParseOverlap(d.Overlap)
	}
	return DefaultOverlap
}

// ResolveTimeout returns the confirmation timeout for a unit.
func ResolveTimeout(uc UnitConfig, d Defaults) time.Duration {
	if uc.Timeout > 0 {
		return time.Duration(uc.Timeout) * time.Second
	}
	if d.Timeout > 0 {
		return time.Duration(d.Timeout) * time.Second
	}
	return DefaultTimeoutSeconds * time.Second
}
