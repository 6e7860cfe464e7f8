package config

import "slices"

// Resolve returns a sorted list of module IDs from the configuration.
// The deterministic order ensures consistent module loading. The gateway
// is appended when the http transport needs it and it is not configured.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules)+1)
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	if cfg.Server.Transport == TransportHTTP && !slices.Contains(ids, GatewayModule) {
		ids = append(ids, GatewayModule)
	}
	return ids
}
