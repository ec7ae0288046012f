package config

import "slices"

// Resolve returns the configured module IDs sorted lexicographically.
// Modules provision in this order, and some service wiring depends on it:
// "memory.sqlite" sorts before "runtime.core", so the persistent stores
// are registered before the runtime resolves them.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
