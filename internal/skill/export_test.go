package skill

import "time"

// SetNow overrides the registry's clock for tests.
func (r *Registry) SetNow(now func() time.Time) { r.now = now }
