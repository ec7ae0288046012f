package license

import "time"

// SetNow overrides the manager's clock for tests.
func (m *Manager) SetNow(now func() time.Time) { m.now = now }
