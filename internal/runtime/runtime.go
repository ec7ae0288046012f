// Package runtime composes the domain services into a single module. It
// resolves the persistent stores published by the storage modules (falling
// back to in-memory stores), builds the tenant directory, license manager,
// memory service, skill registry, and session store, publishes them in the
// service registry, and runs the background sweeps.
package runtime

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/beaconlabs/hivemind/internal/core"
	"github.com/beaconlabs/hivemind/internal/license"
	"github.com/beaconlabs/hivemind/internal/memory"
	"github.com/beaconlabs/hivemind/internal/schedule"
	"github.com/beaconlabs/hivemind/internal/session"
	"github.com/beaconlabs/hivemind/internal/skill"
	"github.com/beaconlabs/hivemind/internal/tenant"
)

// Service registry names published by this module.
const (
	ServiceMemory   = "memory.service"
	ServiceTenants  = "tenant.directory"
	ServiceLicenses = "license.manager"
	ServiceSkills   = "skill.registry"
	ServiceMarket   = "skill.market"
	ServiceSessions = "session.store"

	serviceRecords = "memory.store"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module wires the domain services together.
type Module struct {
	config Config

	directory *tenant.Directory
	licenses  *license.Manager
	service   *memory.Service
	registry  *skill.Registry
	market    *skill.Market
	sessions  session.Store
	scheduler *schedule.Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "runtime.core",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("runtime: decode config: %w", err)
	}
	m.config.defaults()
	return m.config.validate()
}

// Provision implements core.Provisioner. Storage modules provision before
// this one, so their stores are resolved here; missing stores fall back to
// in-memory implementations.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()

	records, persistent := m.resolveRecordStore(ctx)
	m.sessions = m.resolveSessionStore(ctx)

	m.directory = tenant.NewDirectory(ctx.Logger)
	m.licenses = license.NewManager(ctx.Logger)

	var oracle memory.UsageOracle
	if *m.config.Licensing.Enforce {
		oracle = license.NewOracle(m.licenses, func(c context.Context, tenantID string) (int, error) {
			return records.Count(c, tenantID, "")
		})
	} else {
		oracle = unboundedOracle{}
	}

	metrics, err := memory.NewMetrics("", nil)
	if err != nil {
		return fmt.Errorf("runtime: metrics: %w", err)
	}

	m.service = memory.NewService(records, m.directory, oracle, memory.Options{
		Policy: memory.Policy{
			MaxRecordsPerTenant: m.config.Memory.MaxRecordsPerTenant,
			EvictShortTermFirst: m.config.Memory.EvictShortTermFirst,
		},
		Logger:  ctx.Logger,
		Metrics: metrics,
	})

	if persistent {
		if err := m.service.RebuildIndex(context.Background()); err != nil {
			return err
		}
	}

	m.registry = skill.NewRegistry()
	m.market = skill.NewMarket(m.registry)

	m.scheduler = schedule.NewScheduler(ctx.Logger)
	jobs := []schedule.Job{
		&schedule.CapacitySweepJob{
			Enforcer:     m.service,
			Logger:       ctx.Logger,
			ScheduleExpr: m.config.Sweeps.Capacity,
		},
		&schedule.LicenseExpiryJob{
			Sweeper:      m.licenses,
			Logger:       ctx.Logger,
			ScheduleExpr: m.config.Sweeps.License,
		},
		&schedule.SessionCleanupJob{
			Store:        m.sessions,
			Retention:    m.config.retention(),
			Logger:       ctx.Logger,
			ScheduleExpr: m.config.Sweeps.Sessions,
		},
	}
	for _, j := range jobs {
		if err := m.scheduler.RegisterJob(j); err != nil {
			return err
		}
	}

	ctx.RegisterService(ServiceMemory, m.service)
	ctx.RegisterService(ServiceTenants, m.directory)
	ctx.RegisterService(ServiceLicenses, m.licenses)
	ctx.RegisterService(ServiceSkills, m.registry)
	ctx.RegisterService(ServiceMarket, m.market)

	ctx.Logger.Info("runtime provisioned",
		"persistent_store", persistent,
		"licensing", *m.config.Licensing.Enforce,
		"max_records_per_tenant", m.config.Memory.MaxRecordsPerTenant,
	)
	return nil
}

// Start implements core.Starter.
func (m *Module) Start() error {
	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}

func (m *Module) resolveRecordStore(ctx *core.AppContext) (memory.RecordStore, bool) {
	if svc, ok := ctx.Service(serviceRecords); ok {
		if store, ok := svc.(memory.RecordStore); ok {
			return store, true
		}
	}
	ctx.Logger.Info("no persistent record store, using in-memory store")
	return memory.NewInMemoryRecordStore(), false
}

func (m *Module) resolveSessionStore(ctx *core.AppContext) session.Store {
	if svc, ok := ctx.Service(ServiceSessions); ok {
		if store, ok := svc.(session.Store); ok {
			return store
		}
	}
	ctx.Logger.Info("no persistent session store, using in-memory store")
	store := session.NewInMemoryStore()
	ctx.RegisterService(ServiceSessions, store)
	return store
}

// Memory returns the composed memory service.
func (m *Module) Memory() *memory.Service { return m.service }

// Tenants returns the tenant directory.
func (m *Module) Tenants() *tenant.Directory { return m.directory }

// Licenses returns the license manager.
func (m *Module) Licenses() *license.Manager { return m.licenses }

// Skills returns the skill registry.
func (m *Module) Skills() *skill.Registry { return m.registry }

// Market returns the skill marketplace.
func (m *Module) Market() *skill.Market { return m.market }

// Sessions returns the session store in use.
func (m *Module) Sessions() session.Store { return m.sessions }

// unboundedOracle admits every tenant. Used when licensing is disabled.
type unboundedOracle struct{}

func (unboundedOracle) RemainingCapacity(context.Context, string) (int, bool, error) {
	return 0, true, nil
}
