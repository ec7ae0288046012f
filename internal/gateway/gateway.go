// Package gateway provides the HTTP surface of hivemind: memory, tenant,
// license, skill, and session APIs plus health and Prometheus metrics. It
// binds to loopback by default and follows the module system pattern.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/beaconlabs/hivemind/internal/core"
	"github.com/beaconlabs/hivemind/internal/license"
	"github.com/beaconlabs/hivemind/internal/memory"
	"github.com/beaconlabs/hivemind/internal/security"
	"github.com/beaconlabs/hivemind/internal/session"
	"github.com/beaconlabs/hivemind/internal/skill"
	"github.com/beaconlabs/hivemind/internal/tenant"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP gateway module. It is a leaf module; nothing
// imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	audit     *security.AuditLogger
	auditFile *os.File
	limiter   *security.RateLimiter
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	memories *memory.Service
	tenants  *tenant.Directory
	licenses *license.Manager
	skills   *skill.Registry
	market   *skill.Market
	sessions session.Store
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.limiter = security.NewRateLimiter(g.config.RateLimit)

	auditCfg := security.AuditLoggerConfig{}
	if g.config.AuditLog != "" {
		path := g.config.AuditLog
		if !filepath.IsAbs(path) {
			path = filepath.Join(ctx.DataDir, path)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("gateway: open audit log: %w", err)
		}
		g.auditFile = f
		auditCfg.Writer = f
	}
	g.audit = security.NewAuditLogger(auditCfg)

	// Configured credentials must never show up in logs.
	if svc, ok := ctx.Service("security.redactor"); ok {
		if red, ok := svc.(*security.Redactor); ok {
			red.AddLiteral(g.config.Auth.BearerToken)
			red.AddLiteral(g.config.Auth.BasicPass)
		}
	}

	ctx.RegisterService("gateway.audit", g.audit)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	if svc, ok := g.appCtx.Service("memory.service"); ok {
		if mem, ok := svc.(*memory.Service); ok {
			g.memories = mem
		}
	}
	if svc, ok := g.appCtx.Service("tenant.directory"); ok {
		if dir, ok := svc.(*tenant.Directory); ok {
			g.tenants = dir
		}
	}
	if svc, ok := g.appCtx.Service("license.manager"); ok {
		if mgr, ok := svc.(*license.Manager); ok {
			g.licenses = mgr
		}
	}
	if svc, ok := g.appCtx.Service("skill.registry"); ok {
		if reg, ok := svc.(*skill.Registry); ok {
			g.skills = reg
		}
	}
	if svc, ok := g.appCtx.Service("skill.market"); ok {
		if mkt, ok := svc.(*skill.Market); ok {
			g.market = mkt
		}
	}
	if svc, ok := g.appCtx.Service("session.store"); ok {
		if store, ok := svc.(session.Store); ok {
			g.sessions = store
		}
	}

	g.startedAt = time.Now()

	mux := g.buildRouter()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      mux,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.auditFile != nil {
		defer func() { _ = g.auditFile.Close() }()
	}
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
