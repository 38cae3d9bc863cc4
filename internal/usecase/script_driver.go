package usecase

import (
	"context"

	"chatpilot/internal/domain"
	"chatpilot/internal/script"
)

// ScriptDriver is the script strategy: it renders the content scripts and
// evaluates them in the main window without waiting for their results.
type ScriptDriver struct {
	scripts domain.ScriptChannel
	site    script.SiteConfig
	profile script.TimeoutProfile
	chains  script.Chains
}

// NewScriptDriver creates a script-strategy driver.
func NewScriptDriver(scripts domain.ScriptChannel, site script.SiteConfig, profile script.TimeoutProfile, chains script.Chains) *ScriptDriver {
	return &ScriptDriver{scripts: scripts, site: site, profile: profile, chains: chains}
}

func (d *ScriptDriver) Inject(ctx context.Context, req domain.InjectionRequest, runID string) error {
	return d.eval(ctx, script.InjectionScript(req, runID, d.profile, d.chains))
}

func (d *ScriptDriver) Watch(ctx context.Context) error {
	return d.eval(ctx, script.WatcherScript(d.profile, d.chains))
}

func (d *ScriptDriver) MonitorConnectivity(ctx context.Context) error {
	return d.eval(ctx, script.ConnectivityScript(d.profile, d.chains, d.site))
}

func (d *ScriptDriver) eval(ctx context.Context, js string) error {
	return d.scripts.Evaluate(ctx, domain.WindowMain, js)
}

var _ PageDriver = (*ScriptDriver)(nil)
