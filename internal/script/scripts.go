package script

import (
	"embed"
	"encoding/json"
	"strconv"

	"chatpilot/internal/domain"
)

//go:embed js/*.js
var templates embed.FS

func mustTemplate(name string) string {
	b, err := templates.ReadFile("js/" + name)
	if err != nil {
		panic("script: missing template " + name)
	}
	return string(b)
}

var (
	bridgeJS       = mustTemplate("bridge.js")
	injectJS       = mustTemplate("inject.js")
	watcherJS      = mustTemplate("watcher.js")
	connectivityJS = mustTemplate("connectivity.js")
	linksJS        = mustTemplate("links.js")
	insetJS        = mustTemplate("inset.js")
	networkJS      = mustTemplate("network.js")
)

// MinBodyText is the visible body text length below which a page without the
// healthy marker is treated as an error page.
const MinBodyText = 50

// jsString renders s as a double-quoted JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

// BridgeScript defines window.__chatpilot on top of the CDP runtime binding.
// The other scripts only reach the host through it.
func BridgeScript(bindingName string) string {
	return Render(bridgeJS, map[string]string{
		"binding": jsString(bindingName),
	})
}

// InjectionScript renders the in-page injection state machine for one request.
func InjectionScript(req domain.InjectionRequest, runID string, p TimeoutProfile, c Chains) string {
	return Render(injectJS, map[string]string{
		"run_id":           jsString(runID),
		"message":          EscapeJS(req.Message),
		"max_retries":      strconv.Itoa(p.MaxRetries),
		"retry_delay":      ms(p.RetryDelay),
		"total_timeout":    ms(p.InjectionTotal),
		"fallback_timeout": ms(p.PageLoadFallback),
		"settle_delay":     ms(p.SettleDelay),
		"focus_delay":      ms(p.FocusDelay),
		"submit_delay":     ms(p.SubmitDelay),
		"editor_class":     jsString(c.EditorClass),
		"input_chain":      c.Input().JSExpr(),
		"send_chain":       c.SendButton.JSExpr(),
	})
}

// WatcherScript renders the response-completion watcher.
func WatcherScript(p TimeoutProfile, c Chains) string {
	return Render(watcherJS, map[string]string{
		"check_interval": ms(p.WatcherInterval),
		"initial_delay":  ms(p.WatcherInitial),
		"max_checks":     strconv.Itoa(p.MaxWatcherChecks),
		"stream_chain":   c.StreamIndicator.JSExpr(),
	})
}

// ConnectivityScript renders the one-shot error-page heuristic and the
// online/offline handlers.
func ConnectivityScript(p TimeoutProfile, c Chains, site SiteConfig) string {
	return Render(connectivityJS, map[string]string{
		"chat_url":      jsString(site.ChatURL),
		"local_origin":  jsString(site.LocalOrigin),
		"domains":       jsStrings(site.Domains),
		"reload_key":    jsString(site.ReloadKey),
		"max_reloads":   strconv.Itoa(p.MaxReloads),
		"min_body_text": strconv.Itoa(MinBodyText),
		"healthy_chain": c.HealthyMarker.JSExpr(),
		"check_delay":   ms(p.ConnectivityDelay),
	})
}

// NetworkEventsScript only reports the browser's online and offline
// transitions. The driver strategy installs it and reacts host-side.
func NetworkEventsScript() string {
	return Render(networkJS, nil)
}

// LinkInterceptorScript routes clicks on external and mailto links to the
// host instead of navigating the tab.
func LinkInterceptorScript(site SiteConfig) string {
	return Render(linksJS, map[string]string{
		"domains": jsStrings(site.Domains),
	})
}

// HeaderInsetScript hides the page's leading header button and pads the
// header. It re-applies itself when the page re-renders.
func HeaderInsetScript(styleID, padding string) string {
	return Render(insetJS, map[string]string{
		"style_id":       jsString(styleID),
		"header_padding": jsString(padding),
	})
}

// OfflineStateScript marks the local offline view as offline.
func OfflineStateScript(containerID string) string {
	return "(function() { var el = document.getElementById(" + jsString(containerID) +
		"); if (el) el.className = 'container offline'; })();"
}
