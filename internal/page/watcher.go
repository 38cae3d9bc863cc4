package page

import (
	"log/slog"

	"chatpilot/internal/script"
)

// Watcher detects the end of a streamed response: it requires having seen
// the streaming indicator and then seeing it disappear.
type Watcher struct {
	dom      DOM
	profile  script.TimeoutProfile
	chains   script.Chains
	complete func()
	logger   *slog.Logger
}

// NewWatcher creates a watcher. complete is called once per detected edge.
func NewWatcher(dom DOM, profile script.TimeoutProfile, chains script.Chains, complete func(), logger *slog.Logger) *Watcher {
	return &Watcher{dom: dom, profile: profile, chains: chains, complete: complete, logger: logger}
}

// Start schedules a watch on the load. It returns false without doing
// anything if a watcher already holds the load's session.
func (w *Watcher) Start(load *Load) bool {
	if !load.AcquireWatcher() {
		w.logger.Debug("response watcher already active", "load", load.ID())
		return false
	}
	ws := &watch{w: w, load: load}
	load.AfterFunc(w.profile.WatcherInitial, ws.poll)
	return true
}

type watch struct {
	w            *Watcher
	load         *Load
	checks       int
	wasStreaming bool
}

func (ws *watch) poll() {
	ws.checks++
	if ws.checks > ws.w.profile.MaxWatcherChecks {
		ws.load.ReleaseWatcher()
		ws.w.logger.Debug("response watcher gave up", "load", ws.load.ID(), "checks", ws.checks-1)
		return
	}

	_, streaming, err := ws.w.dom.Query(ws.load.Context(), ws.w.chains.StreamIndicator)
	if err != nil {
		ws.w.logger.Debug("stream check failed", "load", ws.load.ID(), "error", err)
		ws.load.AfterFunc(ws.w.profile.WatcherInterval, ws.poll)
		return
	}
	if streaming {
		ws.wasStreaming = true
	}
	if ws.wasStreaming && !streaming {
		ws.load.ReleaseWatcher()
		ws.w.logger.Debug("response complete", "load", ws.load.ID(), "checks", ws.checks)
		ws.w.complete()
		return
	}
	ws.load.AfterFunc(ws.w.profile.WatcherInterval, ws.poll)
}
