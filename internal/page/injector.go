package page

import (
	"fmt"
	"log/slog"
	"time"

	"chatpilot/internal/domain"
	"chatpilot/internal/script"
)

// State is a step of the injection state machine.
type State int

const (
	StateInit State = iota
	StateAwaitPageLoad
	StateAwaitSettle
	StateSearching
	StateFilling
	StateAwaitSubmitDelay
	StateSubmitting
	StateSucceeded
	StateFailed
)

var stateNames = [...]string{
	"init", "await-page-load", "await-settle", "searching", "filling",
	"await-submit-delay", "submitting", "succeeded", "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s == StateSucceeded || s == StateFailed }

// OutcomeFunc receives the single outcome of an injection run.
type OutcomeFunc func(domain.InjectionOutcome)

// Injector runs the injection state machine host-side against a DOM.
type Injector struct {
	dom     DOM
	profile script.TimeoutProfile
	chains  script.Chains
	report  OutcomeFunc
	logger  *slog.Logger
}

// NewInjector creates an injector. report is called at most once per run.
func NewInjector(dom DOM, profile script.TimeoutProfile, chains script.Chains, report OutcomeFunc, logger *slog.Logger) *Injector {
	return &Injector{dom: dom, profile: profile, chains: chains, report: report, logger: logger}
}

// Start begins a run on the given page load. All transitions happen on the
// load's scheduler.
func (in *Injector) Start(load *Load, req domain.InjectionRequest, runID string) *Run {
	r := &run{in: in, dom: in.dom, load: load, req: req, id: runID, state: StateInit}
	load.AfterFunc(0, r.init)
	return &Run{r: r}
}

// Run is a handle on an in-flight injection, for inspection in tests and logs.
type Run struct{ r *run }

// ID returns the run correlation ID.
func (h *Run) ID() string { return h.r.id }

// State returns the current state. Only meaningful on the scheduler goroutine.
func (h *Run) State() State { return h.r.state }

// Queries returns how many chat-input queries the run has made.
func (h *Run) Queries() int { return h.r.queries }

type run struct {
	in   *Injector
	dom  DOM
	load *Load
	req  domain.InjectionRequest
	id   string

	state     State
	retries   int
	queries   int
	submitted bool
	deadline  Timer
	pending   Timer
}

func (r *run) transition(s State) {
	r.in.logger.Debug("injection transition", "run", r.id, "from", r.state, "to", s)
	r.state = s
}

// after schedules fn as the run's single pending step. Steps are dropped once
// the run is terminal.
func (r *run) after(d time.Duration, fn func()) {
	r.pending = r.load.AfterFunc(d, func() {
		if r.state.Terminal() {
			return
		}
		fn()
	})
}

func (r *run) init() {
	r.deadline = r.load.AfterFunc(r.in.profile.InjectionTotal, r.timedOut)
	r.awaitPageLoad()
}

func (r *run) awaitPageLoad() {
	r.transition(StateAwaitPageLoad)
	if r.load.Loaded() {
		r.awaitSettle()
		return
	}
	proceed := func() {
		if r.state == StateAwaitPageLoad {
			r.awaitSettle()
		}
	}
	r.load.OnLoad(proceed)
	r.after(r.in.profile.PageLoadFallback, proceed)
}

func (r *run) awaitSettle() {
	r.transition(StateAwaitSettle)
	r.after(r.in.profile.SettleDelay, r.search)
}

func (r *run) search() {
	r.transition(StateSearching)
	r.queries++
	el, found, err := r.dom.Query(r.load.Context(), r.in.chains.Input())
	if err != nil {
		r.fail(domain.ErrScriptException, "failed to query chat input: "+err.Error())
		return
	}
	if !found {
		r.retries++
		if r.retries < r.in.profile.MaxRetries {
			r.after(r.in.profile.RetryDelay, r.search)
			return
		}
		r.fail(domain.ErrElementNotFound,
			fmt.Sprintf("could not find chat input after %d attempts", r.in.profile.MaxRetries))
		return
	}

	r.transition(StateFilling)
	mod := ModalityOf(el)
	r.in.logger.Debug("chat input found", "run", r.id, "modality", mod.Name(), "attempt", r.queries)
	mod.fill(r, el)
}

func (r *run) fillFailed(err error) {
	r.fail(domain.ErrScriptException, "failed to set message: "+err.Error())
}

func (r *run) scheduleSubmit(el ElementInfo) {
	if r.state.Terminal() {
		return
	}
	r.transition(StateAwaitSubmitDelay)
	r.after(r.in.profile.SubmitDelay, func() { r.submit(el) })
}

func (r *run) submit(input ElementInfo) {
	if r.state.Terminal() || r.submitted {
		return
	}
	r.submitted = true
	r.transition(StateSubmitting)

	ctx := r.load.Context()
	btn, found, err := r.dom.Query(ctx, r.in.chains.SendButton)
	if err != nil {
		r.fail(domain.ErrScriptException, "failed to submit message: "+err.Error())
		return
	}
	if found {
		if err := r.dom.Click(ctx, btn.Handle); err != nil {
			r.fail(domain.ErrScriptException, "failed to submit message: "+err.Error())
			return
		}
		r.succeed()
		return
	}
	// No send control: press Enter in the input and assume it went through.
	if err := r.dom.Dispatch(ctx, input.Handle, eventEnterPress); err != nil {
		r.in.logger.Warn("enter fallback dispatch failed", "run", r.id, "error", err)
	}
	r.succeed()
}

func (r *run) timedOut() {
	r.fail(domain.ErrTimeout,
		fmt.Sprintf("message injection timed out after %dms", r.in.profile.InjectionTotal.Milliseconds()))
}

func (r *run) succeed() {
	r.terminate(domain.Succeeded(r.id), nil)
}

func (r *run) fail(kind error, msg string) {
	r.terminate(domain.Failed(r.id, msg), kind)
}

// terminate is the only path to a terminal state and reports the outcome.
func (r *run) terminate(o domain.InjectionOutcome, kind error) {
	if r.state.Terminal() {
		return
	}
	if o.Success {
		r.transition(StateSucceeded)
	} else {
		r.transition(StateFailed)
	}
	if r.deadline != nil {
		r.deadline.Stop()
	}
	if r.pending != nil {
		r.pending.Stop()
	}
	if kind != nil {
		r.in.logger.Info("injection failed", "run", r.id, "code", domain.ErrorCodeOf(kind), "error", o.ErrorMessage())
	} else {
		r.in.logger.Debug("injection succeeded", "run", r.id, "attempts", r.queries)
	}
	r.in.report(o)
}
