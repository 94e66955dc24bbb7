// Package conversation runs the multi-step chat flows: viewing data on demand
// and setting up a timer. Both flows share one step table; they differ in the
// step that follows authentication and in what their terminal step dispatches.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/vitalsbot/core/logger"
	"github.com/m3rciful/vitalsbot/core/telegram/state"
	"github.com/m3rciful/vitalsbot/internal/chat"
	"github.com/m3rciful/vitalsbot/internal/identity"
	"github.com/m3rciful/vitalsbot/internal/metrics"
	"github.com/m3rciful/vitalsbot/internal/profile"
	"github.com/m3rciful/vitalsbot/internal/telemetry"
	"github.com/m3rciful/vitalsbot/internal/timers"
)

const component = "conversation"

// Conversation steps.
const (
	StateAwaitIdentity    state.State = "await_identity"
	StateAwaitMinutes     state.State = "await_minutes"
	StateChooseTimerKind  state.State = "choose_timer_kind"
	StateChooseDataset    state.State = "choose_dataset"
	StateChooseAction     state.State = "choose_action"
	StateAwaitLatestCount state.State = "await_latest_count"
	StateAwaitFilterValue state.State = "await_filter_value"
)

// Session parameter keys.
const (
	keyFlow        = "flow"
	keyProfile     = "profile"
	keyDataset     = "dataset"
	keyMode        = "mode"
	keyLimit       = "limit"
	keyFilterField = "filter_field"
	keyFilterValue = "filter_value"
	keyTimerKind   = "timer_kind"
	keyMinutes     = "minutes"
)

// Flow names.
const (
	FlowData  = "data"
	FlowTimer = "timer"
)

// Flow outcomes recorded in metrics.
const (
	outcomeOK        = "ok"
	outcomeDenied    = "denied"
	outcomeFail      = "fail"
	outcomeRestart   = "restart"
	outcomeCancelled = "cancelled"
)

// ErrUnknownFlow is returned by Start for an unregistered flow name.
var ErrUnknownFlow = errors.New("conversation: unknown flow")

// Identities is the session to profile id cache.
type Identities interface {
	Lookup(ctx context.Context, sid int64) (string, bool, error)
	Remember(ctx context.Context, sid int64, profileID string) error
	Forget(ctx context.Context, sid int64) (bool, error)
}

// Fetcher runs a query for display in tz.
type Fetcher interface {
	Fetch(ctx context.Context, q telemetry.Query, tz string) ([]string, error)
}

// Timers registers and cancels a session's timer.
type Timers interface {
	Register(ctx context.Context, sid int64, rec timers.Record) (time.Time, error)
	Cancel(ctx context.Context, sid int64) timers.CancelResult
}

// Request is what a flow has collected when it reaches its terminal step.
type Request struct {
	SessionID int64
	Profile   profile.Profile
	Query     telemetry.Query
	TimerKind timers.Kind
	Minutes   int64
}

// Flow is one parameterized conversation. Both flows walk the shared tail
// (dataset, action, count or filter value) and end in Dispatch.
type Flow struct {
	Name string
	// Command restarts the flow; used in the restart notice.
	Command string
	// Lead is the first step after authentication.
	Lead state.State
	// DatasetPrompt is shown with the dataset menu.
	DatasetPrompt func(p profile.Profile) string
	// Dispatch performs the terminal action. Session state is already cleared.
	Dispatch func(ctx context.Context, req Request, out chat.Replier) (outcome string, err error)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	State      state.Manager
	Identities Identities
	Profiles   profile.Gateway
	Fetcher    Fetcher
	Timers     Timers
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine drives the flows of every session.
type Engine struct {
	state      state.Manager
	identities Identities
	profiles   profile.Gateway
	fetcher    Fetcher
	timers     Timers
	now        func() time.Time

	flows map[string]*Flow
}

// New builds an engine with the data-view and timer-setup flows.
func New(d Deps) *Engine {
	e := &Engine{
		state:      d.State,
		identities: d.Identities,
		profiles:   d.Profiles,
		fetcher:    d.Fetcher,
		timers:     d.Timers,
		now:        d.Now,
		flows:      make(map[string]*Flow),
	}
	if e.state == nil {
		e.state = state.NewMemoryManager()
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.flows[FlowData] = &Flow{
		Name:          FlowData,
		Command:       "/data",
		Lead:          StateChooseDataset,
		DatasetPrompt: msgWelcome,
		Dispatch:      e.dispatchFetch,
	}
	e.flows[FlowTimer] = &Flow{
		Name:          FlowTimer,
		Command:       "/settimer",
		Lead:          StateAwaitMinutes,
		DatasetPrompt: func(profile.Profile) string { return msgTimerDataset },
		Dispatch:      e.dispatchTimer,
	}
	return e
}

// Flow returns the named flow.
func (e *Engine) Flow(name string) (*Flow, bool) {
	f, ok := e.flows[name]
	return f, ok
}

// InProgress reports whether sid is inside a flow.
func (e *Engine) InProgress(sid int64) bool {
	return e.state.InProgress(sid)
}

// Start begins the named flow for sid, discarding any flow in progress.
// A cached identity that still resolves skips the identity step.
func (e *Engine) Start(ctx context.Context, name string, sid int64, out chat.Replier) error {
	flow, ok := e.flows[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlow, name)
	}
	ctx = logger.WithSession(ctx, sid)

	if e.state.InProgress(sid) {
		logger.Debug(ctx, component, "flow.discard",
			slog.String("flow", e.flowName(sid)),
			slog.String("state", string(e.state.GetState(sid))),
		)
	}
	e.state.Clear(sid)
	e.state.SetTemp(sid, keyFlow, flow.Name)

	logger.Info(ctx, component, "flow.start", slog.String("flow", flow.Name))

	profileID, cached, err := e.identities.Lookup(ctx, sid)
	if err != nil {
		logger.Warn(ctx, component, "identity.lookup",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	if cached {
		p, err := e.profiles.Lookup(ctx, profileID)
		switch {
		case errors.Is(err, profile.ErrNotFound):
			logger.Warn(ctx, component, "identity.stale",
				slog.String("flow", flow.Name),
				slog.String("profile_id", profileID),
			)
			if _, err := e.identities.Forget(ctx, sid); err != nil {
				e.writeFailed(ctx, "identity.forget", err)
			}
		case err != nil:
			return e.finish(ctx, flow, sid, outcomeFail, out, msgProfileError)
		default:
			return e.authorized(ctx, flow, sid, p, out)
		}
	}

	e.state.SetState(sid, StateAwaitIdentity)
	return e.prompt(ctx, flow, sid, StateAwaitIdentity, out)
}

// HandleText feeds free text to the session's flow. It reports false when no flow is active.
func (e *Engine) HandleText(ctx context.Context, sid int64, text string, out chat.Replier) (bool, error) {
	st := e.state.GetState(sid)
	if st == state.StateIdle {
		return false, nil
	}
	ctx = logger.WithSession(ctx, sid)
	flow, ok := e.currentFlow(sid)
	if !ok {
		return true, e.restart(ctx, e.flows[FlowData], sid, out)
	}
	text = strings.TrimSpace(text)

	switch st {
	case StateAwaitIdentity:
		return true, e.onIdentity(ctx, flow, sid, text, out)
	case StateAwaitMinutes:
		n, msg := parsePositive(text, timers.MaxMinutes)
		if msg != "" {
			return true, reply(ctx, out, chat.Text(msg))
		}
		e.state.SetTemp(sid, keyMinutes, n)
		return true, e.advance(ctx, flow, sid, StateChooseTimerKind, out)
	case StateAwaitLatestCount:
		n, msg := parsePositive(text, telemetry.MaxLimit)
		if msg != "" {
			return true, reply(ctx, out, chat.Text(msg))
		}
		e.state.SetTemp(sid, keyLimit, n)
		return true, e.dispatch(ctx, flow, sid, out)
	case StateAwaitFilterValue:
		return true, e.onFilterValue(ctx, flow, sid, text, out)
	default:
		// A menu is pending; show it again.
		return true, e.prompt(ctx, flow, sid, st, out)
	}
}

// HandleChoice feeds a menu selection to the session's flow. It reports false
// when no flow is active.
func (e *Engine) HandleChoice(ctx context.Context, sid int64, value string, out chat.Replier) (bool, error) {
	st := e.state.GetState(sid)
	if st == state.StateIdle {
		return false, nil
	}
	ctx = logger.WithSession(ctx, sid)
	flow, ok := e.currentFlow(sid)
	if !ok {
		return true, e.restart(ctx, e.flows[FlowData], sid, out)
	}

	switch st {
	case StateChooseTimerKind:
		kind, ok := timers.ParseKind(value)
		if !ok {
			return true, e.prompt(ctx, flow, sid, st, out)
		}
		e.state.SetTemp(sid, keyTimerKind, kind)
		if err := reply(ctx, out, chat.Text(msgKindSet(kind))); err != nil {
			return true, err
		}
		return true, e.advance(ctx, flow, sid, StateChooseDataset, out)
	case StateChooseDataset:
		ds, ok := telemetry.ParseDataset(value)
		if !ok {
			return true, e.prompt(ctx, flow, sid, st, out)
		}
		e.state.SetTemp(sid, keyDataset, ds)
		return true, e.advance(ctx, flow, sid, StateChooseAction, out)
	case StateChooseAction:
		ds, ok := state.Temp[telemetry.Dataset](e.state, sid, keyDataset)
		if !ok {
			return true, e.restart(ctx, flow, sid, out)
		}
		action, ok := telemetry.LookupAction(ds, value)
		if !ok {
			return true, e.prompt(ctx, flow, sid, st, out)
		}
		e.state.SetTemp(sid, keyMode, action.Mode)
		switch action.Mode {
		case telemetry.ModeLatest:
			return true, e.advance(ctx, flow, sid, StateAwaitLatestCount, out)
		case telemetry.ModeFilter:
			e.state.SetTemp(sid, keyFilterField, action.Field)
			return true, e.advance(ctx, flow, sid, StateAwaitFilterValue, out)
		default:
			return true, e.dispatch(ctx, flow, sid, out)
		}
	default:
		// Text is expected; show the question again.
		return true, e.prompt(ctx, flow, sid, st, out)
	}
}

// Cancel abandons any flow of sid and answers with the help text.
func (e *Engine) Cancel(ctx context.Context, sid int64, out chat.Replier) error {
	ctx = logger.WithSession(ctx, sid)
	if e.state.InProgress(sid) {
		name := e.flowName(sid)
		metrics.FlowsTotal.WithLabelValues(name, outcomeCancelled).Inc()
		logger.Info(ctx, component, "flow.cancel",
			slog.String("flow", name),
			slog.String("state", string(e.state.GetState(sid))),
		)
	}
	e.state.Clear(sid)
	return reply(ctx, out, chat.Text(HelpText))
}

// Logout forgets the cached identity of sid and abandons any flow.
func (e *Engine) Logout(ctx context.Context, sid int64, out chat.Replier) error {
	ctx = logger.WithSession(ctx, sid)
	existed, err := e.identities.Forget(ctx, sid)
	if err != nil {
		e.writeFailed(ctx, "identity.forget", err)
	}
	if !existed {
		return reply(ctx, out, chat.Text(msgNotLoggedIn))
	}
	e.state.Clear(sid)
	logger.Info(ctx, component, "identity.logout")
	return reply(ctx, out, chat.Text(msgLoggedOut))
}

// ClearTimer cancels the timer of sid.
func (e *Engine) ClearTimer(ctx context.Context, sid int64, out chat.Replier) error {
	ctx = logger.WithSession(ctx, sid)
	if res := e.timers.Cancel(ctx, sid); res.Any() {
		return reply(ctx, out, chat.Text(msgTimerCleared))
	}
	return reply(ctx, out, chat.Text(msgNoTimer))
}

func (e *Engine) onIdentity(ctx context.Context, flow *Flow, sid int64, text string, out chat.Replier) error {
	if text == "" {
		return e.prompt(ctx, flow, sid, StateAwaitIdentity, out)
	}
	p, err := e.profiles.Lookup(ctx, text)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return e.finish(ctx, flow, sid, outcomeDenied, out, msgNotRegistered)
	case err != nil:
		return e.finish(ctx, flow, sid, outcomeFail, out, msgProfileError)
	}
	if !p.Approved() {
		return e.finish(ctx, flow, sid, outcomeDenied, out, msgStatus(p))
	}
	if err := e.identities.Remember(ctx, sid, p.ID); err != nil {
		e.writeFailed(ctx, "identity.remember", err)
	}
	logger.Info(ctx, component, "identity.login", slog.String("profile_id", p.ID))
	return e.authorized(ctx, flow, sid, p, out)
}

func (e *Engine) authorized(ctx context.Context, flow *Flow, sid int64, p profile.Profile, out chat.Replier) error {
	if !p.Approved() {
		return e.finish(ctx, flow, sid, outcomeDenied, out, msgStatus(p))
	}
	e.state.SetTemp(sid, keyProfile, p)
	return e.advance(ctx, flow, sid, flow.Lead, out)
}

func (e *Engine) onFilterValue(ctx context.Context, flow *Flow, sid int64, text string, out chat.Replier) error {
	field, ok := state.Temp[string](e.state, sid, keyFilterField)
	if !ok {
		return e.restart(ctx, flow, sid, out)
	}
	value, err := telemetry.NormalizeFilterValue(field, text)
	switch {
	case errors.Is(err, telemetry.ErrRangeOrder):
		return reply(ctx, out, chat.Text(msgRangeOrder))
	case errors.Is(err, telemetry.ErrRangeFormat):
		return reply(ctx, out, chat.Text(msgRangeFormat))
	case errors.Is(err, telemetry.ErrDateFormat):
		return reply(ctx, out, chat.Text(msgDateFormat))
	case err != nil:
		return e.restart(ctx, flow, sid, out)
	}
	if value == "" {
		return e.prompt(ctx, flow, sid, StateAwaitFilterValue, out)
	}
	e.state.SetTemp(sid, keyFilterValue, value)
	return e.dispatch(ctx, flow, sid, out)
}

func (e *Engine) advance(ctx context.Context, flow *Flow, sid int64, next state.State, out chat.Replier) error {
	e.state.SetState(sid, next)
	logger.Debug(ctx, component, "flow.step",
		slog.String("flow", flow.Name),
		slog.String("state", string(next)),
	)
	return e.prompt(ctx, flow, sid, next, out)
}

// prompt sends the question of st. Every step can be re-asked from session data alone.
func (e *Engine) prompt(ctx context.Context, flow *Flow, sid int64, st state.State, out chat.Replier) error {
	switch st {
	case StateAwaitIdentity:
		return reply(ctx, out, chat.Text(msgAskIdentity))
	case StateAwaitMinutes:
		return reply(ctx, out, chat.Text(msgAskMinutes))
	case StateChooseTimerKind:
		return reply(ctx, out, chat.Choice(msgChooseKind,
			chat.Option{Label: "One-time", Value: string(timers.KindOneShot)},
			chat.Option{Label: "Repeating", Value: string(timers.KindPeriodic)},
		))
	case StateChooseDataset:
		p, ok := state.Temp[profile.Profile](e.state, sid, keyProfile)
		if !ok {
			return e.restart(ctx, flow, sid, out)
		}
		opts := make([]chat.Option, 0, len(telemetry.Datasets()))
		for _, ds := range telemetry.Datasets() {
			opts = append(opts, chat.Option{Label: telemetry.DatasetLabel(ds), Value: string(ds)})
		}
		return reply(ctx, out, chat.Choice(flow.DatasetPrompt(p), opts...))
	case StateChooseAction:
		ds, ok := state.Temp[telemetry.Dataset](e.state, sid, keyDataset)
		if !ok {
			return e.restart(ctx, flow, sid, out)
		}
		actions := telemetry.Actions(ds)
		opts := make([]chat.Option, 0, len(actions))
		for _, a := range actions {
			opts = append(opts, chat.Option{Label: a.Label, Value: a.Value})
		}
		return reply(ctx, out, chat.Choice(msgChooseAction, opts...))
	case StateAwaitLatestCount:
		return reply(ctx, out, chat.Text(msgAskLatestCount))
	case StateAwaitFilterValue:
		field, ok := state.Temp[string](e.state, sid, keyFilterField)
		if !ok {
			return e.restart(ctx, flow, sid, out)
		}
		return reply(ctx, out, chat.Text(filterPrompt(field)))
	default:
		return e.restart(ctx, flow, sid, out)
	}
}

func filterPrompt(field string) string {
	label := telemetry.FieldLabel(field)
	switch telemetry.KindOf(field) {
	case telemetry.KindRange:
		return fmt.Sprintf("Please enter the range for %s (e.g., 60-90).", label)
	case telemetry.KindDate:
		return fmt.Sprintf("Please enter the value for %s: (e.g., YYYY-MM-DD)", label)
	default:
		return fmt.Sprintf("Please enter the value for %s:", label)
	}
}

// dispatch collects the request, clears the session and runs the flow's terminal action.
func (e *Engine) dispatch(ctx context.Context, flow *Flow, sid int64, out chat.Replier) error {
	req, ok := e.collect(sid)
	if !ok {
		return e.restart(ctx, flow, sid, out)
	}
	e.state.Clear(sid)

	outcome, err := flow.Dispatch(ctx, req, out)
	metrics.FlowsTotal.WithLabelValues(flow.Name, outcome).Inc()
	logger.Info(ctx, component, "flow.done",
		slog.String("flow", flow.Name),
		slog.String("outcome", outcome),
		slog.String("dataset", string(req.Query.Dataset)),
		slog.String("mode", string(req.Query.Mode)),
	)
	return err
}

func (e *Engine) collect(sid int64) (Request, bool) {
	p, ok := state.Temp[profile.Profile](e.state, sid, keyProfile)
	if !ok {
		return Request{}, false
	}
	ds, ok := state.Temp[telemetry.Dataset](e.state, sid, keyDataset)
	if !ok {
		return Request{}, false
	}
	mode, ok := state.Temp[telemetry.Mode](e.state, sid, keyMode)
	if !ok {
		return Request{}, false
	}
	req := Request{
		SessionID: sid,
		Profile:   p,
		Query:     telemetry.Query{Dataset: ds, Mode: mode},
	}
	switch mode {
	case telemetry.ModeLatest:
		limit, ok := e.state.GetTempInt64(sid, keyLimit)
		if !ok {
			return Request{}, false
		}
		req.Query.Limit = int(limit)
	case telemetry.ModeFilter:
		field, ok1 := state.Temp[string](e.state, sid, keyFilterField)
		value, ok2 := state.Temp[string](e.state, sid, keyFilterValue)
		if !ok1 || !ok2 {
			return Request{}, false
		}
		req.Query.FilterField, req.Query.FilterValue = field, value
	}
	if kind, ok := state.Temp[timers.Kind](e.state, sid, keyTimerKind); ok {
		req.TimerKind = kind
	}
	if minutes, ok := e.state.GetTempInt64(sid, keyMinutes); ok {
		req.Minutes = minutes
	}
	return req, true
}

func (e *Engine) dispatchFetch(ctx context.Context, req Request, out chat.Replier) (string, error) {
	records, err := e.fetcher.Fetch(ctx, req.Query, req.Profile.Timezone)
	if err != nil {
		return outcomeFail, reply(ctx, out, chat.Text(telemetry.UpstreamMessage))
	}
	return outcomeOK, reply(ctx, out, chat.Text(telemetry.Compose(req.Query, records, false)))
}

func (e *Engine) dispatchTimer(ctx context.Context, req Request, out chat.Replier) (string, error) {
	flow := e.flows[FlowTimer]
	if req.TimerKind == "" || req.Minutes <= 0 {
		return outcomeRestart, reply(ctx, out, chat.Text(msgRestart(flow.Command)))
	}
	rec, err := timers.NewRecord(req.TimerKind, e.now(), int(req.Minutes), req.Query)
	if err != nil {
		logger.Warn(ctx, component, "timer.build",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return outcomeRestart, reply(ctx, out, chat.Text(msgRestart(flow.Command)))
	}
	if _, err := e.timers.Register(ctx, req.SessionID, rec); err != nil {
		logger.Error(ctx, component, "timer.register",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return outcomeFail, reply(ctx, out, chat.Text(msgRestart(flow.Command)))
	}
	return outcomeOK, reply(ctx, out, chat.Text(msgTimerSet(req.TimerKind, req.Minutes, string(req.Query.Dataset))))
}

// finish ends the flow with a terminal notice.
func (e *Engine) finish(ctx context.Context, flow *Flow, sid int64, outcome string, out chat.Replier, text string) error {
	e.state.Clear(sid)
	metrics.FlowsTotal.WithLabelValues(flow.Name, outcome).Inc()
	logger.Info(ctx, component, "flow.done",
		slog.String("flow", flow.Name),
		slog.String("outcome", outcome),
	)
	return reply(ctx, out, chat.Text(text))
}

// restart ends a flow whose session data is inconsistent.
func (e *Engine) restart(ctx context.Context, flow *Flow, sid int64, out chat.Replier) error {
	logger.Warn(ctx, component, "flow.inconsistent",
		slog.String("flow", flow.Name),
		slog.String("state", string(e.state.GetState(sid))),
	)
	return e.finish(ctx, flow, sid, outcomeRestart, out, msgRestart(flow.Command))
}

func (e *Engine) currentFlow(sid int64) (*Flow, bool) {
	name, ok := state.Temp[string](e.state, sid, keyFlow)
	if !ok {
		return nil, false
	}
	f, ok := e.flows[name]
	return f, ok
}

func (e *Engine) flowName(sid int64) string {
	if f, ok := e.currentFlow(sid); ok {
		return f.Name
	}
	return "unknown"
}

func (e *Engine) writeFailed(ctx context.Context, event string, err error) {
	metrics.StoreWriteFailures.WithLabelValues(identity.Document).Inc()
	logger.Warn(ctx, component, event,
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
}

// parsePositive reads an integer in 1..limit, or the message to re-prompt with.
func parsePositive(text string, limit int64) (int64, string) {
	text = strings.TrimSpace(text)
	n, err := strconv.ParseInt(text, 10, 64)
	switch {
	case errors.Is(err, strconv.ErrRange) && strings.HasPrefix(text, "-"):
		return 0, msgNotPositive
	case errors.Is(err, strconv.ErrRange):
		return 0, msgTooLarge(limit)
	case err != nil:
		return 0, msgNotNumber
	case n <= 0:
		return 0, msgNotPositive
	case n > limit:
		return 0, msgTooLarge(limit)
	}
	return n, ""
}

func reply(ctx context.Context, out chat.Replier, msg chat.Message) error {
	if err := out.Reply(ctx, msg); err != nil {
		logger.Warn(ctx, component, "reply.fail",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return err
	}
	return nil
}
