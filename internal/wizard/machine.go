// Package wizard drives the multi-step apply flow of a single listing from
// opening it to one terminal outcome.
package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakopako/goapply/internal/browser"
	"github.com/jakopako/goapply/internal/config"
	"github.com/jakopako/goapply/internal/form"
	"github.com/jakopako/goapply/internal/log"
	"github.com/jakopako/goapply/internal/paginator"
	"github.com/jakopako/goapply/internal/types"
	"github.com/jakopako/goapply/internal/utils"
)

type State int

const (
	StateOpening State = iota
	StateEntering
	StateStepLoop
	StateSubmitting
	StateAbandoning
	stateDone
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateEntering:
		return "entering"
	case StateStepLoop:
		return "step-loop"
	case StateSubmitting:
		return "submitting"
	case StateAbandoning:
		return "abandoning"
	default:
		return "done"
	}
}

const (
	pollInterval = 250 * time.Millisecond
	// the discard prompt shows up right after dismissing, if at all
	discardPromptWait = 2 * time.Second
	maxReasonLength   = 200
)

// Result is the terminal outcome of one listing plus what could be read
// about it on the way.
type Result struct {
	Outcome types.Outcome
	Info    types.ListingInfo
	// Steps is the number of times continue was activated.
	Steps int
	// Trace lists the states the machine went through in order.
	Trace []State
}

// Machine applies to listings one at a time on a single page. It keeps no
// state between listings.
type Machine struct {
	page        browser.Page
	sel         config.Selectors
	resolver    *form.Resolver
	wait        time.Duration
	confirmWait time.Duration
	maxSteps    int
}

func New(page browser.Page, sel config.Selectors, wc config.WizardConfig, resolver *form.Resolver) *Machine {
	return &Machine{
		page:        page,
		sel:         sel,
		resolver:    resolver,
		wait:        wc.WaitTimeout(),
		confirmWait: wc.ConfirmTimeout(),
		maxSteps:    wc.MaxSteps,
	}
}

type control int

const (
	controlNone control = iota
	controlContinue
	controlSubmit
)

// attempt holds the state of one run of the machine.
type attempt struct {
	m       *Machine
	listing paginator.Listing
	res     *Result
	logger  *slog.Logger

	seen          map[string]bool
	submit        *browser.Element
	abandonReason string
	failure       error
}

// Run processes listing l and returns exactly one terminal outcome. Run is
// not interrupted by cancellation of ctx: every wait it does is bounded, so
// a listing that has been started is always finished.
func (m *Machine) Run(ctx context.Context, l paginator.Listing) (res Result) {
	logger := log.LoggerFromContext(ctx).With(slog.String("listing", l.ID))
	ctx = log.ContextWithLogger(context.WithoutCancel(ctx), logger)
	res.Info.Page = l.Page

	defer func() {
		if r := recover(); r != nil {
			logger.Error(fmt.Sprintf("wizard panicked: %v", r))
			res.Outcome = types.Failed(utils.ShortenString(fmt.Sprintf("panic: %v", r), maxReasonLength))
		}
	}()

	a := &attempt{
		m:       m,
		listing: l,
		res:     &res,
		logger:  logger,
		seen:    map[string]bool{},
	}
	state := StateOpening
	for state != stateDone {
		res.Trace = append(res.Trace, state)
		logger.Debug(fmt.Sprintf("entering state %s", state))
		var next State
		var outcome types.Outcome
		switch state {
		case StateOpening:
			next, outcome = a.open(ctx)
		case StateEntering:
			next, outcome = a.enter(ctx)
		case StateStepLoop:
			next, outcome = a.step(ctx)
		case StateSubmitting:
			next, outcome = a.submitApplication(ctx)
		case StateAbandoning:
			next, outcome = a.abandon(ctx)
		}
		if next == stateDone {
			res.Outcome = outcome
		}
		state = next
	}
	logger.Info(fmt.Sprintf("listing finished: %s", res.Outcome))
	return res
}

func (a *attempt) open(ctx context.Context) (State, types.Outcome) {
	page, sel := a.m.page, a.m.sel
	if err := page.Click(ctx, a.listing.Element); err != nil {
		a.logger.Warn(fmt.Sprintf("could not open listing: %v", err))
		return stateDone, types.Failed(types.ReasonCouldNotOpenListing)
	}
	title, err := page.WaitFor(ctx, sel.JobTitle, browser.ConditionVisible, a.m.wait)
	if err != nil {
		a.logger.Warn(fmt.Sprintf("could not retrieve job details: %v", err))
		return StateEntering, types.Outcome{}
	}
	if text, err := page.ReadText(ctx, title); err == nil {
		a.res.Info.Title = text
	}
	if company, err := page.Locate(ctx, sel.CompanyName); err == nil {
		if text, err := page.ReadText(ctx, company); err == nil {
			a.res.Info.Company = text
		}
	}
	a.logger.Info(fmt.Sprintf("applying to: %s at %s", utils.ShortenString(a.res.Info.Title, 80), a.res.Info.Company))
	return StateEntering, types.Outcome{}
}

func (a *attempt) enter(ctx context.Context) (State, types.Outcome) {
	page := a.m.page
	button, err := page.WaitFor(ctx, a.m.sel.ApplyButton, browser.ConditionClickable, a.m.wait)
	if err != nil {
		a.logger.Warn(fmt.Sprintf("could not apply to job: %v", err))
		return stateDone, types.Skipped(types.ReasonApplyEntryUnavailable)
	}
	if err := page.Click(ctx, button); err != nil {
		a.logger.Warn(fmt.Sprintf("could not apply to job: %v", err))
		return stateDone, types.Skipped(types.ReasonApplyEntryUnavailable)
	}
	return StateStepLoop, types.Outcome{}
}

func (a *attempt) step(ctx context.Context) (State, types.Outcome) {
	ctrl, el := a.probe(ctx)
	switch ctrl {
	case controlContinue:
		if a.res.Steps >= a.m.maxSteps {
			a.logger.Warn(fmt.Sprintf("wizard has more than %d steps", a.m.maxSteps))
			a.abandonReason = types.ReasonStepLimitExceeded
			return StateAbandoning, types.Outcome{}
		}
		step, err := form.Inspect(ctx, a.m.page, a.m.sel)
		if err != nil {
			a.failure = err
			return StateAbandoning, types.Outcome{}
		}
		fp := step.Fingerprint()
		if a.seen[fp] {
			a.abandonReason = types.ReasonWizardStalled
			return StateAbandoning, types.Outcome{}
		}
		a.seen[fp] = true
		a.m.resolver.Resolve(ctx, a.m.page, step)
		if err := a.m.page.Click(ctx, el); err != nil {
			a.failure = fmt.Errorf("could not continue: %w", err)
			return StateAbandoning, types.Outcome{}
		}
		a.res.Steps++
		if !a.awaitTransition(ctx, fp) {
			a.logger.Warn("wizard did not move on after continue")
			a.abandonReason = types.ReasonWizardStalled
			return StateAbandoning, types.Outcome{}
		}
		return StateStepLoop, types.Outcome{}
	case controlSubmit:
		if step, err := form.Inspect(ctx, a.m.page, a.m.sel); err == nil {
			a.m.resolver.Resolve(ctx, a.m.page, step)
		}
		a.submit = el
		return StateSubmitting, types.Outcome{}
	default:
		a.logger.Info("no continue or submit control found")
		return StateAbandoning, types.Outcome{}
	}
}

// probe waits for a continue or submit control. Continue takes precedence
// when both are shown.
func (a *attempt) probe(ctx context.Context) (control, *browser.Element) {
	page, sel := a.m.page, a.m.sel
	if _, err := page.WaitFor(ctx, sel.Continue+", "+sel.Submit, browser.ConditionClickable, a.m.wait); err != nil {
		return controlNone, nil
	}
	if el, err := page.Locate(ctx, sel.Continue); err == nil {
		return controlContinue, el
	}
	if el, err := page.Locate(ctx, sel.Submit); err == nil {
		return controlSubmit, el
	}
	return controlNone, nil
}

// awaitTransition reports whether the wizard shows a step other than prev
// within the wait timeout.
func (a *attempt) awaitTransition(ctx context.Context, prev string) bool {
	deadline := time.Now().Add(a.m.wait)
	for {
		step, err := form.Inspect(ctx, a.m.page, a.m.sel)
		if err == nil && step.Fingerprint() != prev {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}

func (a *attempt) submitApplication(ctx context.Context) (State, types.Outcome) {
	page, sel := a.m.page, a.m.sel
	if err := page.Click(ctx, a.submit); err != nil {
		a.failure = fmt.Errorf("could not submit: %w", err)
		return StateAbandoning, types.Outcome{}
	}
	a.logger.Info("application submitted")
	// the wizard carries its own dismiss control, so only the one inside the
	// confirmation dialog may be clicked here
	if _, err := page.WaitFor(ctx, sel.Confirmation, browser.ConditionVisible, a.m.confirmWait); err != nil {
		a.logger.Warn(fmt.Sprintf("no confirmation dialog to close: %v", err))
		return stateDone, types.Applied()
	}
	dismiss, err := page.WaitFor(ctx, sel.Confirmation+" "+sel.Dismiss, browser.ConditionClickable, a.m.confirmWait)
	if err != nil {
		a.logger.Warn(fmt.Sprintf("confirmation dialog has no close button: %v", err))
		return stateDone, types.Applied()
	}
	if err := page.Click(ctx, dismiss); err != nil {
		a.logger.Warn(fmt.Sprintf("could not close confirmation dialog: %v", err))
	}
	return stateDone, types.Applied()
}

func (a *attempt) abandon(ctx context.Context) (State, types.Outcome) {
	page, sel := a.m.page, a.m.sel
	dismiss, err := page.Locate(ctx, sel.Dismiss)
	if err != nil {
		a.logger.Warn(fmt.Sprintf("could not find close button: %v", err))
		return stateDone, types.Failed(types.ReasonCouldNotClose)
	}
	if err := page.Click(ctx, dismiss); err != nil {
		a.logger.Warn(fmt.Sprintf("could not close application: %v", err))
		return stateDone, types.Failed(types.ReasonCouldNotClose)
	}
	promptWait := min(discardPromptWait, a.m.confirmWait)
	if discard, err := page.WaitFor(ctx, sel.DiscardConfirm, browser.ConditionClickable, promptWait); err == nil {
		if err := page.Click(ctx, discard); err != nil {
			a.logger.Warn(fmt.Sprintf("could not discard application: %v", err))
		}
	}

	if a.failure != nil {
		a.logger.Warn(fmt.Sprintf("application abandoned after error: %v", a.failure))
		return stateDone, types.Failed(utils.ShortenString(a.failure.Error(), maxReasonLength))
	}
	reason := a.abandonReason
	if reason == "" {
		reason = types.ReasonNoActionableControl
	}
	a.logger.Info(fmt.Sprintf("application abandoned: %s", reason))
	return stateDone, types.Skipped(reason)
}
