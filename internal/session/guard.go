package session

import (
	"context"
	"sync"
)

// ExitMessage is what the user is asked before leaving a running quiz.
const ExitMessage = "If you go back, the quiz will be submitted automatically. Are you sure?"

// Navigator is the front end's exit primitive: a browser history entry, a terminal interrupt, etc.
type Navigator interface {
	// Block takes ownership of the exit path so leaving is intercepted instead of silent.
	Block()
	// Restore re-installs the block after the user cancelled an exit.
	Restore()
	// Release hands the exit path back.
	Release()
}

// Prompter asks the user for an explicit confirm/cancel decision.
type Prompter interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

type PromptFunc func(ctx context.Context, message string) (bool, error)

func (f PromptFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// Decision is a Prompter whose answer is already known, e.g. a browser that ran window.confirm itself.
type Decision bool

func (d Decision) Confirm(context.Context, string) (bool, error) {
	return bool(d), nil
}

type ExitOutcome string

const (
	// ExitAllowed means the guard was not armed and navigation proceeds.
	ExitAllowed ExitOutcome = "allowed"
	// ExitCancelled means the user stayed; the guard is still armed.
	ExitCancelled ExitOutcome = "cancelled"
	// ExitConfirmed means the user left and the session was submitted as if time ran out.
	ExitConfirmed ExitOutcome = "confirmed"
)

// Guard implements a guarded exit: once armed, leaving requires an explicit decision.
type Guard struct {
	onConfirm func(ctx context.Context) error

	mu    sync.Mutex
	armed bool
	nav   Navigator
}

func NewGuard(onConfirm func(ctx context.Context) error) *Guard {
	return &Guard{onConfirm: onConfirm}
}

func (g *Guard) Arm(nav Navigator) {
	if nav == nil {
		nav = noopNavigator{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.armed {
		return
	}
	g.armed = true
	g.nav = nav
	nav.Block()
}

func (g *Guard) Disarm() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.armed {
		return
	}
	g.armed = false
	g.nav.Release()
	g.nav = nil
}

func (g *Guard) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.armed
}

// Intercept handles one exit attempt. The prompt runs without holding the guard, so the clock may expire
// while the user is deciding; the confirmed submission is then a no-op.
func (g *Guard) Intercept(ctx context.Context, p Prompter) (ExitOutcome, error) {
	if !g.Armed() {
		return ExitAllowed, nil
	}

	ok, err := p.Confirm(ctx, ExitMessage)
	if err != nil || !ok {
		g.restore()
		return ExitCancelled, err
	}

	return ExitConfirmed, g.onConfirm(ctx)
}

func (g *Guard) restore() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.armed {
		g.nav.Restore()
	}
}

type noopNavigator struct{}

func (noopNavigator) Block()   {}
func (noopNavigator) Restore() {}
func (noopNavigator) Release() {}
