package push

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quanluon/gitgafit-web-sub000/errors"
)

// State is the adapter's initialization state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateInitialized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Permission is the client's notification grant state. The adapter never
// solicits permission itself; it only proceeds when the grant already
// exists.
type Permission int

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

const (
	// configSendAttempts bounds the worker handshake retries. The worker
	// may still be starting when the agent initializes.
	configSendAttempts = 3
	configSendBackoff  = 500 * time.Millisecond
)

// ForegroundSource delivers push messages that arrive while the agent is
// in the foreground. Subscribe returns an unsubscribe func.
type ForegroundSource interface {
	Subscribe(handler func(Payload)) (func(), error)
}

// Handler receives push payloads fanned out by the adapter.
type Handler func(Payload)

// UnsubscribeFunc removes a previously registered handler.
type UnsubscribeFunc func()

// Options collects the adapter's collaborators. Store, Tokens, Registrar
// and Jobs are required; the rest have inert defaults.
type Options struct {
	Store      *Store
	Link       WorkerLink
	Tokens     TokenSource
	Registrar  Registrar
	Jobs       JobLedger
	Foreground ForegroundSource

	// Supported probes platform capability. Nil means supported.
	Supported func() bool
	// Permission reports the current grant state. Nil means granted.
	Permission func() Permission

	Platform  Platform
	AppConfig json.RawMessage
	Log       *zap.SugaredLogger
}

// Adapter owns push delivery for a session: the worker config handshake,
// token registration with the backend, and foreground message fan-out.
//
// Initialization is single-flight: concurrent Initialize calls share one
// in-flight attempt. A failed attempt is sticky for the session and only
// ForceReinitialize tries again, with two exceptions that stay quietly
// retryable: a missing permission grant and an auth failure during
// registration.
type Adapter struct {
	opts Options
	log  *zap.SugaredLogger

	mu         sync.Mutex
	state      State
	inflight   chan struct{}
	initErr    error
	lastToken  string
	registered bool

	handlers    map[int]Handler
	nextID      int
	unsubscribe func()
}

// NewAdapter creates an adapter from opts.
func NewAdapter(opts Options) *Adapter {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Adapter{
		opts:     opts,
		log:      log,
		handlers: make(map[int]Handler),
	}
}

// State returns the current initialization state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Initialize runs the push setup pipeline. It returns nil for the silent
// abort cases (unsupported platform, permission not yet granted) so
// callers treat push strictly as best-effort.
func (a *Adapter) Initialize(ctx context.Context) error {
	return a.run(ctx, false)
}

// ForceReinitialize re-runs the pipeline regardless of prior state. It is
// the only way out of the failed state and also forces backend
// re-registration of an unchanged token.
func (a *Adapter) ForceReinitialize(ctx context.Context) error {
	return a.run(ctx, true)
}

func (a *Adapter) run(ctx context.Context, force bool) error {
	a.mu.Lock()
	for a.state == StateInitializing {
		done := a.inflight
		a.mu.Unlock()
		<-done
		if !force {
			a.mu.Lock()
			err := a.initErr
			a.mu.Unlock()
			return err
		}
		a.mu.Lock()
	}

	if !force {
		switch a.state {
		case StateInitialized:
			a.mu.Unlock()
			return nil
		case StateFailed:
			err := a.initErr
			a.mu.Unlock()
			return err
		}
	}

	a.state = StateInitializing
	done := make(chan struct{})
	a.inflight = done
	a.mu.Unlock()

	state, err := a.initialize(ctx, force)

	a.mu.Lock()
	a.state = state
	a.initErr = err
	a.inflight = nil
	close(done)
	a.mu.Unlock()

	return err
}

// initialize executes the pipeline steps and reports the resulting state.
func (a *Adapter) initialize(ctx context.Context, force bool) (State, error) {
	if a.opts.Supported != nil && !a.opts.Supported() {
		a.log.Debugw("Push not supported on this platform")
		return StateFailed, nil
	}

	if a.opts.Permission != nil && a.opts.Permission() != PermissionGranted {
		a.log.Debugw("Push permission not granted; deferring initialization")
		return StateUninitialized, nil
	}

	// Cache the config before the handshake so a worker that restarts
	// later can self-initialize even if this send never lands.
	if len(a.opts.AppConfig) > 0 {
		if err := a.opts.Store.SaveConfig(ConfigKey, a.opts.AppConfig); err != nil {
			a.log.Warnw("Failed to cache push config", "error", err)
		}
		if err := a.sendConfig(ctx); err != nil {
			a.log.Warnw("Push worker handshake failed", "error", err)
			return StateFailed, err
		}
	}

	token, err := a.opts.Tokens.Token(ctx)
	if err != nil {
		a.log.Warnw("Failed to obtain push delivery token", "error", err)
		return StateFailed, errors.Wrap(err, "failed to obtain delivery token")
	}

	a.mu.Lock()
	skip := a.registered && token == a.lastToken && !force
	a.mu.Unlock()

	if skip {
		a.log.Debugw("Delivery token unchanged; skipping re-registration")
	} else if state, err := a.register(ctx, token); err != nil || state != StateInitialized {
		// Registration failures never break foreground delivery.
		if serr := a.subscribeForeground(); serr != nil {
			a.log.Warnw("Failed to subscribe foreground push", "error", serr)
		}
		return state, err
	}

	if err := a.subscribeForeground(); err != nil {
		return StateFailed, err
	}

	a.log.Infow("Push notifications initialized", "platform", a.opts.Platform)
	return StateInitialized, nil
}

// register binds the delivery token to this device on the backend.
func (a *Adapter) register(ctx context.Context, token string) (State, error) {
	deviceID, err := a.opts.Store.DeviceID()
	if err != nil {
		return StateFailed, err
	}

	err = a.opts.Registrar.Register(ctx, deviceID, token, a.opts.Platform)
	if err != nil {
		if errors.IsRetryableRegistration(err) {
			a.log.Warnw("Push registration unauthorized; will retry on next initialize")
			return StateUninitialized, nil
		}
		a.log.Errorw("Push registration failed", "error", err)
		return StateFailed, errors.Wrap(err, "push registration failed")
	}

	a.mu.Lock()
	a.registered = true
	a.lastToken = token
	a.mu.Unlock()
	return StateInitialized, nil
}

// sendConfig delivers the push-service configuration to the worker with
// bounded retries.
func (a *Adapter) sendConfig(ctx context.Context) error {
	if a.opts.Link == nil {
		return nil
	}

	msg := Message{Type: MessageTypeFirebaseConfig, Payload: a.opts.AppConfig}

	var err error
	for attempt := 1; attempt <= configSendAttempts; attempt++ {
		if err = a.opts.Link.Send(ctx, msg); err == nil {
			return nil
		}
		a.log.Debugw("Worker config send failed",
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(configSendBackoff):
		}
	}
	return errors.Wrapf(err, "worker unreachable after %d attempts", configSendAttempts)
}

// subscribeForeground (re)wires foreground push delivery into Deliver.
// Any prior subscription is removed first so repeated initialization
// never double-delivers.
func (a *Adapter) subscribeForeground() error {
	if a.opts.Foreground == nil {
		return nil
	}

	a.mu.Lock()
	old := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()
	if old != nil {
		old()
	}

	unsub, err := a.opts.Foreground.Subscribe(a.Deliver)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe foreground push")
	}

	a.mu.Lock()
	a.unsubscribe = unsub
	a.mu.Unlock()
	return nil
}

// Deliver applies a push payload to the ledger and fans it out to
// registered handlers. It is the entry point for foreground messages and
// is safe to call from any goroutine.
func (a *Adapter) Deliver(p Payload) {
	p.Apply(a.opts.Jobs)

	a.mu.Lock()
	handlers := make([]Handler, 0, len(a.handlers))
	for _, h := range a.handlers {
		handlers = append(handlers, h)
	}
	a.mu.Unlock()

	for _, h := range handlers {
		h(p)
	}
}

// OnMessage registers a handler for delivered push payloads. The returned
// func removes it and is idempotent.
func (a *Adapter) OnMessage(h Handler) UnsubscribeFunc {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.handlers[id] = h
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.handlers, id)
			a.mu.Unlock()
		})
	}
}

// Close drops the foreground subscription and all handlers. The adapter's
// durable state (device identity, cached config) is untouched.
func (a *Adapter) Close() {
	a.mu.Lock()
	unsub := a.unsubscribe
	a.unsubscribe = nil
	a.handlers = make(map[int]Handler)
	a.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
