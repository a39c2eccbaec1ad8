package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quanluon/gitgafit-web-sub000/errors"
	"github.com/quanluon/gitgafit-web-sub000/ledger"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

const (
	// DefaultMaxAttempts bounds consecutive failed dials before the
	// adapter gives up for this connection lifecycle.
	DefaultMaxAttempts = 5

	// DefaultBackoff is the fixed delay between dial attempts.
	DefaultBackoff = time.Second
)

// JobLedger is the mutation surface the adapter drives. Satisfied by
// *ledger.Ledger.
type JobLedger interface {
	StartGeneration(jobID string, genType ledger.GenerationType)
	UpdateProgress(jobID string, progress int, message string)
	CompleteGeneration(jobID, resultID string)
	FailGeneration(jobID, errMsg string)
}

// mutation maps one inbound event onto a ledger operation.
type mutation func(JobLedger, Event)

// dispatchTable builds the pure event-name -> ledger-mutation table.
// Event types absent from the table are ignored.
func dispatchTable() map[string]mutation {
	kinds := []struct {
		prefix string
		typ    ledger.GenerationType
	}{
		{"workout", ledger.TypeWorkout},
		{"meal", ledger.TypeMeal},
		{"inbody", ledger.TypeInbody},
		{"body-photo", ledger.TypeBodyPhoto},
	}

	table := make(map[string]mutation, len(kinds)*4)
	for _, k := range kinds {
		typ := k.typ
		table[k.prefix+"-started"] = func(jobs JobLedger, e Event) {
			jobs.StartGeneration(e.JobID, typ)
		}
		table[k.prefix+"-progress"] = func(jobs JobLedger, e Event) {
			progress := 0
			if e.Progress != nil {
				progress = *e.Progress
			}
			jobs.UpdateProgress(e.JobID, progress, e.Message)
		}
		table[k.prefix+"-complete"] = func(jobs JobLedger, e Event) {
			jobs.CompleteGeneration(e.JobID, e.ResultID())
		}
		table[k.prefix+"-error"] = func(jobs JobLedger, e Event) {
			jobs.FailGeneration(e.JobID, e.Error)
		}
	}
	return table
}

// Adapter maintains one live websocket connection per authenticated
// identity and translates inbound typed events into ledger mutations.
//
// A fresh Connect always tears the previous connection down first, removing
// every registered handler before closing the transport, so reconnect
// cycles never leak subscriptions or deliver duplicates.
type Adapter struct {
	url      string
	jobs     JobLedger
	registry *Registry
	dispatch map[string]mutation
	log      *zap.SugaredLogger

	maxAttempts int
	backoff     time.Duration
	dialer      *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	userID string

	writeMu sync.Mutex
}

// NewAdapter creates a realtime channel adapter. Zero values for
// maxAttempts and backoff select the defaults.
func NewAdapter(url string, jobs JobLedger, log *zap.SugaredLogger, maxAttempts int, backoff time.Duration) *Adapter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	return &Adapter{
		url:         url,
		jobs:        jobs,
		registry:    NewRegistry(),
		dispatch:    dispatchTable(),
		log:         log,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		dialer:      websocket.DefaultDialer,
	}
}

// On registers a consumer handler for an event type. Multiple independent
// handlers per type are supported.
func (a *Adapter) On(eventType string, handler Handler) UnsubscribeFunc {
	return a.registry.On(eventType, handler)
}

// Connect establishes the channel for a user, tearing down any prior
// connection first. The initial dial retries up to the attempt bound; after
// that the adapter keeps itself connected in the background until the bound
// is exhausted or Disconnect is called.
func (a *Adapter) Connect(ctx context.Context, userID string) error {
	a.Disconnect()

	connCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	a.cancel = cancel
	a.userID = userID
	a.mu.Unlock()

	// Ledger dispatch rides the same registry as consumer handlers, so
	// teardown removes both uniformly.
	for eventType, mutate := range a.dispatch {
		mutate := mutate
		a.registry.On(eventType, func(e Event) {
			mutate(a.jobs, e)
		})
	}

	conn, err := a.dialWithRetry(connCtx)
	if err != nil {
		cancel()
		a.registry.RemoveAll()
		return err
	}

	a.startSession(connCtx, conn)
	return nil
}

// Disconnect tears down the connection. Handler subscriptions are removed
// before the transport closes.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	cancel := a.cancel
	conn := a.conn
	a.cancel = nil
	a.conn = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.registry.RemoveAll()
	if conn != nil {
		conn.Close()
	}
}

// Connected reports whether a live connection is currently held.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil
}

// dialWithRetry attempts the websocket dial with fixed backoff until the
// attempt bound is exhausted.
func (a *Adapter) dialWithRetry(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		conn, _, err := a.dialer.DialContext(ctx, a.url, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		a.log.Debugw("Realtime dial failed",
			"attempt", attempt,
			"max_attempts", a.maxAttempts,
			"error", err,
		)

		if attempt < a.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.backoff):
			}
		}
	}
	return nil, errors.Wrapf(lastErr, "realtime channel unavailable after %d attempts", a.maxAttempts)
}

// startSession installs a freshly dialed connection and starts its pumps.
func (a *Adapter) startSession(ctx context.Context, conn *websocket.Conn) {
	a.mu.Lock()
	a.conn = conn
	userID := a.userID
	a.mu.Unlock()

	if err := a.register(conn, userID); err != nil {
		// Registration failures are logged, not fatal: the server may
		// still deliver events, and the next reconnect retries.
		a.log.Warnw("Realtime registration send failed",
			"user_id", userID,
			"error", err,
		)
	}

	go a.readPump(ctx, conn)
	go a.pingLoop(ctx, conn)

	a.log.Infow("Realtime channel connected", "user_id", userID)
}

// register announces the current identity to the server side of the channel.
func (a *Adapter) register(conn *websocket.Conn, userID string) error {
	payload, err := json.Marshal(registerPayload{UserID: userID})
	if err != nil {
		return errors.Wrap(err, "marshal register payload")
	}
	return a.writeEnvelope(conn, Envelope{Type: EventRegisterUser, Payload: payload})
}

func (a *Adapter) writeEnvelope(conn *websocket.Conn, env Envelope) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}

// readPump consumes inbound messages until the connection drops, then
// hands off to the bounded reconnect loop.
func (a *Adapter) readPump(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				a.handleReadError(err)
				go a.reconnect(ctx)
			}
			return
		}
		a.handleMessage(data)
	}
}

// handleReadError logs unexpected closures; normal closure codes stay quiet.
func (a *Adapter) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseNormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		a.log.Warnw("Realtime read error", "error", err)
	}
}

// pingLoop keeps the connection alive per the pong deadline contract.
func (a *Adapter) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// reconnect redials after a dropped connection. Exhausting the bound
// leaves the adapter silently degraded until the next explicit Connect.
func (a *Adapter) reconnect(ctx context.Context) {
	a.mu.Lock()
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.mu.Unlock()

	conn, err := a.dialWithRetry(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.log.Warnw("Realtime channel degraded", "error", err)
		}
		return
	}
	if ctx.Err() != nil {
		conn.Close()
		return
	}

	a.startSession(ctx, conn)
}

// handleMessage decodes one inbound frame and fans it out.
func (a *Adapter) handleMessage(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		a.log.Debugw("Dropping malformed realtime frame", "error", err)
		return
	}

	switch env.Type {
	case EventRegistrationSuccess:
		a.log.Debugw("Realtime registration confirmed")
		return
	case EventRegistrationError:
		a.log.Warnw("Realtime registration rejected", "payload", string(env.Payload))
		return
	case "":
		return
	}

	var event Event
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &event); err != nil {
			a.log.Debugw("Dropping malformed event payload",
				"event_type", env.Type,
				"error", err,
			)
			return
		}
	}

	// Events without a job id cannot be applied to the ledger
	if event.JobID == "" {
		a.log.Debugw("Dropping event without job id", "event_type", env.Type)
		return
	}

	a.registry.Emit(env.Type, event)
}
