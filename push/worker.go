package push

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/quanluon/gitgafit-web-sub000/errors"
)

// Worker is the receive side of the push pipeline. It runs out of process
// so pushes keep arriving while the agent UI is closed, accepts config
// handshake messages from the agent over a unix socket, and caches the
// push-service configuration in the shared durable store so it can
// initialize itself after its own restarts.
type Worker struct {
	store *Store
	path  string
	log   *zap.SugaredLogger

	mu     sync.Mutex
	config []byte
}

// NewWorker creates a worker serving on the given socket path.
func NewWorker(store *Store, socketPath string, log *zap.SugaredLogger) *Worker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Worker{
		store: store,
		path:  socketPath,
		log:   log,
	}
}

// SelfInitialize loads the cached push-service configuration. It is called
// at worker start; a missing cache is normal on a fresh install and simply
// means the worker waits for the agent's handshake.
func (w *Worker) SelfInitialize() error {
	payload, err := w.store.LoadConfig(ConfigKey)
	if errors.Is(err, errors.ErrNotFound) {
		w.log.Infow("No cached push config; waiting for agent handshake")
		return nil
	}
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.config = payload
	w.mu.Unlock()
	w.log.Infow("Initialized push worker from cached config")
	return nil
}

// Config returns the active push-service configuration, or nil when
// neither the cache nor a handshake has provided one yet.
func (w *Worker) Config() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.config
}

// Run serves the worker socket until ctx is cancelled. A stale socket file
// from a previous run is removed before listening.
func (w *Worker) Run(ctx context.Context) error {
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove stale worker socket")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", w.path)
	if err != nil {
		return errors.Wrap(err, "failed to listen on worker socket")
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	w.log.Infow("Push worker listening", "socket", w.path)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "worker accept failed")
		}
		go w.serve(conn)
	}
}

// serve handles a single one-message connection.
func (w *Worker) serve(conn net.Conn) {
	defer conn.Close()

	var msg Message
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		w.log.Warnw("Dropping malformed worker message", "error", err)
		writeAck(conn, errors.New("malformed message"))
		return
	}

	writeAck(conn, w.HandleMessage(msg))
}

// HandleMessage processes one agent message. Unknown message types are
// rejected so a version-skewed agent notices.
func (w *Worker) HandleMessage(msg Message) error {
	switch msg.Type {
	case MessageTypeFirebaseConfig:
		if len(msg.Payload) == 0 {
			return errors.New("empty config payload")
		}
		if err := w.store.SaveConfig(ConfigKey, msg.Payload); err != nil {
			w.log.Errorw("Failed to cache push config", "error", err)
			return err
		}
		w.mu.Lock()
		w.config = msg.Payload
		w.mu.Unlock()
		w.log.Infow("Cached push config from agent handshake")
		return nil
	default:
		return errors.Newf("unknown message type %q", msg.Type)
	}
}

func writeAck(conn net.Conn, err error) {
	ack := struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}{OK: err == nil}
	if err != nil {
		ack.Error = err.Error()
	}
	json.NewEncoder(conn).Encode(ack)
}
