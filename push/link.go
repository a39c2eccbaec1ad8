package push

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/quanluon/gitgafit-web-sub000/errors"
)

// WorkerLink is the message channel between the agent and the background
// push worker.
type WorkerLink interface {
	// Send delivers one message to the worker. It returns an error when
	// the worker is unreachable; callers decide whether to retry.
	Send(ctx context.Context, msg Message) error
}

// SocketLink talks to the worker over a unix domain socket with
// newline-delimited JSON frames.
type SocketLink struct {
	path        string
	dialTimeout time.Duration
}

// NewSocketLink creates a link for the worker socket at path.
func NewSocketLink(path string) *SocketLink {
	return &SocketLink{
		path:        path,
		dialTimeout: 2 * time.Second,
	}
}

// Send dials the worker, writes one frame, and waits for the ack line.
// Each send uses a fresh connection; the worker treats connections as
// one message each.
func (l *SocketLink) Send(ctx context.Context, msg Message) error {
	d := net.Dialer{Timeout: l.dialTimeout}
	conn, err := d.DialContext(ctx, "unix", l.path)
	if err != nil {
		return errors.Wrap(errors.ErrWorkerUnavailable, err.Error())
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(l.dialTimeout))
	}

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return errors.Wrap(err, "failed to write worker message")
	}

	var ack struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(conn).Decode(&ack); err != nil {
		return errors.Wrap(err, "failed to read worker ack")
	}
	if !ack.OK {
		return errors.Newf("worker rejected message: %s", ack.Error)
	}
	return nil
}
