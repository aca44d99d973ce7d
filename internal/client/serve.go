package client

import (
	"context"
	"time"

	"github.com/1stship/lwm2mcore/internal/fluf"
)

func encodeResponse(s *Server, resp *fluf.Descriptor) ([]byte, error) {
	return fluf.Encode(s.enc, resp, 0)
}

// Poll reads one datagram (if any arrives within timeout), dispatches it
// through HandleIncoming, and sends back whatever response that produced
// (a server-initiated READ/WRITE/etc needs its own reply, distinct from the
// ACK/response sendConfirmable is already waiting on). Safe to call in a
// tight loop from the owning goroutine; a nil datagram (timeout) is a no-op.
func (s *Server) Poll(timeout time.Duration) error {
	if s.conn == nil {
		return nil
	}
	return s.pollOnce(timeout)
}

// pollOnce is the shared receive step behind Poll and sendConfirmable: it
// reads at most one datagram within timeout, dispatches it through
// HandleIncoming, and sends back whatever response that produced.
// sendConfirmable drives this directly while it waits on its own exchange,
// since Register/Update/Deregister run synchronously and can't depend on a
// separately-scheduled Poll loop having already started.
func (s *Server) pollOnce(timeout time.Duration) error {
	raw, err := s.conn.TryRecv(timeout)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	resp, err := s.HandleIncoming(raw)
	if err != nil || resp == nil {
		return err
	}
	out, err := encodeResponse(s, resp)
	if err != nil {
		return err
	}
	return s.conn.Send(out)
}

// StartUpdate runs the periodic Update loop at interval until stopCh fires,
// mirroring the teacher's Lwm2m.StartUpdate ticker.
func (s *Server) StartUpdate(ctx context.Context, interval time.Duration, stopCh <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = s.Update(ctx)
		case <-stopCh:
			return
		}
	}
}

// StartObserving runs the periodic notification Tick loop at interval until
// stopCh fires, mirroring the teacher's Lwm2m.StartObserving ticker.
func (s *Server) StartObserving(interval time.Duration, stopCh <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Tick()
		case <-stopCh:
			return
		}
	}
}
