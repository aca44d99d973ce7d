package client

import (
	"time"

	"github.com/1stship/lwm2mcore/internal/engine"
	"github.com/1stship/lwm2mcore/internal/fluf"
	"github.com/1stship/lwm2mcore/internal/payload"
	"github.com/1stship/lwm2mcore/internal/sdm"
)

// observation is one server-registered Observe target: the path being
// watched, its write-attributes (pmin/pmax/gt/lt/st), and enough state to
// decide whether a given tick's value crosses a notification threshold
// (spec.md §4.4 supplement, RFC 7641).
type observation struct {
	path      sdm.Path
	token     []byte
	observeN  uint32
	attrs     fluf.AttrBag
	lastSent  time.Time
	lastValue sdm.Value
	haveLast  bool
}

// handleObserveRequest registers or cancels an observation and sends the
// initial notification (GET-with-Observe's own response, RFC 7641 §3.1).
func (s *Server) handleObserveRequest(d *fluf.Descriptor) (*fluf.Descriptor, error) {
	key := string(d.Token)

	if d.Op == fluf.OpInfCancelObserve || d.Op == fluf.OpInfCancelObserveComposite {
		// An untracked token's cancellation is silently accepted rather
		// than rejected (Open Question in spec.md §9, resolved: the
		// server may retry a cancel after a restart lost our state, and
		// CoAP has no distinct "already cancelled" response code).
		delete(s.observers, key)
		resp, err := s.readForObserve(d, 0)
		return resp, err
	}

	obs := &observation{path: d.Path, token: append([]byte(nil), d.Token...), attrs: d.Attrs}
	s.observers[key] = obs

	resp, err := s.readForObserve(d, 1)
	if err == nil && resp != nil {
		obs.lastSent = timeNow()
	}
	return resp, err
}

// readForObserve runs the underlying READ through engine.Process and stamps
// the response with the Observe option value the caller requested.
func (s *Server) readForObserve(d *fluf.Descriptor, observeValue uint32) (*fluf.Descriptor, error) {
	readOp := fluf.OpDMRead
	if d.Op == fluf.OpInfObserveComposite || d.Op == fluf.OpInfCancelObserveComposite {
		readOp = fluf.OpDMReadComposite
	}
	readReq := *d
	readReq.Op = readOp
	resp, err := engine.Process(s.DM, &readReq, false, &fluf.Transfer{})
	if err != nil {
		return nil, err
	}
	resp.ObservePresent = true
	resp.ObserveValue = observeValue
	return resp, nil
}

// Tick evaluates every active observation against the current data model
// and sends a NON notification to any that are due, per the pmin/pmax/gt/
// lt/st gating spec.md §4.4 describes. Call this on a short, regular
// interval (e.g. once a second) from the owning event loop.
func (s *Server) Tick() {
	now := timeNow()
	for key, obs := range s.observers {
		ctx, err := sdm.Begin(s.DM, sdm.OpRead, false, obs.path)
		if err != nil {
			continue
		}
		e, err := sdm.ReadEntry(ctx)
		_ = sdm.End(ctx)
		if err != nil {
			continue
		}

		due, reason := s.dueToNotify(obs, e.Value, now)
		if !due {
			continue
		}
		if err := s.notify(obs, e.Value); err != nil {
			if s.log != nil {
				s.log.WithError(err).Warn("notify failed")
			}
			continue
		}
		obs.lastSent = now
		obs.lastValue = e.Value
		obs.haveLast = true
		if s.Metrics != nil {
			s.Metrics.Notifications.WithLabelValues(reason).Inc()
		}
		s.observers[key] = obs
	}
}

// dueToNotify implements the attribute-gated timing rule: never before
// pmin has elapsed since the last notification; always once pmax has
// elapsed (resolving the Open Question in spec.md §9 as "half the
// configured lifetime" does NOT apply here — pmax is an explicit
// server-supplied attribute, not derived from lifetime); in between, only
// when the value crosses gt/lt or moves by at least st, or, with none of
// gt/lt/st set or for a non-numeric value, on any change.
func (s *Server) dueToNotify(obs *observation, v sdm.Value, now time.Time) (bool, string) {
	elapsed := now.Sub(obs.lastSent)
	if obs.attrs.Pmin != nil && elapsed < time.Duration(*obs.attrs.Pmin)*time.Second {
		return false, ""
	}
	if obs.attrs.Pmax != nil && elapsed >= time.Duration(*obs.attrs.Pmax)*time.Second {
		return true, "pmax"
	}
	if !obs.haveLast {
		return true, "pmax"
	}
	if crossedThreshold(obs, v) {
		return true, "threshold"
	}
	return false, ""
}

func crossedThreshold(obs *observation, v sdm.Value) bool {
	cur, ok := asFloat(v)
	if !ok {
		return !valuesEqual(obs.lastValue, v)
	}
	if obs.attrs.Gt == nil && obs.attrs.Lt == nil && obs.attrs.St == nil {
		// No numeric gate configured: fall back to "notify on any change",
		// the teacher's own unconditional-change rule (spec.md §4.4
		// supplement; see DESIGN.md's write-attributes Open Question).
		return !valuesEqual(obs.lastValue, v)
	}
	prev, _ := asFloat(obs.lastValue)
	if obs.attrs.Gt != nil && cur > *obs.attrs.Gt && prev <= *obs.attrs.Gt {
		return true
	}
	if obs.attrs.Lt != nil && cur < *obs.attrs.Lt && prev >= *obs.attrs.Lt {
		return true
	}
	if obs.attrs.St != nil {
		delta := cur - prev
		if delta < 0 {
			delta = -delta
		}
		if delta >= *obs.attrs.St {
			return true
		}
	}
	return false
}

func asFloat(v sdm.Value) (float64, bool) {
	switch v.Type {
	case sdm.TypeInt:
		return float64(v.Int), true
	case sdm.TypeUint:
		return float64(v.Uint), true
	case sdm.TypeDouble:
		return v.Double, true
	default:
		return 0, false
	}
}

func valuesEqual(a, b sdm.Value) bool {
	if a.Type != b.Type {
		return false
	}
	return a.AsString() == b.AsString() && a.Int == b.Int && a.Bool == b.Bool
}

// notify sends a NON-confirmable notification carrying the observation's
// current value, incrementing its Observe sequence (RFC 7641 §4.4).
func (s *Server) notify(obs *observation, v sdm.Value) error {
	obs.observeN++
	out, err := payload.NewOutputCodec(payload.FormatSenMLCBOR, obs.path)
	if err != nil {
		return err
	}
	if err := out.NewEntry(sdm.Entry{Path: obs.path, Type: v.Type, Value: v}); err != nil {
		return err
	}
	buf := make([]byte, 2048)
	n, _, err := out.GetPayload(buf)
	if err != nil {
		return err
	}
	d := &fluf.Descriptor{
		Type: fluf.TypeNonConfirmable, Code: fluf.RespContent,
		Token: obs.token, MessageID: s.enc.NextMessageID(),
		ContentFormat: fluf.CTSenMLCBOR, ObservePresent: true, ObserveValue: obs.observeN,
		Payload: buf[:n],
	}
	raw, err := fluf.Encode(s.enc, d, 0)
	if err != nil {
		return err
	}
	return s.conn.Send(raw)
}

// timeNow is a seam so tests can substitute a deterministic clock; it is
// the only place this package calls time.Now directly.
var timeNow = time.Now
