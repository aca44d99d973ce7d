// Package client implements the per-server LwM2M client state machine
// (spec.md §4.4): connection lifecycle, CON retransmission, Register /
// Update / Deregister, and attribute-gated Observe notification.
package client

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/1stship/lwm2mcore/internal/engine"
	"github.com/1stship/lwm2mcore/internal/fluf"
	"github.com/1stship/lwm2mcore/internal/lwmetrics"
	"github.com/1stship/lwm2mcore/internal/payload"
	"github.com/1stship/lwm2mcore/internal/sdm"
	"github.com/1stship/lwm2mcore/internal/sdm/std"
	"github.com/1stship/lwm2mcore/internal/transport"
)

// State is one server connection's lifecycle stage (spec.md §4.4).
type State int

const (
	StateInit State = iota
	StateOffline
	StateOpenInProgress
	StateOnline
	StateRegister
	StateError
	StateCloseInProgress
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateOffline:
		return "OFFLINE"
	case StateOpenInProgress:
		return "OPEN_IN_PROGRESS"
	case StateOnline:
		return "ONLINE"
	case StateRegister:
		return "REGISTER"
	case StateError:
		return "ERROR"
	case StateCloseInProgress:
		return "CLOSE_IN_PROGRESS"
	default:
		return "UNKNOWN"
	}
}

// Retransmission parameters (CoAP RFC 7252 §4.8 defaults): ACK_TIMEOUT *
// 2^n backoff, capped at MAX_RETRANSMIT attempts.
const (
	ackTimeout     = 2 * time.Second
	maxRetransmit  = 4
	exchangeLifetime = 247 * time.Second
)

// exchange tracks one outstanding confirmable request awaiting its
// matching ACK/response, keyed by token (spec.md §4.4 "token-based exchange
// matching").
type exchange struct {
	req       *fluf.Descriptor
	sentAt    time.Time
	attempt   int
	transfer  fluf.Transfer
	replyCh   chan *fluf.Descriptor
}

// Server drives one bootstrap/registration server connection end to end.
type Server struct {
	ShortServerID int64
	URI           string
	Mode          std.SecurityMode
	Identity      []byte
	Key           []byte

	DM            *sdm.DataModel
	EndpointName  string
	Lifetime      int64
	ServerObj     *sdm.Object
	UpdatePending *bool

	Metrics *lwmetrics.Registry
	log     *logrus.Entry

	state      State
	conn       transport.Conn
	enc        *fluf.Encoder
	location   string
	exchanges  map[string]*exchange
	observers  map[string]*observation
}

// NewServer constructs a Server connection in state INIT.
func NewServer(ssid int64, uri string, mode std.SecurityMode, identity, key []byte, dm *sdm.DataModel, endpoint string, lifetime int64, serverObj *sdm.Object, updatePending *bool, metrics *lwmetrics.Registry, log *logrus.Entry) *Server {
	return &Server{
		ShortServerID: ssid, URI: uri, Mode: mode, Identity: identity, Key: key,
		DM: dm, EndpointName: endpoint, Lifetime: lifetime, ServerObj: serverObj, UpdatePending: updatePending,
		Metrics: metrics, log: log, state: StateInit,
		enc: fluf.NewEncoder(), exchanges: map[string]*exchange{}, observers: map[string]*observation{},
	}
}

// State reports the current lifecycle stage.
func (s *Server) State() State { return s.state }

func (s *Server) setState(st State) {
	prev := s.state
	s.state = st
	if s.Metrics != nil {
		ssid := strconv.FormatInt(s.ShortServerID, 10)
		s.Metrics.ConnectionState.WithLabelValues(ssid, prev.String()).Set(0)
		s.Metrics.ConnectionState.WithLabelValues(ssid, st.String()).Set(1)
	}
	if s.log != nil {
		s.log.WithField("state", st.String()).Debug("state transition")
	}
}

// Open dials the transport connection for this server, entering
// OPEN_IN_PROGRESS then ONLINE (or ERROR on failure).
func (s *Server) Open(ctx context.Context) error {
	s.setState(StateOpenInProgress)
	host := strings.TrimPrefix(strings.TrimPrefix(s.URI, "coaps://"), "coap://")

	var conn transport.Conn
	var err error
	if s.Mode == std.SecurityModeNoSec {
		conn, err = transport.OpenUDP(host, s.log)
	} else {
		conn, err = transport.OpenDTLSPSK(ctx, host, s.Identity, s.Key, s.log)
	}
	if err != nil {
		s.setState(StateError)
		return errors.Wrap(err, "client: open connection")
	}
	s.conn = conn
	s.setState(StateOnline)
	return nil
}

// Close tears down the connection (spec.md §4.4 CLOSE_IN_PROGRESS).
func (s *Server) Close() error {
	s.setState(StateCloseInProgress)
	if s.conn == nil {
		s.setState(StateOffline)
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.setState(StateOffline)
	return err
}

// Register sends the Register request (spec.md §4.4 REGISTER), building its
// link-format body from every non-excluded Object/Instance in dm.
func (s *Server) Register(ctx context.Context) error {
	s.setState(StateRegister)
	body := registerBody(s.DM)

	req := &fluf.Descriptor{
		Type: fluf.TypeConfirmable, Code: fluf.CodePOST,
		Path:          sdm.RootPath(),
		UriPath:       []string{"rd"},
		ContentFormat: fluf.CTLinkFormat,
		Attrs: fluf.AttrBag{
			Endpoint: s.EndpointName, Lifetime: int64ToIntPtr(s.Lifetime), Binding: "U", Lwm2mVersion: "1.0",
		},
		Payload: body,
	}

	resp, err := s.sendConfirmable(ctx, req)
	if err != nil {
		s.setState(StateError)
		if s.Metrics != nil {
			s.Metrics.RegistrationAttempts.WithLabelValues("register", "failure").Inc()
		}
		return err
	}
	if resp.Code != fluf.RespCreated {
		s.setState(StateError)
		if s.Metrics != nil {
			s.Metrics.RegistrationAttempts.WithLabelValues("register", "failure").Inc()
		}
		return errors.Errorf("client: register rejected, code=%d", resp.Code)
	}
	s.location = fluf.JoinLocationPath(resp.LocationPath)
	s.setState(StateOnline)
	if s.Metrics != nil {
		s.Metrics.RegistrationAttempts.WithLabelValues("register", "success").Inc()
	}
	return nil
}

// Update sends the Update request against the location Register returned.
func (s *Server) Update(ctx context.Context) error {
	if s.location == "" {
		return s.Register(ctx)
	}
	req := &fluf.Descriptor{
		Type: fluf.TypeConfirmable, Code: fluf.CodePOST,
		Path: sdm.RootPath(),
	}
	req.UriPath = strings.Split(strings.TrimPrefix(s.location, "/"), "/")
	resp, err := s.sendConfirmable(ctx, req)
	outcome := "success"
	if err != nil || resp.Code != fluf.RespChanged {
		outcome = "failure"
	}
	if s.Metrics != nil {
		s.Metrics.RegistrationAttempts.WithLabelValues("update", outcome).Inc()
	}
	if err != nil {
		return err
	}
	if resp.Code != fluf.RespChanged {
		return errors.Errorf("client: update rejected, code=%d", resp.Code)
	}
	if s.UpdatePending != nil {
		*s.UpdatePending = false
	}
	return nil
}

// RequestBootstrap sends the Bootstrap-Request (POST /bs?ep=<endpoint>,
// OMA-TS-LightweightM2M-V1_0_2 §5.2.7.1, spec.md §4.4) that must precede any
// write from a bootstrap server, grounded in the teacher's requestBootStrap.
func (s *Server) RequestBootstrap(ctx context.Context) error {
	req := &fluf.Descriptor{
		Type:    fluf.TypeConfirmable,
		Code:    fluf.CodePOST,
		Path:    sdm.RootPath(),
		UriPath: []string{"bs"},
		Attrs:   fluf.AttrBag{Endpoint: s.EndpointName},
	}
	resp, err := s.sendConfirmable(ctx, req)
	if err != nil {
		return errors.Wrap(err, "client: bootstrap request")
	}
	if resp.Code != fluf.RespChanged {
		return errors.Errorf("client: bootstrap request rejected, code=%d", resp.Code)
	}
	return nil
}

// Deregister sends the Deregister request and transitions to OFFLINE.
func (s *Server) Deregister(ctx context.Context) error {
	req := &fluf.Descriptor{Type: fluf.TypeConfirmable, Code: fluf.CodeDELETE, Path: sdm.RootPath()}
	req.UriPath = strings.Split(strings.TrimPrefix(s.location, "/"), "/")
	_, err := s.sendConfirmable(ctx, req)
	if s.Metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		s.Metrics.RegistrationAttempts.WithLabelValues("deregister", outcome).Inc()
	}
	_ = s.Close()
	return err
}

// HandleIncoming processes one datagram arrived from the server: either a
// matched response/ACK to an outstanding exchange or a server-initiated
// request (data-model operation, observe cancel) dispatched through
// engine.Process.
func (s *Server) HandleIncoming(raw []byte) (*fluf.Descriptor, error) {
	d, err := fluf.Decode(raw)
	if err != nil {
		return nil, err
	}
	if ex, ok := s.exchanges[string(d.Token)]; ok && (d.Type == fluf.TypeAcknowledgement || d.Type == fluf.TypeReset) {
		delete(s.exchanges, string(d.Token))
		ex.replyCh <- d
		return nil, nil
	}

	switch d.Op {
	case fluf.OpInfObserve, fluf.OpInfCancelObserve, fluf.OpInfObserveComposite, fluf.OpInfCancelObserveComposite:
		return s.handleObserveRequest(d)
	default:
		isBootstrap := s.Mode != std.SecurityModeNoSec && s.ServerObj == nil
		return engine.Process(s.DM, d, isBootstrap, &fluf.Transfer{})
	}
}

// pollSlice bounds how long sendConfirmable waits on a single TryRecv call
// while driving its own receive loop below, so a ctx cancellation or the
// next retransmit deadline is never missed by more than this much.
const pollSlice = 200 * time.Millisecond

// sendConfirmable sends req as CON, retransmitting with exponential backoff
// (ACK_TIMEOUT * 2^n, spec.md §4.4) up to maxRetransmit times, and returns
// the matched response. It drives the socket itself via pollOnce rather than
// relying on a separately-running Poll loop: Register/Update/Deregister are
// all called synchronously, before any such loop is guaranteed to be
// running, so the exchange has to service its own reads while it waits.
func (s *Server) sendConfirmable(ctx context.Context, req *fluf.Descriptor) (*fluf.Descriptor, error) {
	req.Token = s.enc.NextToken(4)
	buf, err := fluf.Encode(s.enc, req, 4)
	if err != nil {
		return nil, err
	}
	ex := &exchange{req: req, sentAt: time.Now(), replyCh: make(chan *fluf.Descriptor, 1)}
	s.exchanges[string(req.Token)] = ex
	defer delete(s.exchanges, string(req.Token))

	timeout := ackTimeout
	for attempt := 0; attempt <= maxRetransmit; attempt++ {
		if err := s.conn.Send(buf); err != nil {
			return nil, errors.Wrap(err, "client: send")
		}
		deadline := time.Now().Add(timeout)
		for {
			select {
			case resp := <-ex.replyCh:
				return resp, nil
			default:
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			slice := pollSlice
			if remaining < slice {
				slice = remaining
			}
			if err := s.pollOnce(slice); err != nil {
				return nil, err
			}
		}
		if s.Metrics != nil {
			s.Metrics.Retransmissions.Inc()
		}
		timeout *= 2
	}
	return nil, errors.New("client: exchange timed out after max retransmissions")
}

func int64ToIntPtr(v int64) *int {
	n := int(v)
	return &n
}

// registerBody renders every registrable Object/Instance as the Register
// request's link-format payload (spec.md §4.4, §3 ExcludedFromRegister).
func registerBody(dm *sdm.DataModel) []byte {
	out, _ := payload.NewOutputCodec(payload.FormatLinkFormat, sdm.RootPath())
	for _, obj := range dm.Objects() {
		if sdm.ExcludedFromRegister(obj.OID) {
			continue
		}
		_ = out.NewEntry(sdm.Entry{Path: sdm.ObjectPath(obj.OID)})
		for _, inst := range obj.Instances() {
			_ = out.NewEntry(sdm.Entry{Path: sdm.InstancePath(obj.OID, inst.IID)})
		}
	}
	buf := make([]byte, 1<<16)
	n, _, _ := out.GetPayload(buf)
	return buf[:n]
}
