package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rschio/huestream/bridgeapi"
	"github.com/rschio/huestream/errs"
	"github.com/rschio/huestream/model"
	"github.com/rschio/huestream/transport"
)

var errReconnectExhausted = errors.New("reconnect attempts exhausted")

// State is the explicit lifecycle of a streaming session.
type State int

const (
	StateIdle State = iota
	StateHandshakeInProgress
	StateActive
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshakeInProgress:
		return "handshake_in_progress"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// KeepAliveInterval is how often the keep-alive worker retransmits the
// last sent datagram.
const KeepAliveInterval = 9500 * time.Millisecond

// MaxReconnectAttempts is the bounded reconnect cap.
const MaxReconnectAttempts = 3

// frameQueueCapacity bounds the input queue to a small, documented MPSC
// channel instead of growing unbounded. A full queue drops the new
// frame; SetColors logs the drop and returns nil rather than blocking
// the hot path.
const frameQueueCapacity = 8

// dialer abstracts transport.Dial so tests can substitute a fake
// transport without a real DTLS peer.
type dialer func(ctx context.Context, ip string, identity, psk []byte) (sender, error)

// sender is the subset of *transport.Transport the session depends on.
type sender interface {
	Send([]byte) error
	Close() error
}

func defaultDialer(ctx context.Context, ip string, identity, psk []byte) (sender, error) {
	return transport.Dial(ctx, ip, identity, psk)
}

// Session owns exactly one UDP/DTLS socket and exactly two worker
// goroutines while Active.
type Session struct {
	bridge            model.Bridge
	ent               *bridgeapi.EntertainmentClient
	configID          string
	log               zerolog.Logger
	dial              dialer
	keepAliveInterval time.Duration

	mu              sync.Mutex
	state           State
	colorSpace      model.ColorSpace
	transport       sender
	lastSent        []byte
	lastErr         error
	reconnectMu     sync.Mutex
	reconnectCount  int

	frames   chan []ChannelColor
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New creates a Session for the given bridge and entertainment
// configuration. It does not start streaming; call Start.
func New(bridge model.Bridge, ent *bridgeapi.EntertainmentClient, configID string, log zerolog.Logger) *Session {
	return &Session{
		bridge:            bridge,
		ent:               ent,
		configID:          configID,
		log:               log,
		dial:              defaultDialer,
		state:             StateIdle,
		colorSpace:        model.ColorSpaceRGB,
		keepAliveInterval: KeepAliveInterval,
	}
}

// SetColorSpace changes which wire interpretation subsequent datagrams
// use. The change takes effect on the NEXT datagram sent, whether
// keep-alive or data, since the header is rebuilt at send time.
func (s *Session) SetColorSpace(cs model.ColorSpace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colorSpace = cs
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsStreaming reports whether the session is Active.
func (s *Session) IsStreaming() bool {
	return s.State() == StateActive
}

// LastError returns the latched transport error, if reconnection has
// been exhausted, so callers can surface it to the user.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Start issues the REST start action, builds the zero datagram,
// handshakes the DTLS transport, then spawns the keep-alive and
// input-drain workers.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return errs.ErrAlreadyStreaming
	}
	s.state = StateHandshakeInProgress
	colorSpace := s.colorSpace
	s.mu.Unlock()

	if err := s.ent.StartConfiguration(ctx, s.configID); err != nil {
		s.setState(StateIdle)
		return err
	}

	zero := zeroDatagram(s.configID, colorSpace)

	identity := s.bridge.PSKIdentity()
	psk, err := s.bridge.PSKKey()
	if err != nil {
		s.ent.StopConfiguration(ctx, s.configID) //nolint:errcheck // best-effort unwind of the REST start
		s.setState(StateIdle)
		return &errs.DTLSHandshakeError{Cause: err}
	}

	tr, err := s.dial(ctx, s.bridge.IPAddress, identity, psk)
	if err != nil {
		s.ent.StopConfiguration(ctx, s.configID) //nolint:errcheck
		s.setState(StateIdle)
		return err
	}

	s.mu.Lock()
	s.transport = tr
	s.lastSent = zero
	s.lastErr = nil
	s.state = StateActive
	s.mu.Unlock()

	s.reconnectMu.Lock()
	s.reconnectCount = 0
	s.reconnectMu.Unlock()

	s.frames = make(chan []ChannelColor, frameQueueCapacity)
	s.shutdown = make(chan struct{})

	s.wg.Add(2)
	go s.keepAliveLoop()
	go s.inputDrainLoop()

	return nil
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// SetColors validates and enqueues a frame. All channels in the frame
// are delivered in a single datagram, so a receiver never sees a
// partially-updated set of lights. If the queue is full, the frame is
// dropped and SetColors returns immediately without blocking the
// caller.
func (s *Session) SetColors(frame []ChannelColor) error {
	if len(frame) == 0 {
		return errs.ErrInvalidColor
	}
	for _, ch := range frame {
		if err := ch.Color.Validate(); err != nil {
			return err
		}
	}

	if s.State() != StateActive {
		return errs.ErrNotStreaming
	}

	select {
	case s.frames <- frame:
	default:
		s.log.Warn().Msg("stream: frame queue full, dropping frame")
	}
	return nil
}

// Stop signals shutdown, joins both workers (one 10s timeout for the
// pair, not 10s per worker), closes the transport, then issues a
// best-effort REST stop.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return errs.ErrNotStreaming
	}
	s.state = StateStopping
	shutdown := s.shutdown
	s.mu.Unlock()

	// Only one caller ever observes StateActive above and transitions
	// past it, so this close can never race with another Stop call.
	close(shutdown)

	joined := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-time.After(10 * time.Second):
		s.log.Error().Msg("stream: worker join timed out")
	}

	s.mu.Lock()
	tr := s.transport
	s.mu.Unlock()
	if tr != nil {
		if err := tr.Close(); err != nil {
			s.log.Error().Err(err).Msg("stream: transport close failed")
		}
	}

	if err := s.ent.StopConfiguration(ctx, s.configID); err != nil {
		s.log.Error().Err(err).Msg("stream: REST stop failed")
	}

	s.setState(StateIdle)
	return nil
}

func (s *Session) keepAliveLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.mu.Lock()
			datagram := s.lastSent
			colorSpace := s.colorSpace
			s.mu.Unlock()
			if datagram == nil {
				continue
			}
			// Rebuild the color-space header byte (offset 14) so a
			// SetColorSpace call since the last data send applies here too.
			datagram = append([]byte(nil), datagram...)
			datagram[14] = byte(colorSpace)
			s.sendWithReconnect(datagram)
		}
	}
}

func (s *Session) inputDrainLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.shutdown:
			return
		case frame := <-s.frames:
			s.mu.Lock()
			colorSpace := s.colorSpace
			s.mu.Unlock()

			datagram := Encode(s.configID, colorSpace, frame)
			if s.sendWithReconnect(datagram) {
				s.mu.Lock()
				s.lastSent = datagram
				s.mu.Unlock()
			}
		case <-time.After(1 * time.Second):
			// Wake periodically to re-check shutdown even with no
			// frames pending.
		}
	}
}

// sendWithReconnect sends datagram over the current transport. On a
// transport error it runs the bounded reconnect policy and reports
// whether the datagram (or a post-reconnect retry of it) was
// ultimately delivered.
func (s *Session) sendWithReconnect(datagram []byte) bool {
	s.mu.Lock()
	tr := s.transport
	s.mu.Unlock()
	if tr == nil {
		return false
	}

	if err := tr.Send(datagram); err == nil {
		return true
	}

	if !s.reconnect() {
		s.mu.Lock()
		s.lastErr = &errs.TransportError{Cause: errReconnectExhausted}
		s.mu.Unlock()
		s.log.Error().Msg("stream: reconnect exhausted, dropping frame")
		return false
	}

	s.mu.Lock()
	tr = s.transport
	s.mu.Unlock()
	if tr == nil {
		return false
	}
	if err := tr.Send(datagram); err != nil {
		s.log.Error().Err(err).Msg("stream: send failed after reconnect")
		return false
	}
	return true
}

// reconnect closes the current transport and re-handshakes against
// the same bridge, guarded so only one reconnect sequence runs at a
// time. On a send failure it retries the handshake immediately, up to
// MaxReconnectAttempts consecutive failures (spec §4.7.3: "after 3
// consecutive handshake failures ... no further reconnect attempts
// occur"). It returns true on success, resetting the attempt counter;
// false once the cap is reached, at which point the counter stays
// latched at the cap so subsequent send failures don't re-attempt the
// handshake at all — the session remains Active but further sends are
// dropped (spec §9 Open Question 2) until Stop/Start cycles it.
func (s *Session) reconnect() bool {
	s.reconnectMu.Lock()
	defer s.reconnectMu.Unlock()

	if s.reconnectCount >= MaxReconnectAttempts {
		return false
	}

	s.mu.Lock()
	old := s.transport
	identity := s.bridge.PSKIdentity()
	ip := s.bridge.IPAddress
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}

	psk, err := s.bridge.PSKKey()
	if err != nil {
		s.reconnectCount = MaxReconnectAttempts
		return false
	}

	for s.reconnectCount < MaxReconnectAttempts {
		tr, err := s.dial(context.Background(), ip, identity, psk)
		if err == nil {
			s.mu.Lock()
			s.transport = tr
			s.mu.Unlock()
			s.reconnectCount = 0
			return true
		}

		s.reconnectCount++
		s.log.Warn().Err(err).Int("attempt", s.reconnectCount).Msg("stream: reconnect failed")
	}

	s.log.Error().Msg("stream: reconnect attempts exhausted")
	return false
}
