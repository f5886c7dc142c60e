package stream

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rschio/huestream/bridgeapi"
	"github.com/rschio/huestream/errs"
	"github.com/rschio/huestream/httpclient"
	"github.com/rschio/huestream/model"
)

// fakeTransport records every sendto call and can be told to fail.
type fakeTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	failing bool
	closed  bool
}

func (f *fakeTransport) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return &errs.TransportError{Cause: errors.New("fake socket closed")}
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestSession(t *testing.T, tr *fakeTransport, startStopLog *[]string) (*Session, *httptest.Server) {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		*startStopLog = append(*startStopLog, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))

	client := httpclient.New(srv.Listener.Addr().String(), httpclient.WithHTTPClient(srv.Client()))
	ent := bridgeapi.NewEntertainmentClient(client)

	bridge := model.Bridge{
		IPAddress:        "192.0.2.1",
		HueApplicationID: "app-id",
		ClientKey:        "B42753E1E1605A1AB90E1B6A0ECF9C51",
	}

	sess := New(bridge, ent, "2022ffc4-1b73-4a43-b376-4c45369bf207", zerolog.Nop())
	sess.dial = func(ctx context.Context, ip string, identity, psk []byte) (sender, error) {
		return tr, nil
	}
	return sess, srv
}

func TestStartStopSequencing(t *testing.T) {
	tr := &fakeTransport{}
	var log []string
	sess, srv := newTestSession(t, tr, &log)
	defer srv.Close()

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.State() != StateActive {
		t.Fatalf("expected Active, got %v", sess.State())
	}

	if err := sess.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sess.State() != StateIdle {
		t.Fatalf("expected Idle, got %v", sess.State())
	}
	if !tr.closed {
		t.Fatal("expected transport to be closed")
	}

	if len(log) != 2 || log[0] != "PUT /clip/v2/resource/entertainment_configuration/2022ffc4-1b73-4a43-b376-4c45369bf207" {
		t.Fatalf("unexpected REST call log: %v", log)
	}
}

func TestStopOnIdleIsNotStreaming(t *testing.T) {
	tr := &fakeTransport{}
	var log []string
	sess, srv := newTestSession(t, tr, &log)
	defer srv.Close()

	if err := sess.Stop(context.Background()); !errors.Is(err, errs.ErrNotStreaming) {
		t.Fatalf("expected ErrNotStreaming, got %v", err)
	}
}

func TestSetColorsAtomicDelivery(t *testing.T) {
	tr := &fakeTransport{}
	var log []string
	sess, srv := newTestSession(t, tr, &log)
	defer srv.Close()

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Stop(context.Background())

	before := tr.sentCount()
	frame := []ChannelColor{
		{ChannelID: 0, Color: model.RGB8(1, 2, 3)},
		{ChannelID: 1, Color: model.RGB8(4, 5, 6)},
	}
	if err := sess.SetColors(frame); err != nil {
		t.Fatalf("SetColors: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for tr.sentCount() == before {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for frame to be sent")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if got := tr.sentCount() - before; got != 1 {
		t.Fatalf("expected exactly one additional sendto call, got %d", got)
	}
}

func TestSetColorsRejectsInvalidColor(t *testing.T) {
	tr := &fakeTransport{}
	var log []string
	sess, srv := newTestSession(t, tr, &log)
	defer srv.Close()

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Stop(context.Background())

	before := tr.sentCount()
	frame := []ChannelColor{{ChannelID: 0, Color: model.XYB(1.5, 0, 0)}}
	if err := sess.SetColors(frame); !errors.Is(err, errs.ErrInvalidColor) {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if tr.sentCount() != before {
		t.Fatal("expected no datagram sent for an invalid frame")
	}
}

func TestKeepAliveCadence(t *testing.T) {
	tr := &fakeTransport{}
	var log []string
	sess, srv := newTestSession(t, tr, &log)
	defer srv.Close()

	// Inject a short interval so the cadence (spec §8 "keep-alive
	// cadence": sends every KeepAliveInterval using the latest
	// last_sent_datagram) can be observed without a 9.5s+ real sleep.
	const interval = 30 * time.Millisecond
	sess.keepAliveInterval = interval

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Stop(context.Background())

	// Wait for at least 3 keep-alive sends, spaced roughly `interval`
	// apart, well within a generous timeout.
	const wantSends = 3
	deadline := time.After(2 * time.Second)
	for tr.sentCount() < wantSends {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d keep-alive sends, got %d", wantSends, tr.sentCount())
		case <-time.After(interval / 2):
		}
	}

	tr.mu.Lock()
	sent := append([][]byte(nil), tr.sent[:wantSends]...)
	tr.mu.Unlock()

	zero := zeroDatagram(sess.configID, model.ColorSpaceRGB)
	for i, datagram := range sent {
		if !bytes.Equal(datagram, zero) {
			t.Fatalf("keep-alive send %d: expected the zero datagram to be retransmitted unchanged, got %x", i, datagram)
		}
	}
}

func TestReconnectExhaustionDropsFrames(t *testing.T) {
	tr := &fakeTransport{failing: true}
	var log []string
	sess, srv := newTestSession(t, tr, &log)
	defer srv.Close()

	sess.dial = func(ctx context.Context, ip string, identity, psk []byte) (sender, error) {
		return nil, errors.New("handshake always fails in this test")
	}
	// Start needs a working dial once, then reconnects must fail.
	workingOnce := &fakeTransport{}
	first := true
	sess.dial = func(ctx context.Context, ip string, identity, psk []byte) (sender, error) {
		if first {
			first = false
			return workingOnce, nil
		}
		return nil, errors.New("handshake always fails after start")
	}

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Stop(context.Background())

	workingOnce.mu.Lock()
	workingOnce.failing = true
	workingOnce.mu.Unlock()

	ok := sess.sendWithReconnect([]byte("x"))
	if ok {
		t.Fatal("expected send to fail once reconnect is exhausted")
	}
	if sess.LastError() == nil {
		t.Fatal("expected a latched error after reconnect exhaustion")
	}
	if sess.State() != StateActive {
		t.Fatalf("session must remain Active after reconnect exhaustion, got %v", sess.State())
	}
}
