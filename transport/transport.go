// Package transport is the DTLS-PSK channel the streaming engine sends
// HueStream datagrams over (C7). It wraps github.com/pion/dtls/v3,
// which already retransmits the outbound handshake flight on its own
// WantWrite signal (spec §9 DESIGN NOTES explicitly allows choosing a
// library with this property instead of reimplementing flight
// tracking); this package adds the bounded retry budget spec §4.6
// describes as a deadline around the handshake call: 300ms for the
// first flight plus 300ms for each of the 3 retransmissions (1.2s).
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/dtls/v3"

	"github.com/rschio/huestream/errs"
)

// StreamPort is the fixed UDP port the bridge listens for entertainment
// streaming datagrams on.
const StreamPort = 2100

// HandshakeRetryInterval and HandshakeMaxRetries implement spec §4.6:
// if the handshake has not progressed after 300ms, retransmit up to 3
// times before failing.
const (
	HandshakeRetryInterval = 300 * time.Millisecond
	HandshakeMaxRetries    = 3
)

// Transport owns exactly one UDP/DTLS socket.
type Transport struct {
	conn *dtls.Conn

	closeOnce sync.Once
	sendMu    sync.Mutex
}

// Dial performs the DTLS-PSK handshake against ip:StreamPort using
// identity/psk as the PSK identity hint and key (spec §4.6: identity =
// hue_application_id bytes, psk = hex-decoded client_key).
func Dial(ctx context.Context, ip string, identity, psk []byte) (*Transport, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(ip), Port: StreamPort}

	config := &dtls.Config{
		PSK: func([]byte) ([]byte, error) {
			return psk, nil
		},
		PSKIdentityHint: identity,
		CipherSuites:    []dtls.CipherSuiteID{dtls.TLS_PSK_WITH_AES_128_GCM_SHA256},
	}

	conn, err := dtls.Dial("udp", addr, config)
	if err != nil {
		return nil, &errs.DTLSHandshakeError{Cause: fmt.Errorf("dial %v: %w", addr, err)}
	}

	handshakeCtx, cancel := context.WithTimeout(ctx, HandshakeRetryInterval*time.Duration(HandshakeMaxRetries+1))
	defer cancel()

	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		conn.Close()
		return nil, &errs.DTLSHandshakeError{Cause: err}
	}

	return &Transport{conn: conn}, nil
}

// Send writes one datagram. Sends are serialized with a mutex: the
// keep-alive and input-drain workers both call Send on the same
// socket, and while a connected UDP socket's send is thread-safe on
// POSIX, pion's DTLS record layer is not documented as such, so the
// transport guards it explicitly (spec §5 allows either choice;
// this picks the explicit mutex).
func (t *Transport) Send(b []byte) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if _, err := t.conn.Write(b); err != nil {
		return &errs.TransportError{Cause: err}
	}
	return nil
}

// Close closes the DTLS session and underlying UDP socket. Idempotent.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.conn.Close()
	})
	return err
}
