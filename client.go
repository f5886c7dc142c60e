package huestream

import (
	"context"
	"image/color"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rschio/huestream/bridgeapi"
	"github.com/rschio/huestream/httpclient"
	"github.com/rschio/huestream/model"
	"github.com/rschio/huestream/stream"
)

// StartSimple is the single-bridge, no-discovery entry point: give it
// an already-onboarded bridge's credentials and an entertainment
// configuration id, get back a running Stream. It is a thin wrapper
// around stream.Session for callers that already know their bridge
// and don't need Facade's multi-bridge discovery/selection.
func StartSimple(ctx context.Context, host, username, clientKey, configID string) (*Stream, error) {
	c := NewSimpleClient(host, username, clientKey)
	return c.StartStream(ctx, configID)
}

// SimpleClient drives one bridge whose credentials are already known.
type SimpleClient struct {
	bridge model.Bridge
	ent    *bridgeapi.EntertainmentClient
}

// NewSimpleClient builds a client for a bridge at host, authenticated
// with username/clientKey (as returned by the bridge's POST /api
// registration). The DTLS-PSK identity is the username itself, the
// same identity the bridge was given during pairing.
func NewSimpleClient(host, username, clientKey string) *SimpleClient {
	bridge := model.Bridge{
		IPAddress:        host,
		Username:         username,
		HueApplicationID: username,
		ClientKey:        clientKey,
	}
	httpc := httpclient.New(host, httpclient.WithUsername(username))
	return &SimpleClient{
		bridge: bridge,
		ent:    bridgeapi.NewEntertainmentClient(httpc),
	}
}

// Stream manages one running entertainment stream, exposing the same
// channel-based API the root package has always offered: send a
// []color.Color per frame, one element per channel.
type Stream struct {
	// Send carries one frame per send, each slice element one channel
	// (channel ID = slice index). Don't close Send directly; use
	// Stream.Close.
	Send chan<- []color.Color

	// Error carries send failures in a buffered channel; once full,
	// new errors are discarded rather than blocking the sender.
	Error <-chan error

	sendCh chan []color.Color
	sess   *stream.Session
	once   sync.Once
	done   chan struct{}
}

// StartStream starts a Session against configID and spawns the
// goroutine translating color.Color frames into stream.SetColors
// calls. Only one stream can run per SimpleClient at a time.
func (c *SimpleClient) StartStream(ctx context.Context, configID string) (*Stream, error) {
	sess := stream.New(c.bridge, c.ent, configID, zerolog.Nop())
	if err := sess.Start(ctx); err != nil {
		return nil, err
	}

	colors := make(chan []color.Color)
	errCh := make(chan error, 10)
	done := make(chan struct{})
	st := &Stream{
		Send:   colors,
		Error:  errCh,
		sendCh: colors,
		sess:   sess,
		done:   done,
	}

	go func() {
		for cs := range colors {
			frame := make([]stream.ChannelColor, len(cs))
			for i, col := range cs {
				r, g, b, _ := col.RGBA()
				frame[i] = stream.ChannelColor{ChannelID: uint8(i), Color: model.RGB16Raw(uint16(r), uint16(g), uint16(b))}
			}
			if err := sess.SetColors(frame); err != nil {
				select {
				case errCh <- err:
				default:
				}
			}
		}
		close(errCh)
		close(done)
	}()

	return st, nil
}

// Close closes Send, waits for the translation goroutine to drain, and
// stops the underlying session.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.sendCh)
		<-s.done
		err = s.sess.Stop(context.Background())
	})
	return err
}
