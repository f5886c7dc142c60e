// Package stream is the streaming engine (C8): it owns a
// transport.Transport, runs the keep-alive and input-drain workers,
// serializes color updates into HueStream v2 datagrams, and drives the
// bounded reconnect policy.
package stream

import (
	"encoding/binary"

	"github.com/rschio/huestream/model"
)

// Header layout constants, spec §4.7.1.
const (
	headerSize      = 52
	channelRecordSize = 7
	protocolName    = "HueStream"
	versionMajor    = 0x02
	versionMinor    = 0x00
	sequenceID      = 0x07
)

// ChannelColor is one channel's color for a single frame.
type ChannelColor struct {
	ChannelID uint8
	Color     model.LightColor
}

// Encode serializes a frame into a single HueStream v2 datagram for
// configID in the given color space. Channels appear in submission
// order (spec §8 "multi-channel framing"); the caller is responsible
// for having already validated every color (SetColors does this before
// enqueuing).
func Encode(configID string, colorSpace model.ColorSpace, frame []ChannelColor) []byte {
	buf := make([]byte, 0, headerSize+channelRecordSize*len(frame))

	buf = append(buf, protocolName...)
	buf = append(buf, versionMajor, versionMinor)
	buf = append(buf, sequenceID)
	buf = append(buf, 0x00, 0x00) // reserved
	buf = append(buf, byte(colorSpace))
	buf = append(buf, 0x00) // reserved
	buf = append(buf, configID...)

	for _, ch := range frame {
		buf = append(buf, ch.ChannelID)
		v0, v1, v2 := ch.Color.RGB16()
		buf = binary.BigEndian.AppendUint16(buf, v0)
		buf = binary.BigEndian.AppendUint16(buf, v1)
		buf = binary.BigEndian.AppendUint16(buf, v2)
	}

	return buf
}

// zeroDatagram builds the initial all-zero datagram (spec §4.7.2 step
// 3): a single channel 0, all values 0. Start builds it before the
// handshake and stores it as last_sent_datagram once the handshake has
// succeeded.
func zeroDatagram(configID string, colorSpace model.ColorSpace) []byte {
	return Encode(configID, colorSpace, []ChannelColor{{ChannelID: 0, Color: model.RGB8(0, 0, 0)}})
}
