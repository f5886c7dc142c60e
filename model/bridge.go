// Package model holds the data entities shared across the discovery,
// onboarding, REST and streaming layers: bridges, entertainment
// configurations, lights and light colors.
package model

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// MinSWVersion is the lowest bridge software version that supports
// entertainment streaming. Bridges below this are dropped from
// discovery results and rejected on selection.
const MinSWVersion = 1_948_086_000

// Bridge is immutable once onboarding (C5) has populated it.
type Bridge struct {
	ID                uuid.UUID `json:"id"`
	Rid               uuid.UUID `json:"rid"`
	IPAddress         string    `json:"ip_address"`
	SWVersion         int       `json:"swversion"`
	Username          string    `json:"username"`
	HueApplicationID  string    `json:"hue_application_id"`
	ClientKey         string    `json:"client_key"`
	Name              string    `json:"name"`
}

// SupportsStreaming reports whether the bridge's firmware is new
// enough to open an entertainment stream.
func (b Bridge) SupportsStreaming() bool {
	return b.SWVersion >= MinSWVersion
}

// PSKIdentity returns the DTLS-PSK identity used during handshake: the
// application id, UTF-8 encoded.
func (b Bridge) PSKIdentity() []byte {
	return []byte(b.HueApplicationID)
}

// PSKKey hex-decodes client_key into the 16 raw bytes used as the
// DTLS-PSK pre-shared key.
func (b Bridge) PSKKey() ([]byte, error) {
	return hex.DecodeString(b.ClientKey)
}
