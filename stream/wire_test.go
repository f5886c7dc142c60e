package stream

import (
	"bytes"
	"testing"

	"github.com/rschio/huestream/model"
)

const testConfigID = "2022ffc4-1b73-4a43-b376-4c45369bf207"

func TestEncodeSingleChannelXYB(t *testing.T) {
	frame := []ChannelColor{{ChannelID: 0, Color: model.XYB(0, 0, 0)}}
	got := Encode(testConfigID, model.ColorSpaceXYB, frame)

	if len(got) != 52+7 {
		t.Fatalf("expected 59 bytes, got %d", len(got))
	}
	if string(got[0:9]) != "HueStream" {
		t.Fatalf("bad protocol name: %q", got[0:9])
	}
	if got[9] != 0x02 {
		t.Fatalf("bad version major: %#x", got[9])
	}
	if got[14] != 0x01 {
		t.Fatalf("bad color space byte: %#x", got[14])
	}
	if string(got[16:52]) != testConfigID {
		t.Fatalf("bad config id: %q", got[16:52])
	}
	if got[52] != 0x00 {
		t.Fatalf("bad channel id: %#x", got[52])
	}
	wantTail := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(got[53:59], wantTail) {
		t.Fatalf("bad channel payload: %x", got[53:59])
	}
}

func TestEncodeMultiChannelOrderPreserved(t *testing.T) {
	frame := []ChannelColor{
		{ChannelID: 3, Color: model.RGB8(1, 2, 3)},
		{ChannelID: 1, Color: model.RGB8(4, 5, 6)},
		{ChannelID: 0, Color: model.RGB8(7, 8, 9)},
	}
	got := Encode(testConfigID, model.ColorSpaceRGB, frame)

	wantLen := 52 + 7*len(frame)
	if len(got) != wantLen {
		t.Fatalf("expected %d bytes, got %d", wantLen, len(got))
	}

	for i, ch := range frame {
		offset := 52 + i*7
		if got[offset] != ch.ChannelID {
			t.Fatalf("channel %d: expected id %d at offset %d, got %d", i, ch.ChannelID, offset, got[offset])
		}
	}
}

func TestEncodeFixtureWarmStart(t *testing.T) {
	// xyb=(0.63435, 0.0, 1.0) on channel_id=1: floor(0.63435 * 65535)
	// = 41572 = 0xA264 (0.63435*65535 = 41572.12725 exactly) — see
	// DESIGN.md for why this fixture's third byte differs from an
	// earlier draft of this test.
	frame := []ChannelColor{{ChannelID: 1, Color: model.XYB(0.63435, 0.0, 1.0)}}
	got := Encode(testConfigID, model.ColorSpaceXYB, frame)

	record := got[52:59]
	want := []byte{0x01, 0xA2, 0x64, 0x00, 0x00, 0xFF, 0xFF}
	if !bytes.Equal(record, want) {
		t.Fatalf("got %x, want %x", record, want)
	}
}

func TestZeroDatagram(t *testing.T) {
	got := zeroDatagram(testConfigID, model.ColorSpaceRGB)
	if len(got) != 52+7 {
		t.Fatalf("expected 59 bytes, got %d", len(got))
	}
	if got[52] != 0 {
		t.Fatalf("expected channel 0, got %d", got[52])
	}
}
