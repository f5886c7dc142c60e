package model

import "github.com/rschio/huestream/errs"

// ColorSpace selects which wire interpretation a session's datagrams
// use for the three 16-bit values per channel.
type ColorSpace uint8

const (
	ColorSpaceRGB ColorSpace = 0x00
	ColorSpaceXYB ColorSpace = 0x01
)

// LightColor is a tagged union of the two semantic color variants the
// bridge accepts. The color-space byte on the wire comes from the
// streaming session, not from this variant: a RGB8 value sent while
// the session is in xyb mode is still validated as RGB8 and then
// widened with rgb8_to_rgb16 before being placed in an xyb-labelled
// datagram. Callers are expected to keep the variant and the session's
// color space in agreement; the wire layer does not cross-check them.
type LightColor struct {
	isXYB   bool
	isRaw16 bool
	r, g, b uint8
	v0, v1, v2 uint16
	x, y, br   float32
}

// RGB8 constructs an 8-bit-per-channel RGB color value.
func RGB8(r, g, b uint8) LightColor {
	return LightColor{r: r, g: g, b: b}
}

// XYB constructs a CIE 1931 xy-chromaticity + normalized-brightness
// color value.
func XYB(x, y, b float32) LightColor {
	return LightColor{isXYB: true, x: x, y: y, br: b}
}

// RGB16Raw constructs a color from already-widened 16-bit components,
// placed on the wire unchanged. Used by callers that already work in
// the image/color 16-bit RGBA space (e.g. the root package's
// color.Color-based compatibility wrapper) and don't want the 8-bit
// rgb8_to_rgb16 transform applied a second time.
func RGB16Raw(v0, v1, v2 uint16) LightColor {
	return LightColor{isRaw16: true, v0: v0, v1: v1, v2: v2}
}

// Validate reports errs.ErrInvalidColor if any component is out of
// range: RGB8 and RGB16Raw components are always in range for their
// width, kept explicit for symmetry. XYB components must be in
// [0.0, 1.0].
func (c LightColor) Validate() error {
	if !c.isXYB {
		return nil
	}
	if c.x < 0 || c.x > 1 || c.y < 0 || c.y > 1 || c.br < 0 || c.br > 1 {
		return errs.ErrInvalidColor
	}
	return nil
}

// RGB16 widens the color to the three big-endian u16 values placed on
// the wire, using whichever of the three transforms matches the
// variant.
func (c LightColor) RGB16() (v0, v1, v2 uint16) {
	switch {
	case c.isXYB:
		return xybToRGB16(c.x, c.y, c.br)
	case c.isRaw16:
		return c.v0, c.v1, c.v2
	default:
		return rgb8ToRGB16(c.r, c.g, c.b)
	}
}

// rgb8ToRGB16 implements spec §4.4: each octet divided by 255.0,
// multiplied by 65535, truncated toward zero. 65535 is exactly
// 255*257, so integer math (v*65535/255) reproduces the float formula
// with no rounding error for any of the 256 possible inputs.
func rgb8ToRGB16(r, g, b uint8) (uint16, uint16, uint16) {
	widen := func(v uint8) uint16 {
		return uint16(uint32(v) * 65535 / 255)
	}
	return widen(r), widen(g), widen(b)
}

// xybToRGB16 implements spec §4.4: each float clamped to [0,1],
// multiplied by 65535.0, truncated toward zero. The name is
// historical: the bytes carry xy/brightness, not RGB, in xyb mode.
func xybToRGB16(x, y, b float32) (uint16, uint16, uint16) {
	clamp := func(v float32) uint16 {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return uint16(float64(v) * 65535.0)
	}
	return clamp(x), clamp(y), clamp(b)
}
