package discovery

import "regexp"

// dottedQuad matches a strict dotted-quad IPv4 address: four integer
// octets in [0,255], each written without leading zeros (a lone "0"
// is still allowed).
var dottedQuad = regexp.MustCompile(`^(25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\.(25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\.(25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\.(25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])$`)

// ValidIPv4 reports whether s is a dotted-quad IPv4 address whose four
// octets are integer strings without leading zeros in [0,255].
func ValidIPv4(s string) bool {
	return dottedQuad.MatchString(s)
}
