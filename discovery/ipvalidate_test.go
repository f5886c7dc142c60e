package discovery

import "testing"

func TestValidIPv4(t *testing.T) {
	accept := []string{"192.168.30.204", "0.0.0.0", "255.255.255.255", "1.2.3.4"}
	reject := []string{"256.0.0.1", "01.0.0.1", "1.2.3", "1.2.3.4.5", "a.b.c.d", ""}

	for _, s := range accept {
		if !ValidIPv4(s) {
			t.Errorf("expected %q to be accepted", s)
		}
	}
	for _, s := range reject {
		if ValidIPv4(s) {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}
