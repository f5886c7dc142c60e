package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"
)

// DefaultMDNSTimeout is how long BrowseMDNS waits for announcements
// before giving up.
const DefaultMDNSTimeout = 10 * time.Second

// BrowseMDNS browses _hue._tcp.local. for up to timeout or until the
// first service announcement, whichever comes first (spec §4.3 step
// 2), collecting every validated IPv4 address seen by then. A
// first-seen signal channel is closed the moment the first valid
// address arrives, so a bridge that answers immediately short-circuits
// the wait instead of always paying the full timeout.
func BrowseMDNS(ctx context.Context, timeout time.Duration, log zerolog.Logger) ([]string, error) {
	if timeout <= 0 {
		timeout = DefaultMDNSTimeout
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, "_hue._tcp", "local.", entries); err != nil {
		return nil, err
	}

	var addrs []string
	seen := make(map[string]bool)
	firstSeen := make(chan struct{})
	var once sync.Once

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return addrs, nil
			}
			for _, ip := range entry.AddrIPv4 {
				s := ip.String()
				if !ValidIPv4(s) || seen[s] {
					continue
				}
				seen[s] = true
				addrs = append(addrs, s)
				log.Debug().Str("ip", s).Msg("mdns: bridge found")
			}
			if len(addrs) > 0 {
				once.Do(func() { close(firstSeen) })
			}
		case <-firstSeen:
			return addrs, nil
		case <-ctx.Done():
			return addrs, nil
		}
	}
}
