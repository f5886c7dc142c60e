// Package discovery implements the ordered bridge-discovery strategy:
// disk cache, then mDNS, then the Hue cloud discovery endpoint — first
// non-empty result wins. Cache entries below the minimum software
// version are skipped; mDNS and cloud addresses are not filtered here.
// A manual address, when supplied, is returned as the only candidate
// and the other methods are not consulted.
package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rschio/huestream/persist"
)

const cloudDiscoveryURL = "https://discovery.meethue.com/"

type cloudBridge struct {
	ID               string `json:"id"`
	InternalIPAddress string `json:"internalipaddress"`
	Port             int    `json:"port"`
}

// Options tunes the discovery run.
type Options struct {
	// ManualAddress, when non-empty, is the only candidate returned;
	// cache, mDNS and cloud lookup are not consulted.
	ManualAddress string
	// MDNSTimeout overrides DefaultMDNSTimeout when non-zero.
	MDNSTimeout time.Duration
	Logger      zerolog.Logger
}

// Candidate is a reachable bridge address before onboarding has run
// against it.
type Candidate struct {
	IP     string
	Source string // "cache", "mdns", "cloud", "manual"
}

// FindCandidates runs the ordered strategy and returns the first
// non-empty set of candidate addresses. It does not onboard them;
// callers run bridgeapi.Onboard per candidate and drop any that fail
// or report swversion < model.MinSWVersion.
func FindCandidates(ctx context.Context, store *persist.Store, opts Options) ([]Candidate, error) {
	log := opts.Logger

	if opts.ManualAddress != "" {
		return []Candidate{{IP: opts.ManualAddress, Source: "manual"}}, nil
	}

	// 1. Disk cache, filtered by minimum software version.
	if cache, err := store.ReadBridgeCache(); err == nil {
		var candidates []Candidate
		for _, b := range cache {
			if b.SupportsStreaming() {
				candidates = append(candidates, Candidate{IP: b.IPAddress, Source: "cache"})
			}
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
	}

	// 2. mDNS.
	timeout := DefaultMDNSTimeout
	if opts.MDNSTimeout > 0 {
		timeout = opts.MDNSTimeout
	}
	addrs, err := BrowseMDNS(ctx, timeout, log)
	if err != nil {
		log.Warn().Err(err).Msg("mdns discovery failed")
	}
	if len(addrs) > 0 {
		candidates := make([]Candidate, len(addrs))
		for i, a := range addrs {
			candidates[i] = Candidate{IP: a, Source: "mdns"}
		}
		return candidates, nil
	}

	// 3. HTTPS cloud discovery: GET discovery.meethue.com returns a
	// JSON array of {id, internalipaddress, port}.
	bridges, err := fetchCloudBridges(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("cloud discovery failed")
		return nil, nil
	}
	var candidates []Candidate
	for _, b := range bridges {
		if ValidIPv4(b.InternalIPAddress) {
			candidates = append(candidates, Candidate{IP: b.InternalIPAddress, Source: "cloud"})
		}
	}
	return candidates, nil
}

func fetchCloudBridges(ctx context.Context) ([]cloudBridge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cloudDiscoveryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var bridges []cloudBridge
	if err := json.NewDecoder(resp.Body).Decode(&bridges); err != nil {
		return nil, err
	}
	return bridges, nil
}
