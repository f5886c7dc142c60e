package huestream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rschio/huestream/bridgeapi"
	"github.com/rschio/huestream/discovery"
	"github.com/rschio/huestream/errs"
	"github.com/rschio/huestream/httpclient"
	"github.com/rschio/huestream/model"
	"github.com/rschio/huestream/persist"
	"github.com/rschio/huestream/stream"
)

// bridgeHandle bundles everything the Facade keeps per onboarded
// bridge: its identity, its REST client, and the currently selected
// streaming session (nil until Select is called).
type bridgeHandle struct {
	bridge  model.Bridge
	ent     *bridgeapi.EntertainmentClient
	session *stream.Session
	config  model.EntertainmentConfiguration
}

// Facade discovers bridges, lets the caller pick an entertainment
// configuration per bridge, and owns one streaming Session per
// selection. It replaces the teacher's single-bridge Client/Stream
// pair (kept in client.go as thin wrappers for existing callers) with
// explicit multi-bridge ownership: no package-level state, every
// Facade owns its own bridges and sessions (spec §9's "singleton →
// explicit ownership" redesign note). Safe for concurrent use.
type Facade struct {
	appName       string
	store         *persist.Store
	log           zerolog.Logger
	discoveryOpts discovery.Options

	mu      sync.Mutex
	bridges map[string]*bridgeHandle // keyed by Bridge.Name
}

// Option configures a Facade at construction time.
type Option func(*Facade)

// WithStore overrides the default "./data"-rooted persist.Store.
func WithStore(store *persist.Store) Option {
	return func(f *Facade) { f.store = store }
}

// WithLogger attaches a logger; the zero value keeps the Facade silent.
func WithLogger(log zerolog.Logger) Option {
	return func(f *Facade) { f.log = log }
}

// WithManualAddress pins discovery to a single address, skipping cache,
// mDNS and cloud lookup entirely (spec §4.3 step 4).
func WithManualAddress(addr string) Option {
	return func(f *Facade) { f.discoveryOpts.ManualAddress = addr }
}

// New validates appName against the bridge's devicetype format and
// returns a Facade with no bridges onboarded yet; call Discover.
func New(appName string, opts ...Option) (*Facade, error) {
	if !bridgeapi.ValidAppName(appName) {
		return nil, fmt.Errorf("huestream: invalid app name %q, want pattern %s", appName, bridgeapi.AppNamePattern.String())
	}
	f := &Facade{
		appName: appName,
		store:   persist.New(""),
		log:     zerolog.Nop(),
		bridges: make(map[string]*bridgeHandle),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.discoveryOpts.Logger = f.log
	return f, nil
}

// Discover runs the ordered bridge-discovery strategy (spec §4.3),
// onboards every candidate address independently, and keeps only the
// bridges whose firmware supports streaming. Per-candidate onboarding
// failures are logged and skipped; errs.ErrNoBridgesFound is returned
// only once every candidate has been tried and none qualified.
func (f *Facade) Discover(ctx context.Context) ([]string, error) {
	candidates, err := discovery.FindCandidates(ctx, f.store, f.discoveryOpts)
	if err != nil {
		return nil, err
	}

	var names []string
	var cache map[string]model.Bridge
	if c, err := f.store.ReadBridgeCache(); err == nil {
		cache = c
	} else {
		cache = make(map[string]model.Bridge)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, cand := range candidates {
		bridge, err := bridgeapi.Onboard(ctx, f.store, f.appName, cand.IP)
		if err != nil {
			f.log.Warn().Err(err).Str("ip", cand.IP).Str("source", cand.Source).Msg("huestream: onboarding candidate failed")
			continue
		}
		if !bridge.SupportsStreaming() {
			f.log.Warn().Str("ip", cand.IP).Int("swversion", bridge.SWVersion).Msg("huestream: bridge firmware too old for streaming")
			continue
		}

		httpc := httpclient.New(bridge.IPAddress, httpclient.WithUsername(bridge.Username), httpclient.WithLogger(f.log))
		client := bridgeapi.NewEntertainmentClient(httpc)
		f.bridges[bridge.Name] = &bridgeHandle{bridge: bridge, ent: client}
		names = append(names, bridge.Name)
		cache[bridge.ID.String()] = bridge
	}

	if len(names) == 0 {
		return nil, errs.ErrNoBridgesFound
	}

	if err := f.store.WriteBridgeCache(cache); err != nil {
		f.log.Warn().Err(err).Msg("huestream: failed to persist bridge cache")
	}
	return names, nil
}

// ListConfigurations fetches every entertainment configuration the
// named bridge currently reports.
func (f *Facade) ListConfigurations(ctx context.Context, bridgeName string) ([]model.EntertainmentConfiguration, error) {
	h, err := f.handle(bridgeName)
	if err != nil {
		return nil, err
	}
	byID, err := h.ent.ListConfigurations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.EntertainmentConfiguration, 0, len(byID))
	for _, cfg := range byID {
		out = append(out, cfg)
	}
	return out, nil
}

// Select binds bridgeName to one entertainment configuration, fetching
// it fresh to validate it still exists, and creates the (not yet
// started) Session that subsequent Start/SetColors/Stop calls drive.
func (f *Facade) Select(ctx context.Context, bridgeName, configID string) error {
	f.mu.Lock()
	h, ok := f.bridges[bridgeName]
	f.mu.Unlock()
	if !ok {
		return errs.ErrUnknownBridge
	}

	cfg, err := h.ent.GetConfiguration(ctx, configID)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrUnknownConfig, err)
	}

	sess := stream.New(h.bridge, h.ent, cfg.ID, f.log)

	f.mu.Lock()
	h.config = cfg
	h.session = sess
	f.mu.Unlock()
	return nil
}

// ChannelLight is one entertainment channel resolved to the physical
// light rendering it, for callers that want to show a human-readable
// channel mapping (spec §6: "list_lights(bridge_name) -> [ChannelId,
// LightName, default position]").
type ChannelLight struct {
	ChannelID int
	LightName string
	Position  model.Position
}

// ListLights resolves every channel of the named bridge's selected
// entertainment configuration to the light rendering it. The join
// runs channel.Members[].Service.Rid (an entertainment service
// resource) through ListEntertainments to find the device that owns
// that service, then through ListLights to find the light owned by
// the same device and its display name. A channel whose member can't
// be resolved (a light that has since been removed) is still
// returned, with an empty LightName.
func (f *Facade) ListLights(ctx context.Context, bridgeName string) ([]ChannelLight, error) {
	h, err := f.handle(bridgeName)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	cfg := h.config
	f.mu.Unlock()
	if cfg.ID == "" {
		return nil, errs.ErrNoActiveConfiguration
	}

	lights, err := h.ent.ListLights(ctx)
	if err != nil {
		return nil, err
	}
	ents, err := h.ent.ListEntertainments(ctx)
	if err != nil {
		return nil, err
	}

	lightNameByDevice := make(map[string]string, len(lights))
	for _, l := range lights {
		lightNameByDevice[l.Owner.Rid] = l.Metadata.Name
	}
	deviceByEntertainment := make(map[string]string, len(ents))
	for _, e := range ents {
		deviceByEntertainment[e.ID] = e.Owner.Rid
	}

	out := make([]ChannelLight, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		var name string
		for _, m := range ch.Members {
			device, ok := deviceByEntertainment[m.Service.Rid]
			if !ok {
				continue
			}
			if n, ok := lightNameByDevice[device]; ok {
				name = n
				break
			}
		}
		out = append(out, ChannelLight{
			ChannelID: ch.ChannelID,
			LightName: name,
			Position:  ch.Position,
		})
	}
	return out, nil
}

// SetColorSpace changes the wire color-space interpretation for the
// bridge's selected configuration. Takes effect on the next datagram.
func (f *Facade) SetColorSpace(bridgeName string, cs model.ColorSpace) error {
	sess, err := f.session(bridgeName)
	if err != nil {
		return err
	}
	sess.SetColorSpace(cs)
	return nil
}

// Start begins streaming to the named bridge's selected configuration.
func (f *Facade) Start(ctx context.Context, bridgeName string) error {
	sess, err := f.session(bridgeName)
	if err != nil {
		return err
	}
	return sess.Start(ctx)
}

// StartAll starts every bridge with a selected configuration, joining
// every error rather than stopping at the first failure.
func (f *Facade) StartAll(ctx context.Context) error {
	f.mu.Lock()
	handles := make([]*bridgeHandle, 0, len(f.bridges))
	for _, h := range f.bridges {
		if h.session != nil {
			handles = append(handles, h)
		}
	}
	f.mu.Unlock()

	var errList []error
	for _, h := range handles {
		if err := h.session.Start(ctx); err != nil {
			errList = append(errList, fmt.Errorf("%s: %w", h.bridge.Name, err))
		}
	}
	return errors.Join(errList...)
}

// SetColors enqueues a frame for the named bridge's active session
// (spec §4.7.2 "atomic frame delivery").
func (f *Facade) SetColors(bridgeName string, frame []stream.ChannelColor) error {
	sess, err := f.session(bridgeName)
	if err != nil {
		return err
	}
	return sess.SetColors(frame)
}

// Stop tears down streaming to the named bridge.
func (f *Facade) Stop(ctx context.Context, bridgeName string) error {
	sess, err := f.session(bridgeName)
	if err != nil {
		return err
	}
	return sess.Stop(ctx)
}

// StopAll stops every currently-streaming bridge, joining every error
// rather than stopping at the first failure.
func (f *Facade) StopAll(ctx context.Context) error {
	f.mu.Lock()
	handles := make([]*bridgeHandle, 0, len(f.bridges))
	for _, h := range f.bridges {
		if h.session != nil && h.session.IsStreaming() {
			handles = append(handles, h)
		}
	}
	f.mu.Unlock()

	var errList []error
	for _, h := range handles {
		if err := h.session.Stop(ctx); err != nil {
			errList = append(errList, fmt.Errorf("%s: %w", h.bridge.Name, err))
		}
	}
	return errors.Join(errList...)
}

func (f *Facade) handle(bridgeName string) (*bridgeHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.bridges[bridgeName]
	if !ok {
		return nil, errs.ErrUnknownBridge
	}
	return h, nil
}

func (f *Facade) session(bridgeName string) (*stream.Session, error) {
	h, err := f.handle(bridgeName)
	if err != nil {
		return nil, err
	}
	if h.session == nil {
		return nil, errs.ErrNoActiveConfiguration
	}
	return h.session, nil
}
