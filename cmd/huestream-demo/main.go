// Command huestream-demo discovers a bridge, lists its entertainment
// configurations, and streams a slow color cycle to the first one
// found. It exists to exercise huestream.Facade end to end; see the
// root package's Example for the single-bridge, no-discovery path.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"

	"github.com/rschio/huestream"
	"github.com/rschio/huestream/model"
	"github.com/rschio/huestream/stream"
)

func main() {
	appName := flag.String("app", "huestream-demo#cli", "devicetype sent to the bridge during pairing")
	manual := flag.String("bridge", "", "skip discovery and use this bridge IP directly")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	if err := run(*appName, *manual, log); err != nil {
		log.Fatal().Err(err).Msg("huestream-demo")
	}
}

func run(appName, manualAddr string, log zerolog.Logger) error {
	opts := []huestream.Option{huestream.WithLogger(log)}
	if manualAddr != "" {
		opts = append(opts, huestream.WithManualAddress(manualAddr))
	}

	facade, err := huestream.New(appName, opts...)
	if err != nil {
		return fmt.Errorf("huestream.New: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info().Msg("discovering bridges, press the bridge link button if this is the first run")
	names, err := facade.Discover(ctx)
	if err != nil {
		return fmt.Errorf("Discover: %w", err)
	}
	bridgeName := names[0]
	log.Info().Str("bridge", bridgeName).Int("found", len(names)).Msg("onboarded")

	configs, err := facade.ListConfigurations(ctx, bridgeName)
	if err != nil {
		return fmt.Errorf("ListConfigurations: %w", err)
	}
	if len(configs) == 0 {
		return fmt.Errorf("no entertainment configurations on %q; create one in the Hue app first", bridgeName)
	}
	cfg := configs[0]
	log.Info().Str("config", cfg.Name).Int("channels", len(cfg.Channels)).Msg("selected configuration")

	if err := facade.Select(ctx, bridgeName, cfg.ID); err != nil {
		return fmt.Errorf("Select: %w", err)
	}
	if err := facade.Start(ctx, bridgeName); err != nil {
		return fmt.Errorf("Start: %w", err)
	}
	defer facade.Stop(context.Background(), bridgeName)

	tick := time.NewTicker(80 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			frame := randomFrame(cfg.Channels)
			if err := facade.SetColors(bridgeName, frame); err != nil {
				log.Warn().Err(err).Msg("SetColors")
			}
		}
	}
}

func randomFrame(channels []model.EntertainmentChannel) []stream.ChannelColor {
	frame := make([]stream.ChannelColor, len(channels))
	for i, ch := range channels {
		rnd := func() uint8 { return uint8(rand.IntN(256)) }
		frame[i] = stream.ChannelColor{
			ChannelID: uint8(ch.ChannelID),
			Color:     model.RGB8(rnd(), rnd(), rnd()),
		}
	}
	return frame
}
