// Package run serves card authentication against a physical PC/SC reader.
// The host speaks over stdio, one hex-encoded message per line; responses
// go out the same way. Reader choice, confirmation and timeouts come from
// the environment.
package run

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cardvault/walletcore/internal/auth"
	"github.com/cardvault/walletcore/internal/card"
	"github.com/cardvault/walletcore/internal/config"
	"github.com/cardvault/walletcore/internal/events"
	"github.com/cardvault/walletcore/internal/host"
)

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Serve card authentication over a PC/SC reader",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runService(cmd.Context()); err != nil {
				log.Fatal().Err(err).Msg("Service failed")
			}
		},
	}
}

// lineSender writes each encoded response as one hex line.
type lineSender struct {
	w io.Writer
}

func (s lineSender) Send(payload []byte) error {
	_, err := fmt.Fprintf(s.w, "%x\n", payload)
	return err
}

// feedHostLines decodes hex lines from r into host events until the input
// closes. Lines that are not valid hex are dropped with a warning; the
// engine's own decode gate handles everything past framing.
func feedHostLines(r io.Reader, source *events.ChannelSource) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		payload, err := hex.DecodeString(line)
		if err != nil {
			log.Warn().Str("line", line).Msg("dropping non-hex host line")
			continue
		}
		source.PushHost(payload)
	}
	return scanner.Err()
}

func runService(ctx context.Context) error {
	cfg := config.DefaultServiceConfigFromEnv()

	source := events.NewChannelSource()
	transport, err := card.NewPCSCTransport(cfg.Reader.Reader, source, log.Logger)
	if err != nil {
		return err
	}
	defer transport.Release()

	go func() {
		if err := feedHostLines(os.Stdin, source); err != nil {
			log.Warn().Err(err).Msg("host input failed")
		}
		source.PushAbort()
	}()

	adapter, err := host.NewAdapter(lineSender{w: os.Stdout})
	if err != nil {
		return err
	}

	// stdin carries the host stream, so consent is asked on the controlling
	// terminal. Without one the gate fails closed.
	var confirm auth.ConfirmFn
	if cfg.Auth.ConfirmRequired {
		tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
		if err != nil {
			log.Warn().Err(err).Msg("no controlling terminal, confirmation will decline")
			confirm = func() bool { return false }
		} else {
			defer tty.Close()
			confirm = auth.PromptConfirm(tty, tty)
		}
	}

	engine, err := auth.NewEngine(auth.Config{
		Events:    source,
		Transport: transport,
		Confirm:   confirm,
		Timeout:   cfg.Auth.InactivityTimeout,
		Logger:    log.Logger,
	})
	if err != nil {
		return err
	}

	ev := source.Await(ctx, events.KindHost, cfg.Auth.InactivityTimeout)
	if ev.Abort {
		log.Info().Msg("no host query arrived")
		return nil
	}
	initial, err := adapter.DecodeQuery(ev)
	if err != nil {
		return err
	}

	if err := engine.Run(ctx, adapter, initial); err != nil {
		return err
	}
	log.Info().Str("state", engine.Status().String()).Msg("Flow finished")
	return nil
}
