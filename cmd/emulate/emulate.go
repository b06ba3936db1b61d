// Package emulate runs a complete card authentication flow against an
// in-process software card, with this process playing both the device and
// the host. It exists to exercise the engine end to end without hardware.
package emulate

import (
	"context"
	"crypto/rand"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cardvault/walletcore/internal/auth"
	"github.com/cardvault/walletcore/internal/card"
	"github.com/cardvault/walletcore/internal/config"
	"github.com/cardvault/walletcore/internal/events"
	"github.com/cardvault/walletcore/internal/host"
)

const challengeSize = 32

// confirmGate maps the config knob onto the engine's confirmation hook. A
// nil ConfirmFn leaves the engine on its accept-all default.
func confirmGate(required bool) auth.ConfirmFn {
	if !required {
		return nil
	}
	return auth.PromptConfirm(os.Stdin, os.Stderr)
}

func New() *cobra.Command {
	var cardIndex uint8
	var pair bool

	cmd := &cobra.Command{
		Use:   "emulate",
		Short: "Run a card authentication flow against a software card",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runEmulation(cmd.Context(), cardIndex, pair); err != nil {
				log.Fatal().Err(err).Msg("Emulation failed")
			}
		},
	}

	cmd.Flags().Uint8Var(&cardIndex, "card", 1, "Card slot to emulate (1-4)")
	cmd.Flags().BoolVar(&pair, "pair", true, "Pair the card after verification")

	return cmd
}

// scriptedHost plays the host's half of the conversation: it verifies each
// signature the device emits and pushes the next query back into the event
// source, exactly as a connected application would over the wire.
type scriptedHost struct {
	source    *events.ChannelSource
	softCard  *card.SoftCard
	challenge []byte
}

func (h *scriptedHost) Send(payload []byte) error {
	resp, err := host.DecodeResponse(payload)
	if err != nil {
		return err
	}

	switch {
	case resp.SerialSignature != nil:
		ok := card.VerifySerialSignature(h.softCard.PublicKey(),
			resp.SerialSignature.Serial, resp.SerialSignature.Signature)
		log.Info().Bool("verified", ok).Msg("Serial signature received")
		if !ok {
			return h.pushResult(false)
		}
		return h.pushChallenge()

	case resp.ChallengeSignature != nil:
		ok := card.VerifyChallengeSignature(h.softCard.PublicKey(),
			h.softCard.Serial(), h.challenge, resp.ChallengeSignature.Signature)
		log.Info().Bool("verified", ok).Msg("Challenge signature received")
		return h.pushResult(ok)

	case resp.FlowComplete != nil:
		log.Info().Bool("failed", resp.FlowComplete.Failed).Msg("Flow complete")
		return nil

	default:
		return errors.New("response discriminant unset")
	}
}

func (h *scriptedHost) pushChallenge() error {
	payload, err := host.EncodeQuery(&host.Query{AuthCard: &host.AuthCardRequest{
		Challenge: &host.ChallengeRequest{Challenge: h.challenge},
	}})
	if err != nil {
		return err
	}
	h.source.PushHost(payload)
	return nil
}

func (h *scriptedHost) pushResult(verified bool) error {
	payload, err := host.EncodeQuery(&host.Query{AuthCard: &host.AuthCardRequest{
		Result: &host.ResultRequest{Verified: verified},
	}})
	if err != nil {
		return err
	}
	h.source.PushHost(payload)
	return nil
}

func runEmulation(ctx context.Context, cardIndex uint8, pair bool) error {
	cfg := config.DefaultServiceConfigFromEnv()

	source := events.NewChannelSource()
	softCard, err := card.NewSoftCard(cardIndex, source)
	if err != nil {
		return err
	}

	challenge := make([]byte, challengeSize)
	if _, err := io.ReadFull(rand.Reader, challenge); err != nil {
		return errors.Wrap(err, "generate challenge")
	}

	hostSide := &scriptedHost{source: source, softCard: softCard, challenge: challenge}
	adapter, err := host.NewAdapter(hostSide)
	if err != nil {
		return err
	}

	engine, err := auth.NewEngine(auth.Config{
		Events:    source,
		Transport: softCard,
		Confirm:   confirmGate(cfg.Auth.ConfirmRequired),
		Timeout:   cfg.Auth.InactivityTimeout,
		Logger:    log.Logger,
	})
	if err != nil {
		return err
	}

	initial := &host.AuthCardRequest{Initiate: &host.InitiateRequest{
		CardIndex: &cardIndex,
		PairCard:  &pair,
	}}
	if err := engine.Run(ctx, adapter, initial); err != nil {
		return err
	}

	log.Info().
		Str("state", engine.Status().String()).
		Bool("paired", softCard.Paired()).
		Msg("Emulation finished")
	return nil
}
