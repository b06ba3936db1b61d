// Command walletcore is the device-side wallet core CLI: an emulator for
// the card authentication flow and tools for the encrypted wallet slot
// table.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cardvault/walletcore/cmd/emulate"
	"github.com/cardvault/walletcore/cmd/run"
	"github.com/cardvault/walletcore/cmd/wallets"
	"github.com/cardvault/walletcore/internal/config"
)

func main() {
	cfg := config.DefaultServiceConfigFromEnv()
	setupLogger(cfg.Logger)

	root := &cobra.Command{
		Use:   "walletcore",
		Short: "Hardware wallet core: card authentication and wallet storage",
	}
	root.AddCommand(run.New())
	root.AddCommand(emulate.New())
	root.AddCommand(wallets.New())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func setupLogger(cfg config.LoggerServer) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
