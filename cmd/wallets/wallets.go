// Package wallets inspects and maintains the device's encrypted wallet
// slot table.
package wallets

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cardvault/walletcore/internal/config"
	"github.com/cardvault/walletcore/internal/store"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallets",
		Short: "Wallet slot table tools",
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())
	return cmd
}

func openStore() (*store.SlotStore, error) {
	cfg := config.DefaultServiceConfigFromEnv()
	if cfg.Store.Passphrase == "" {
		return nil, errors.New("WALLETCORE_STORE_PASSPHRASE is not set")
	}
	return store.NewSlotStore(cfg.Store.Path, cfg.Store.Passphrase, log.Logger)
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List occupied wallet slots",
		Run: func(cmd *cobra.Command, args []string) {
			s, err := openStore()
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to open wallet store")
			}

			entries, err := s.List()
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to list wallet slots")
			}
			if len(entries) == 0 {
				log.Info().Msg("No wallets stored")
				return
			}
			for _, e := range entries {
				log.Info().Int("slot", e.Slot).Str("name", e.Name).Msg("Wallet")
			}
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <slot>",
		Short: "Clear a wallet slot",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			slot, err := strconv.Atoi(args[0])
			if err != nil {
				log.Fatal().Str("arg", args[0]).Msg("Slot must be a number")
			}

			s, err := openStore()
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to open wallet store")
			}
			if err := s.Delete(slot); err != nil {
				log.Fatal().Err(err).Int("slot", slot).Msg("Failed to clear wallet slot")
			}
			log.Info().Int("slot", slot).Msg("Wallet slot cleared")
		},
	}
}
