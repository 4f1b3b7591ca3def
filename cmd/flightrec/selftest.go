package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bft-labs/flightrec/internal/cliconfig"
	"github.com/bft-labs/flightrec/pkg/log"
)

func newSelfTestCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Write and read back a test pattern in the archive store",
		Long: "Write and read back a test pattern at address 0 of the archive store. " +
			"The pattern overwrites the start of the first archived window.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd, cfg, *cfgPath); err != nil {
				return err
			}
			if cfg.StorePath == "" {
				return fmt.Errorf("selftest needs --store")
			}

			svc, port, err := cliconfig.OpenArchive(*cfg, log.NewZerologAdapterWithLogger(cliconfig.Logger()))
			if err != nil {
				return err
			}
			defer port.Close()

			testErr := svc.SelfTest(cmd.Context())
			st := svc.Status()
			fmt.Fprintf(cmd.OutOrStdout(), "state=%s reason=%s errors=%d reads=%d writes=%d\n",
				st.State, st.NotReadyReason, st.ConsecutiveErrors, st.ReadTransactions, st.WriteTransactions)
			if testErr != nil {
				return fmt.Errorf("selftest %s: %w", cfg.StorePath, testErr)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return port.Sync()
		},
	}
}
