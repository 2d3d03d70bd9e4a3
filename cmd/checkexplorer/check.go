package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"checkexplorer/internal/config"
	"checkexplorer/internal/models"
	"checkexplorer/internal/storage"
	"checkexplorer/internal/timepoints"
)

// newCheckCommand manages the configuration history and probe selection
// stored for a check.
func newCheckCommand(configPath *string) *cobra.Command {
	var checkID string
	var store *storage.CheckStore
	var closeDB func() error

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Manage stored check configuration",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := storage.Open(cmd.Context(), cfg.DatabasePath)
			if err != nil {
				return err
			}
			store = storage.NewCheckStore(db)
			closeDB = db.Close
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if closeDB == nil {
				return nil
			}
			return closeDB()
		},
	}
	cmd.PersistentFlags().StringVar(&checkID, "check", "", "check identifier")
	if err := cmd.MarkPersistentFlagRequired("check"); err != nil {
		panic(err)
	}

	var (
		frequency     int64
		effectiveFrom int64
	)
	epochCmd := &cobra.Command{
		Use:   "epoch",
		Short: "Record a frequency change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			epoch := models.ConfigEpoch{FrequencyMs: frequency, EffectiveFrom: effectiveFrom}
			existing, err := store.ConfigEpochs(cmd.Context(), checkID)
			if err != nil {
				return err
			}
			if err := timepoints.ValidateEpochs(mergeEpoch(existing, epoch)); err != nil {
				return err
			}
			if err := store.RecordEpoch(cmd.Context(), checkID, epoch); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "check %s: %s from %s\n", checkID, epoch.Frequency(), formatMs(effectiveFrom))
			return nil
		},
	}
	epochCmd.Flags().Int64Var(&frequency, "frequency", 0, "execution frequency in milliseconds")
	epochCmd.Flags().Int64Var(&effectiveFrom, "effective-from", 0, "unix milliseconds the frequency applies from")
	if err := epochCmd.MarkFlagRequired("frequency"); err != nil {
		panic(err)
	}

	var probes []string
	probesCmd := &cobra.Command{
		Use:   "probes",
		Short: "Select the probes shown for a check",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := store.SetSelectedProbes(cmd.Context(), checkID, probes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "check %s: probes %s\n", checkID, strings.Join(probes, ", "))
			return nil
		},
	}
	probesCmd.Flags().StringSliceVar(&probes, "probe", nil, "probe names, in display order")

	cmd.AddCommand(epochCmd, probesCmd)
	return cmd
}

// mergeEpoch returns history with epoch inserted, replacing an epoch with the
// same start.
func mergeEpoch(history []models.ConfigEpoch, epoch models.ConfigEpoch) []models.ConfigEpoch {
	out := make([]models.ConfigEpoch, 0, len(history)+1)
	inserted := false
	for _, e := range history {
		switch {
		case e.EffectiveFrom == epoch.EffectiveFrom:
			continue
		case !inserted && e.EffectiveFrom > epoch.EffectiveFrom:
			out = append(out, epoch)
			inserted = true
		}
		out = append(out, e)
	}
	if !inserted {
		out = append(out, epoch)
	}
	return out
}
