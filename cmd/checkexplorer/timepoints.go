package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"checkexplorer/internal/minimap"
	"checkexplorer/internal/models"
	"checkexplorer/internal/timepoints"
)

func newTimepointsCommand() *cobra.Command {
	var (
		from, to int64
		epochs   []string
		pageSize int
	)
	cmd := &cobra.Command{
		Use:     "timepoints",
		Short:   "Print the expected timepoints and minimap sections of a range",
		Example: `checkexplorer timepoints --from 0 --to 10800000 --epoch 60000@0 --epoch 30000@5400000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := parseEpochs(epochs)
			if err != nil {
				return err
			}
			return renderTimepoints(cmd.OutOrStdout(), from, to, parsed, pageSize)
		},
	}
	cmd.Flags().Int64Var(&from, "from", 0, "range start, unix milliseconds (exclusive)")
	cmd.Flags().Int64Var(&to, "to", 0, "range end, unix milliseconds (inclusive)")
	cmd.Flags().StringArrayVar(&epochs, "epoch", nil, "frequency_ms@effective_from_ms, repeatable, ascending")
	cmd.Flags().IntVar(&pageSize, "page-size", minimap.DefaultPageSize, "timepoints per minimap section")
	if err := cmd.MarkFlagRequired("to"); err != nil {
		panic(err)
	}
	if err := cmd.MarkFlagRequired("epoch"); err != nil {
		panic(err)
	}
	return cmd
}

// parseEpochs reads "frequency@effectiveFrom" pairs.
func parseEpochs(raw []string) ([]models.ConfigEpoch, error) {
	out := make([]models.ConfigEpoch, 0, len(raw))
	for _, item := range raw {
		freq, since, ok := strings.Cut(item, "@")
		if !ok {
			return nil, fmt.Errorf("epoch %q: want frequency@effective_from", item)
		}
		f, err := strconv.ParseInt(strings.TrimSpace(freq), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("epoch %q: frequency: %w", item, err)
		}
		e, err := strconv.ParseInt(strings.TrimSpace(since), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("epoch %q: effective_from: %w", item, err)
		}
		out = append(out, models.ConfigEpoch{FrequencyMs: f, EffectiveFrom: e})
	}
	return out, nil
}

func renderTimepoints(w io.Writer, from, to int64, epochs []models.ConfigEpoch, pageSize int) error {
	axis, err := timepoints.Generate(from, to, epochs)
	if err != nil {
		return err
	}
	sections := minimap.Partition(axis, pageSize)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SECTION\tINDEXES\tFROM\tTO")
	for _, s := range sections {
		fmt.Fprintf(tw, "%d\t%d-%d\t%s\t%s\n", s.Index, s.FromIndex, s.ToIndex, formatMs(s.From), formatMs(s.To))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "INDEX\tADJUSTED\tFREQUENCY")
	for _, tp := range axis {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", tp.Index, formatMs(tp.AdjustedTime), tp.Config.Frequency())
	}
	return tw.Flush()
}

func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
