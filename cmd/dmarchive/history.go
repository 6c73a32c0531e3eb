package main

import (
	"fmt"
	"text/tabwriter"

	"dmarchive/internal/config"
	"dmarchive/internal/runlog"

	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent synchronization runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			if !cfg.RunLog.Enabled {
				return fmt.Errorf("run history is disabled (runLog.enabled: false)")
			}

			store, err := runlog.Open(cfg.RunLog.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), cfg.Friend.Username, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Printf("no recorded runs for %s\n", cfg.Friend.Username)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tOUTCOME\tNEW\tDUP\tMEDIA\tFAILED\tPAGES\tDETAIL")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04"),
					r.Outcome, r.NewMessages, r.Duplicates,
					r.MediaDownloaded, r.MediaFailed, r.PagesFetched, r.Detail)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}
