package main

import (
	"fmt"

	"dmarchive/internal/archive"
	"dmarchive/internal/config"
	"dmarchive/internal/timezone"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the archive's current state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}

			store, err := archive.Open(cfg.Archive.DataDir, cfg.Friend.Username, timezone.Melbourne(), logger)
			if err != nil {
				return err
			}
			if err := store.Load(); err != nil {
				return err
			}

			fmt.Printf("friend:    %s\n", cfg.Friend.Username)
			fmt.Printf("folder:    %s\n", store.Dir())
			fmt.Printf("messages:  %d\n", store.Len())
			if marker := store.Marker(); marker != nil {
				fmt.Printf("newest:    %s (id %s)\n", marker.Timestamp.Format("2006-01-02 15:04:05 -07:00"), marker.ID)
			} else {
				fmt.Println("newest:    never synced")
			}
			return nil
		},
	}
}
