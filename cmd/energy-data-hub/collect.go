package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var collectSources []string

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one collection and print the combined dataset as JSON",
	RunE:  runCollect,
}

func init() {
	collectCmd.Flags().StringSliceVar(&collectSources, "source", nil, "source to collect (repeatable, default all enabled)")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	h, err := loadHub()
	if err != nil {
		return err
	}
	defer h.log.Sync() //nolint:errcheck

	summary, err := h.scheduler.RunOnce(cmd.Context(), collectSources...)
	if err != nil {
		return err
	}
	for _, name := range summary.Failed {
		h.log.Warnf("source %s returned no data", name)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary.Combined); err != nil {
		return err
	}

	if len(summary.Collected) == 0 {
		return errors.New("no source returned data")
	}
	return nil
}
