package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/i474232898/energy-data-hub/internal/collector"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured sources and their policies",
	Run: func(cmd *cobra.Command, args []string) {
		h, err := loadHub()
		checkError(err)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tENABLED\tHOST\tATTEMPTS\tINITIAL DELAY\tMAX DELAY\tFAILURE THRESHOLD\tBREAKER TIMEOUT")
		for _, src := range h.all {
			sc := h.cfg.Source(src.Name())
			fmt.Fprintf(w, "%s\t%t\t%s\t%d\t%s\t%s\t%d\t%s\n",
				src.Name(),
				sc.Enabled,
				collector.HostOf(src),
				sc.Retry.MaxAttempts,
				sc.Retry.InitialDelay,
				sc.Retry.MaxDelay,
				sc.Breaker.FailureThreshold,
				sc.Breaker.Timeout,
			)
		}
		checkError(w.Flush())
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
