package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrygo/servicefunnel/store"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Summarize recorded model calls per day and purpose",
	RunE: func(cmd *cobra.Command, _ []string) error {
		days, _ := cmd.Flags().GetInt("days")
		purpose, _ := cmd.Flags().GetString("purpose")

		prof, err := loadProfile()
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), prof)
		if err != nil {
			return err
		}
		defer st.Close()

		after := time.Now().AddDate(0, 0, -days).Unix()
		find := &store.FindLLMUsage{CreatedAfter: &after}
		if purpose != "" {
			find.Purpose = &purpose
		}
		list, err := st.ListLLMUsage(cmd.Context(), find)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DAY\tPURPOSE\tCALLS\tFAILURES\tIN\tOUT\tCOST USD")
		for _, d := range store.SummarizeLLMUsage(list) {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%.4f\n",
				d.Day, d.Purpose, d.Calls, d.Failures, d.InputTokens, d.OutputTokens, d.CostUSD)
		}
		return w.Flush()
	},
}

func init() {
	usageCmd.Flags().Int("days", 7, "number of days to cover")
	usageCmd.Flags().String("purpose", "", "only calls made for this purpose")
	rootCmd.AddCommand(usageCmd)
}
