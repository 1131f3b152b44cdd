package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
)

var (
	catalogCmd = &cobra.Command{
		Use:   "catalog",
		Short: "Manage the service catalog",
	}

	catalogImportCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "Upsert the services of a YAML catalog into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := catalog.ReadFile(args[0])
			if err != nil {
				return err
			}

			prof, err := loadProfile()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), prof)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := catalog.Import(cmd.Context(), st, file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d services from %s\n", n, args[0])
			return nil
		},
	}
)

func init() {
	catalogCmd.AddCommand(catalogImportCmd)
	rootCmd.AddCommand(catalogCmd)
}
