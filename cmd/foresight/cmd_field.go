package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFieldCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "field",
		Short: "Fetch current world-news headlines and show the information field",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			fc, err := a.Service.Field(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch field: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, fc)
			}
			renderField(cmd.OutOrStdout(), fc)
			return nil
		},
	}
}
