package main

import (
	"github.com/spf13/cobra"
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore <profile-id>",
	Short: "Re-score the stored job corpus against one profile and exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.close()
		return e.coord.RescoreProfile(cmd.Context(), args[0])
	},
}
