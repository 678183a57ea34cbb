package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvfabric/kvfabric/pkg/config"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Attach every database named in a manifest file",
	Long: `apply reads a YAML manifest of one or more
"apiVersion: kvfabric/v1\nkind: Database" documents and calls Attach
against the running provider for each one, in document order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		attachConfigs, err := config.LoadManifest(file)
		if err != nil {
			return err
		}

		c, err := dialCmd(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		for _, ac := range attachConfigs {
			info, err := c.Attach(ac)
			if err != nil {
				return fmt.Errorf("attach %q: %w", ac.Name, err)
			}
			fmt.Printf("attached %s (id=%d, backend=%s)\n", info.Name, info.ID, ac.Backend)
		}
		return nil
	},
}
