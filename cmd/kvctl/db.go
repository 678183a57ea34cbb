package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvfabric/kvfabric/pkg/types"
)

var dbAttachCmd = &cobra.Command{
	Use:   "attach NAME",
	Short: "Attach a new database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, _ := cmd.Flags().GetString("backend")
		path, _ := cmd.Flags().GetString("path")
		cmpName, _ := cmd.Flags().GetString("comparator")
		noOverwrite, _ := cmd.Flags().GetBool("no-overwrite")

		c, err := dialCmd(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		info, err := c.Attach(types.AttachConfig{
			Name:           args[0],
			Path:           path,
			Backend:        types.BackendKind(backend),
			ComparatorName: cmpName,
			NoOverwrite:    noOverwrite,
		})
		if err != nil {
			return err
		}
		fmt.Printf("attached %s (id=%d)\n", info.Name, info.ID)
		return nil
	},
}

var dbRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Detach a database",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetUint64("id")

		c, err := dialCmd(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Remove(id); err != nil {
			return err
		}
		fmt.Printf("removed database %d\n", id)
		return nil
	},
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attached databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		max, _ := cmd.Flags().GetInt("max")

		c, err := dialCmd(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		dbs, err := c.ListDatabases(max)
		if err != nil {
			return err
		}
		if len(dbs) == 0 {
			fmt.Println("No databases attached")
			return nil
		}
		fmt.Printf("%-20s %s\n", "NAME", "ID")
		for _, db := range dbs {
			fmt.Printf("%-20s %d\n", db.Name, db.ID)
		}
		return nil
	},
}
