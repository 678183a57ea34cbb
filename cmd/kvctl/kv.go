package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put KEY VALUE",
	Short: "Write a key/value pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbID, _ := cmd.Flags().GetUint64("db")

		c, err := dialCmd(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Put(dbID, []byte(args[0]), []byte(args[1])); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Read a key's value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbID, _ := cmd.Flags().GetUint64("db")
		capacity, _ := cmd.Flags().GetInt("capacity")

		c, err := dialCmd(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		value, err := c.Get(dbID, []byte(args[0]), capacity)
		if err != nil {
			return err
		}
		fmt.Println(string(value))
		return nil
	},
}

var existsCmd = &cobra.Command{
	Use:   "exists KEY",
	Short: "Report whether a key is present",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbID, _ := cmd.Flags().GetUint64("db")

		c, err := dialCmd(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		ok, err := c.Exists(dbID, []byte(args[0]))
		if err != nil {
			return err
		}
		fmt.Println(ok)
		return nil
	},
}

var eraseCmd = &cobra.Command{
	Use:   "erase KEY",
	Short: "Remove a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbID, _ := cmd.Flags().GetUint64("db")

		c, err := dialCmd(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Erase(dbID, []byte(args[0])); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}
