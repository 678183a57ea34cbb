package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvfabric/kvfabric/pkg/types"
)

// migrateFlag turns the --remove-original bool flag into the
// types.MigrationFlag the SDK calls expect.
func migrateFlag(cmd *cobra.Command) types.MigrationFlag {
	remove, _ := cmd.Flags().GetBool("remove-original")
	if remove {
		return types.RemoveOriginal
	}
	return types.KeepOriginal
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate keys from this provider to another",
}

var migrateKeysCmd = &cobra.Command{
	Use:   "keys KEY...",
	Short: "Migrate an explicit set of keys (spec migrate_keys)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbID, _ := cmd.Flags().GetUint64("db")
		dstAddr, _ := cmd.Flags().GetString("dst")
		dstDB, _ := cmd.Flags().GetUint64("dst-db")

		c, err := dialCmd(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		keys := make([][]byte, len(args))
		for i, k := range args {
			keys[i] = []byte(k)
		}

		if err := c.MigrateKeys(dbID, dstAddr, dstDB, keys, migrateFlag(cmd)); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var migrateRangeCmd = &cobra.Command{
	Use:   "range LOWER UPPER",
	Short: "Migrate every key in (LOWER, UPPER) in comparator order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbID, _ := cmd.Flags().GetUint64("db")
		dstAddr, _ := cmd.Flags().GetString("dst")
		dstDB, _ := cmd.Flags().GetUint64("dst-db")

		c, err := dialCmd(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.MigrateKeyRange(dbID, dstAddr, dstDB, []byte(args[0]), []byte(args[1]), migrateFlag(cmd)); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var migratePrefixCmd = &cobra.Command{
	Use:   "prefix PREFIX",
	Short: "Migrate every key with the given prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbID, _ := cmd.Flags().GetUint64("db")
		dstAddr, _ := cmd.Flags().GetString("dst")
		dstDB, _ := cmd.Flags().GetUint64("dst-db")

		c, err := dialCmd(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.MigrateKeysPrefixed(dbID, dstAddr, dstDB, []byte(args[0]), migrateFlag(cmd)); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var migrateAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Migrate the entire keyspace of this database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbID, _ := cmd.Flags().GetUint64("db")
		dstAddr, _ := cmd.Flags().GetString("dst")
		dstDB, _ := cmd.Flags().GetUint64("dst-db")

		c, err := dialCmd(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.MigrateAllKeys(dbID, dstAddr, dstDB, migrateFlag(cmd)); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var migrateDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Relocate an entire database, including its backend files, to another provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbID, _ := cmd.Flags().GetUint64("db")
		dstAddr, _ := cmd.Flags().GetString("dst")
		dstRoot, _ := cmd.Flags().GetString("dst-root")
		removeSrc, _ := cmd.Flags().GetBool("remove-original")

		c, err := dialCmd(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.MigrateDatabase(dbID, dstAddr, dstRoot, removeSrc); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}
