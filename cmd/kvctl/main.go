// Command kvctl is the CLI client for a running kv-provider: it dials the
// provider's grpc fabric and issues the same operations spec §4
// describes, plus a YAML-manifest "apply" convenience (spec §6.4).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kvfabric/kvfabric/pkg/client"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kvctl",
	Short:   "kvctl talks to a kv-provider over grpc",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"kvctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("provider", "127.0.0.1:7070", "kv-provider grpc address")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(existsCmd)
	rootCmd.AddCommand(eraseCmd)
	rootCmd.AddCommand(migrateCmd)

	dbCmd.AddCommand(dbAttachCmd)
	dbCmd.AddCommand(dbRemoveCmd)
	dbCmd.AddCommand(dbListCmd)

	migrateCmd.AddCommand(migrateKeysCmd)
	migrateCmd.AddCommand(migrateRangeCmd)
	migrateCmd.AddCommand(migratePrefixCmd)
	migrateCmd.AddCommand(migrateAllCmd)
	migrateCmd.AddCommand(migrateDatabaseCmd)

	migrateCmd.PersistentFlags().Uint64("db", 0, "Source database id")
	migrateCmd.PersistentFlags().String("dst", "", "Destination provider grpc address")
	migrateCmd.PersistentFlags().Uint64("dst-db", 0, "Destination database id")
	migrateCmd.PersistentFlags().Bool("remove-original", false, "Erase each key from the source after it lands on the destination")
	migrateCmd.MarkPersistentFlagRequired("db")
	migrateCmd.MarkPersistentFlagRequired("dst")

	migrateDatabaseCmd.Flags().String("dst-root", "", "Destination on-disk root for the relocated database's backend files")
	migrateDatabaseCmd.MarkFlagRequired("dst-root")

	dbRemoveCmd.Flags().Uint64("id", 0, "Database id to remove")
	dbRemoveCmd.MarkFlagRequired("id")

	dbAttachCmd.Flags().String("backend", "map", "Backend kind: null, map, log_store, btree_store")
	dbAttachCmd.Flags().String("path", "", "On-disk path, required for persistent backends")
	dbAttachCmd.Flags().String("comparator", "", "Registered comparator name")
	dbAttachCmd.Flags().Bool("no-overwrite", false, "Reject put on an existing key")

	dbListCmd.Flags().Int("max", 0, "Maximum number of databases to list (0 = unbounded)")

	for _, cmd := range []*cobra.Command{putCmd, getCmd, existsCmd, eraseCmd} {
		cmd.Flags().Uint64("db", 0, "Database id")
		cmd.MarkFlagRequired("db")
	}
	getCmd.Flags().Int("capacity", 0, "Buffer capacity hint (0 = unbounded)")

	applyCmd.Flags().StringP("file", "f", "", "Manifest file to apply (required)")
	applyCmd.MarkFlagRequired("file")
}

func dialCmd(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("provider")
	return client.NewClient(addr)
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage attached databases",
}
