package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kvfabric/kvfabric/pkg/comparator"
	"github.com/kvfabric/kvfabric/pkg/config"
	"github.com/kvfabric/kvfabric/pkg/log"
	"github.com/kvfabric/kvfabric/pkg/provider"
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
	Use:   "kv-provider",
	Short: "kv-provider hosts one or more named key-value databases over grpc",
	Long: `kv-provider is the provider process of the kvfabric storage
model: it attaches named databases against pluggable backends and
serves the key-value fabric (put/get/erase, migration) over grpc.`,
	Version: Version,
	RunE:    runProvider,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"kv-provider version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.Flags().String("config", "", "Path to provider config YAML (falls back to $KVFABRIC_CONFIG)")
	rootCmd.Flags().String("manifest", "", "Path to a database manifest to attach at startup")
	rootCmd.Flags().String("bind-addr", "", "Override the grpc bind address")
}

func runProvider(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = os.Getenv(config.EnvVar)
	}
	manifestPath, _ := cmd.Flags().GetString("manifest")
	bindAddrOverride, _ := cmd.Flags().GetString("bind-addr")

	cfg, err := config.LoadProvider(configPath)
	if err != nil {
		return err
	}
	if bindAddrOverride != "" {
		cfg.BindAddr = bindAddrOverride
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})

	comparators := comparator.New()
	p := provider.New(cfg, comparators)

	if manifestPath != "" {
		attachConfigs, err := config.LoadManifest(manifestPath)
		if err != nil {
			return fmt.Errorf("kv-provider: load manifest: %w", err)
		}
		for _, ac := range attachConfigs {
			info, err := p.Engine().Attach(ac)
			if err != nil {
				return fmt.Errorf("kv-provider: attach %q: %w", ac.Name, err)
			}
			log.WithDatabase(info.Name).Info().Uint64("db_id", info.ID).Msg("attached from manifest")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	log.Info(fmt.Sprintf("kv-provider starting on %s", cfg.BindAddr))
	return p.Serve(ctx)
}
