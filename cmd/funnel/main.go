package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/servicefunnel/internal/profile"
	"github.com/hrygo/servicefunnel/server"
	"github.com/hrygo/servicefunnel/store"
	"github.com/hrygo/servicefunnel/store/db"
)

const version = "0.3.0"

var (
	rootCmd = &cobra.Command{
		Use:   "funnel",
		Short: "Routes free-text maintenance complaints to catalog services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
)

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("catalog-file", "", "serve the catalog from a YAML file instead of the database")
	rootCmd.PersistentFlags().String("features", "", "feature table overriding the embedded one")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "catalog-file", "features"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("funnel")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd)
}

// loadProfile builds the profile from flags, FUNNEL_* variables and defaults.
func loadProfile() (*profile.Profile, error) {
	prof := &profile.Profile{
		Mode:         viper.GetString("mode"),
		Addr:         viper.GetString("addr"),
		Port:         viper.GetInt("port"),
		Data:         viper.GetString("data"),
		Driver:       viper.GetString("driver"),
		DSN:          viper.GetString("dsn"),
		CatalogFile:  viper.GetString("catalog-file"),
		FeaturesPath: viper.GetString("features"),
		Version:      version,
	}
	prof.FromEnv()
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	return prof, nil
}

func openStore(ctx context.Context, prof *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(prof)
	if err != nil {
		return nil, fmt.Errorf("failed to create db driver: %w", err)
	}
	st := store.New(dbDriver, prof)
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return st, nil
}

func runServe(ctx context.Context) error {
	prof, err := loadProfile()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := openStore(ctx, prof)
	if err != nil {
		return err
	}

	s, err := server.NewServer(ctx, prof, st)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	c := make(chan os.Signal, 1)
	// Trigger graceful shutdown on SIGINT or SIGTERM.
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := s.Start(ctx); err != nil {
		s.Shutdown(ctx)
		return fmt.Errorf("failed to start server: %w", err)
	}
	printGreetings(prof)

	<-c
	s.Shutdown(context.Background())
	return nil
}

func printGreetings(prof *profile.Profile) {
	slog.Info("funnel started",
		slog.String("version", prof.Version),
		slog.String("mode", prof.Mode),
		slog.String("driver", prof.Driver),
		slog.String("addr", fmt.Sprintf("%s:%d", prof.Addr, prof.Port)),
		slog.Bool("llm", prof.IsLLMEnabled()),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
