package cli

import (
	"os"
	"path/filepath"

	"scenefetch/internal/config"
	"scenefetch/internal/logging"
	"scenefetch/internal/store"

	"github.com/spf13/cobra"
)

var (
	cfg        = config.New()
	configPath string
)

// NewRootCmd builds the scenefetch command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenefetch",
		Short: "Bulk scene downloader for the USGS machine-to-machine API",
		Long: `scenefetch searches a remote scene catalog, persists scene metadata in a
local SQLite database and downloads the matching products. The remote
download queue is reconciled against local completion state, so an
interrupted run picks up where it left off.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd)
		},
	}

	fl := cmd.PersistentFlags()
	fl.StringVar(&configPath, "config", "", "config file path (YAML)")
	fl.String("endpoint", "", "catalog API endpoint (default: production)")
	fl.String("username", "", "account username (default: $"+config.EnvUsername+")")
	fl.String("auth", "", "password or application token (default: $"+config.EnvAuth+")")
	fl.String("auth-method", "token", "credential kind: token|password")
	fl.String("db", "", "scene database path (default: OS cache dir)")
	fl.String("log-level", "info", "log level: debug|info|warn|error")
	fl.BoolP("dry-run", "d", false, "report what would be done without downloading")

	cmd.AddCommand(
		newDownloadCmd(),
		newStatusCmd(),
		newExportCmd(),
		newPruneCmd(),
	)

	return cmd
}

// initConfig layers configuration: defaults, then environment (.env
// included), then the optional config file, then explicitly set flags.
func initConfig(cmd *cobra.Command) error {
	cfg = config.New()
	cfg.LoadEnv()
	if configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			return err
		}
	}

	fl := cmd.Flags()
	setString := func(name string, target *string) {
		if fl.Changed(name) {
			v, _ := fl.GetString(name)
			*target = v
		}
	}
	setString("endpoint", &cfg.Endpoint)
	setString("username", &cfg.Username)
	setString("auth", &cfg.Auth)
	setString("auth-method", &cfg.AuthMethod)
	setString("db", &cfg.DBPath)
	setString("log-level", &cfg.LogLevel)
	if fl.Changed("dry-run") {
		cfg.DryRun, _ = fl.GetBool("dry-run")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ResolveDBPath(); err != nil {
		return err
	}

	logging.Init(logging.ParseLevel(cfg.LogLevel))
	return nil
}

// openStore connects to the scene database, creating its directory when
// needed. The returned closer disconnects.
func openStore() (*store.Store, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.AbsDBPath), 0o755); err != nil {
		return nil, nil, err
	}
	st := store.New(cfg.AbsDBPath)
	if err := st.Connect(); err != nil {
		return nil, nil, err
	}
	return st, func() { _ = st.Disconnect() }, nil
}
