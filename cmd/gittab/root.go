package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gittab/internal/cache"
	"gittab/internal/config"
	"gittab/internal/logging"
	"gittab/internal/project"
	"gittab/internal/repo"
)

var (
	dirFlag      string
	configFlag   string
	logLevelFlag string
	projectFlag  bool
	backendFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "gittab",
	Short: "gittab - git history as tables",
	Long: `gittab extracts git repository metadata (commits, blame, branches, tags)
into tabular records, with derived measures like bus factor and punchcards.
Expensive extractions are cached through a pluggable backend (in-memory,
compressed file, sqlite, or redis).`,
	Version: version,
}

const version = "0.3.0"

func init() {
	rootCmd.SetVersionTemplate("gittab version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "d", ".",
		"Repository working directory (or project root with --project)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"Config file path (default: gittab.yaml in --dir)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&projectFlag, "project", false,
		"Treat --dir as a directory of repositories and aggregate")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "cache-backend", "",
		"Cache backend: none, ephemeral, disk, sqlite, redis (overrides config)")
}

// setup loads config and builds the logger and cache backend shared by
// every command.
func setup() (*config.Config, *logging.Logger, cache.Backend) {
	cfg, err := config.Load(dirFlag, configFlag)
	if err != nil {
		fail("loading config", err)
	}
	if backendFlag != "" {
		cfg.Cache.Backend = backendFlag
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		fail("validating config", err)
	}

	logger := cfg.Logger()
	backend, err := config.BuildBackend(cfg, logger)
	if err != nil {
		fail("building cache backend", err)
	}
	return cfg, logger, backend
}

func openRepo() *repo.Repository {
	cfg, logger, backend := setup()
	r, err := repo.New(dirFlag, repo.Options{
		CacheBackend:  backend,
		DefaultBranch: cfg.DefaultBranch,
		Logger:        logger,
	})
	if err != nil {
		fail("opening repository", err)
	}
	return r
}

func openProject() *project.ProjectDirectory {
	cfg, logger, backend := setup()
	p, err := project.Discover(dirFlag, project.Options{
		CacheBackend:  backend,
		DefaultBranch: cfg.DefaultBranch,
		Logger:        logger,
	})
	if err != nil {
		fail("discovering repositories", err)
	}
	return p
}

func fail(doing string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", doing, err)
	os.Exit(1)
}

// emit renders rows in the requested format and prints them.
func emit(v interface{}, format string) {
	out, err := FormatRows(v, OutputFormat(format))
	if err != nil {
		fail("formatting output", err)
	}
	fmt.Println(out)
}
