package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"todo/internal/config"
	"todo/internal/logging"
	"todo/internal/store"
)

// cli carries the state shared by every command of one invocation.
type cli struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "todo",
		Short: "A local todo list backed by SQLite",
		Long: `todo keeps a list of items in a local SQLite database.

Every view follows the database live: the web page, the websocket stream
and the terminal list all update when any process changes the file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			// The terminal UI owns the screen, so its logs go to a file.
			if cmd.Name() == "tui" && cfg.LogFile == "" {
				cfg.LogFile = defaultLogFile(cfg.DBPath)
			}
			c.cfg = cfg

			logger, err := logging.New(logging.Options{File: cfg.LogFile, Verbose: cfg.Verbose})
			if err != nil {
				return err
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.logger.Sync()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default ./todo.yaml)")
	flags.String("db-path", "./data/todo.db", "SQLite database path")
	flags.String("port", "8080", "HTTP port for serve")
	flags.String("log-file", "", "write JSON logs to this rotating file")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.Duration("write-timeout", 5*time.Second, "bound on each database write")

	rootCmd.AddCommand(
		newAddCmd(c),
		newListCmd(c),
		newDoneCmd(c),
		newRemoveCmd(c),
		newServeCmd(c),
		newTUICmd(c),
	)
	return rootCmd
}

// defaultLogFile places the log next to the database, or in the working
// directory for in-memory databases.
func defaultLogFile(dbPath string) string {
	file, err := store.DatabaseFile(dbPath)
	if err != nil || file == "" {
		return "todo.log"
	}
	return filepath.Join(filepath.Dir(file), "todo.log")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
