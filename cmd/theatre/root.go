package main

import (
	"fmt"
	"os"

	"github.com/aretw0/theatre/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "theatre",
	Short: "Theatre builds trace trees of hypothetical charm events",
	Long: `Theatre lets you build a tree of event-driven state transitions for a charm
and inspect the resulting state, logs and errors at each node. Outputs are
memoized and only recomputed when something upstream changes.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("dir", ".", "Charm repository containing the .theatre directory")
	flags.Bool("debug", false, "Log engine activity to stderr")
	flags.String("scene", "", "Stored scene to open (default: a new scene named after the repository)")
	flags.String("situation", "", "Situation whose default mounts apply")
	flags.String("store", cli.StoreFile, "Scene store: file, redis or sqlite")
	flags.String("redis-addr", "localhost:6379", "Redis address (with --store redis)")
	flags.String("sqlite-path", "", "SQLite database (with --store sqlite, default .theatre/scenes.db)")
	flags.StringSlice("redact", nil, "Key patterns masked in custom values before saving (repeatable)")
}

// options reads the persistent flags and the scene key from the environment.
// A positional repository argument is honoured when --dir was not given.
func options(cmd *cobra.Command, args []string) (cli.Options, error) {
	flags := cmd.Flags()
	opts := cli.Options{}
	opts.RepoPath, _ = flags.GetString("dir")
	opts.Debug, _ = flags.GetBool("debug")
	opts.Scene, _ = flags.GetString("scene")
	opts.Situation, _ = flags.GetString("situation")
	opts.Store, _ = flags.GetString("store")
	opts.RedisAddr, _ = flags.GetString("redis-addr")
	opts.SQLitePath, _ = flags.GetString("sqlite-path")
	opts.Redact, _ = flags.GetStringSlice("redact")
	if !flags.Changed("dir") && len(args) > 0 {
		opts.RepoPath = args[0]
	}

	key, err := cli.KeyFromEnv()
	if err != nil {
		return opts, err
	}
	opts.EncryptionKey = key
	return opts, nil
}
