package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/odvcencio/treemerge/pkg/repo"
)

const version = "0.1.0-dev"

// exitError carries a non-zero exit status that is not a failure worth
// printing, such as a merge that left conflicts.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// app holds settings shared by every subcommand.
type app struct {
	v      *viper.Viper
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: slog.Default()}

	root := &cobra.Command{
		Use:               "treemerge",
		Short:             "Three-way merge of directory trees",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.StringP("dir", "C", ".", "run as if started in `dir`")
	flags.Bool("no-color", false, "disable colored output")

	a.v.BindPFlag("verbose", flags.Lookup("verbose"))
	a.v.BindPFlag("dir", flags.Lookup("dir"))
	a.v.BindPFlag("no_color", flags.Lookup("no-color"))
	a.v.SetEnvPrefix("TREEMERGE")
	a.v.AutomaticEnv()

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newWriteTreeCmd(a))
	root.AddCommand(newReadTreeCmd(a))
	root.AddCommand(newLsTreeCmd(a))
	root.AddCommand(newLsFilesCmd(a))
	root.AddCommand(newMergeTreeCmd(a))
	root.AddCommand(newHookCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if a.v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	noColor := a.v.GetBool("no_color") || !isatty.IsTerminal(os.Stderr.Fd())
	if noColor {
		color.NoColor = true
	}
	a.logger = slog.New(tint.NewHandler(cmd.ErrOrStderr(), &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}))
	return nil
}

// openRepo opens the repository containing the -C directory.
func (a *app) openRepo() (*repo.Repo, error) {
	r, err := repo.Open(a.v.GetString("dir"))
	if err != nil {
		return nil, err
	}
	r.Logger = a.logger
	return r, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "treemerge %s\n", version)
		},
	}
}
