package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/treemerge/pkg/hook"
)

func newHookCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "List or run configured hooks",
	}
	cmd.AddCommand(newHookListCmd(a))
	cmd.AddCommand(newHookRunCmd(a))
	return cmd
}

func newHookListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <event>",
		Short: "Show the commands that would run for an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			for _, h := range r.Hooks(nil, cmd.ErrOrStderr()).List(args[0]) {
				if h.FromHookDir {
					fmt.Fprintf(out, "%s (hookdir)\n", h.Command)
					continue
				}
				fmt.Fprintln(out, h.Command)
			}
			return nil
		},
	}
}

func newHookRunCmd(a *app) *cobra.Command {
	var (
		policy        string
		ignoreMissing bool
	)

	cmd := &cobra.Command{
		Use:   "run <event> [args...]",
		Short: "Run the hooks for an event",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			p := r.HookPolicy()
			if policy != "" {
				p = hook.ParsePolicy(policy)
			}
			runner := r.Hooks(cmd.InOrStdin(), cmd.ErrOrStderr())
			event := args[0]
			if !runner.Exists(event, p) {
				if ignoreMissing {
					return nil
				}
				return fmt.Errorf("hook: no hooks configured for event %q", event)
			}

			rc, err := runner.Run(cmd.Context(), event, args[1:], p)
			if err != nil {
				a.logger.Error("hook failed to start", "event", event, "err", err)
			}
			if rc != 0 {
				return &exitError{code: rc}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&policy, "run-hookdir", "", "override hook.runhookdir (yes, no, warn, interactive)")
	cmd.Flags().BoolVar(&ignoreMissing, "ignore-missing", false, "exit quietly when no hook is configured")
	return cmd
}
