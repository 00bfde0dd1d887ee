package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	dkod "github.com/dkod-io/agent-sdk-go"
)

// dispatch runs one tool on a fresh session and prints its JSON result, so
// the CLI shows exactly what a model would see.
func (a *app) dispatch(cmd *cobra.Command, intent, tool string, args map[string]any) error {
	return a.withSession(cmd, intent, func(session *dkod.Session) error {
		out, err := dkod.Dispatch(cmd.Context(), session, tool, args, dkod.WithDispatchLogger(a.logger))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
		return err
	})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Connect and print the session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.dispatch(cmd, "status check", dkod.ToolSessionStatus, map[string]any{})
		},
	}
}

func newContextCmd(a *app) *cobra.Command {
	var (
		depth        string
		maxTokens    int
		includeTests bool
		includeDeps  bool
	)
	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Search the codebase for symbols relevant to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := map[string]any{
				"query":                args[0],
				"depth":                depth,
				"include_tests":        includeTests,
				"include_dependencies": includeDeps,
				"max_tokens":           maxTokens,
			}
			return a.dispatch(cmd, "context query", dkod.ToolContext, toolArgs)
		},
	}
	cmd.Flags().StringVar(&depth, "depth", string(dkod.DepthFull), "SIGNATURES, FULL or CALL_GRAPH")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", dkod.DefaultMaxTokens, "token budget for the result")
	cmd.Flags().BoolVar(&includeTests, "include-tests", false, "include test symbols")
	cmd.Flags().BoolVar(&includeDeps, "include-deps", false, "include external dependencies")
	return cmd
}

func newReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <path>",
		Short: "Print a file as seen by the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, "read file", func(session *dkod.Session) error {
				res, err := session.FileRead(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), res.Content)
				return err
			})
		},
	}
}

// resume rebinds session to changeset when one was given on the command line.
// Each CLI invocation opens a new session, so verify and merge need it to act
// on work submitted earlier.
func resume(session *dkod.Session, changeset string) error {
	if changeset == "" {
		return nil
	}
	return session.UseChangeset(changeset)
}

func newVerifyCmd(a *app) *cobra.Command {
	var changeset string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the verification pipeline on a changeset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, "verify", func(session *dkod.Session) error {
				if err := resume(session, changeset); err != nil {
					return err
				}
				steps, err := session.Verify(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, steps)
			})
		},
	}
	cmd.Flags().StringVar(&changeset, "changeset", "", "changeset to verify (default: the one opened by this session)")
	return cmd
}

func newMergeCmd(a *app) *cobra.Command {
	var message, changeset string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a verified changeset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, "merge", func(session *dkod.Session) error {
				if err := resume(session, changeset); err != nil {
					return err
				}
				res, err := session.Merge(cmd.Context(), message)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&changeset, "changeset", "", "changeset to merge (default: the one opened by this session)")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
