package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	dkod "github.com/dkod-io/agent-sdk-go"
	"github.com/dkod-io/agent-sdk-go/src/helpers"
	"github.com/dkod-io/agent-sdk-go/src/models"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tool definitions",
	}
	cmd.AddCommand(newManifestCmd(), newToolsListCmd())
	return cmd
}

func newManifestCmd() *cobra.Command {
	var (
		format string
		only   string
		output string
	)
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print the tool manifest in a provider's format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := manifest(format, helpers.ParseCSVList(only))
			if err != nil {
				return err
			}
			if output == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return os.WriteFile(output, append(data, '\n'), 0o644)
		},
	}
	cmd.Flags().StringVar(&format, "format", "dkod", fmt.Sprintf("one of %v", models.Providers))
	cmd.Flags().StringVar(&only, "only", "", "comma separated tool names to include (dkod format only)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func manifest(format string, only []string) ([]byte, error) {
	if len(only) > 0 {
		if format != "" && format != "dkod" {
			return nil, errors.New("--only is supported with --format dkod")
		}
		tools, err := helpers.FilterTools(dkod.Tools(), only)
		if err != nil {
			return nil, err
		}
		return json.MarshalIndent(tools, "", "  ")
	}
	if format == "" || format == "dkod" {
		return dkod.GenerateManifest()
	}
	tools, err := models.ToolsFor(format)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(tools, "", "  ")
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tool names and their aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			byTool := map[string][]string{}
			for alias, name := range dkod.Aliases() {
				byTool[name] = append(byTool[name], alias)
			}
			out := cmd.OutOrStdout()
			for _, t := range dkod.Tools() {
				sort.Strings(byTool[t.Name])
				fmt.Fprintf(out, "%-20s %v\n", t.Name, byTool[t.Name])
			}
			return nil
		},
	}
}
