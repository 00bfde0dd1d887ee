package main

import (
	"github.com/spf13/cobra"

	dkod "github.com/dkod-io/agent-sdk-go"
	"github.com/dkod-io/agent-sdk-go/src/helpers"
	"github.com/dkod-io/agent-sdk-go/src/mcpserver"
)

func newMCPCmd(a *app) *cobra.Command {
	var intent string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the dkod tools to an MCP host over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, intent, func(session *dkod.Session) error {
				a.logger.Info("serving mcp", "tools", helpers.ToolNames(dkod.Tools()))
				return mcpserver.ServeStdio(session, mcpserver.WithLogger(a.logger))
			})
		},
	}
	cmd.Flags().StringVar(&intent, "intent", "MCP session", "intent sent on connect")
	return cmd
}
