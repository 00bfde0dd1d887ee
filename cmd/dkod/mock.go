package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/dkod-io/agent-sdk-go/src/helpers"
	"github.com/dkod-io/agent-sdk-go/src/mockserver"
)

func newMockServerCmd(a *app) *cobra.Command {
	var (
		listen string
		token  string
		files  []string
	)
	cmd := &cobra.Command{
		Use:    "mock-server",
		Short:  "Serve the in-memory fake AgentService on a TCP port",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := []mockserver.Option{mockserver.WithToken(token), mockserver.WithLogger(a.logger)}
			for path, content := range helpers.ParseFileFlags(files) {
				opts = append(opts, mockserver.WithFile(path, content))
			}
			srv := mockserver.New(opts...)

			lis, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", listen, err)
			}
			go func() {
				<-cmd.Context().Done()
				srv.Stop()
			}()
			a.logger.Info("mock server listening", "addr", lis.Addr().String(), "token", token)
			return srv.Serve(lis)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:50051", "address to listen on")
	cmd.Flags().StringVar(&token, "accept-token", mockserver.ValidToken, "accepted auth token")
	cmd.Flags().StringArrayVar(&files, "file", nil, "extra file as path=content, repeatable")
	return cmd
}
