package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	dkod "github.com/dkod-io/agent-sdk-go"
	"github.com/dkod-io/agent-sdk-go/src/config"
)

// app carries state shared by every subcommand.
type app struct {
	cfgPath  string
	server   string
	token    string
	agentID  string
	codebase string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger

	// dialOpts are appended to every client; tests use them to reach an
	// in-memory server.
	dialOpts []grpc.DialOption
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "dkod",
		Short:         "Work on a codebase through a dkod agent session",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", config.DefaultPath, "path to a YAML config file")
	pf.StringVar(&a.server, "server", "", "dkod server address (overrides "+config.EnvServer+")")
	pf.StringVar(&a.token, "token", "", "auth token (overrides "+config.EnvToken+")")
	pf.StringVar(&a.agentID, "agent-id", "", "agent id sent on connect")
	pf.StringVar(&a.codebase, "codebase", "", "codebase to connect to, e.g. org/repo")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newAgentCmd(a),
		newMCPCmd(a),
		newToolsCmd(),
		newStatusCmd(a),
		newContextCmd(a),
		newReadCmd(a),
		newVerifyCmd(a),
		newMergeCmd(a),
		newMockServerCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	override(&cfg.Server, a.server)
	override(&cfg.Token, a.token)
	override(&cfg.AgentID, a.agentID)
	override(&cfg.Codebase, a.codebase)
	override(&cfg.Log.Level, a.logLevel)

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("invalid log level %q", cfg.Log.Level)
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)
	return nil
}

func override(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}

// connect opens a session on the configured codebase.
func (a *app) connect(ctx context.Context, intent string) (*dkod.Session, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	if a.cfg.Codebase == "" {
		return nil, errors.New("no codebase: pass --codebase or set " + config.EnvCodebase)
	}
	opts := []dkod.ClientOption{dkod.WithLogger(a.logger), dkod.WithDialOptions(a.dialOpts...)}
	if a.cfg.AgentID != "" {
		opts = append(opts, dkod.WithAgentID(a.cfg.AgentID))
	}
	client := dkod.NewClient(a.cfg.Server, a.cfg.Token, opts...)
	session, err := client.Connect(ctx, a.cfg.Codebase, intent)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", a.cfg.Server, err)
	}
	a.logger.Info("connected", "session", session.ID(), "codebase", a.cfg.Codebase, "version", session.CodebaseVersion())
	return session, nil
}

// withSession connects, runs fn and closes the session.
func (a *app) withSession(cmd *cobra.Command, intent string, fn func(*dkod.Session) error) error {
	session, err := a.connect(cmd.Context(), intent)
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session)
}
