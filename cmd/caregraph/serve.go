package main

import (
	"context"

	"github.com/spf13/cobra"

	"caregraph/internal/config"
	"caregraph/internal/mcp"
	"caregraph/internal/risk"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadProjectConfig(configFile)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	model := risk.NewRuleBasedModel(cfg.RuleWeights())
	server := mcp.NewServer(db, model, version)
	return server.Run(ctx, &sdk.StdioTransport{})
}
