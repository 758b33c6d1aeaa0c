package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"caregraph/internal/risk"
	"caregraph/internal/store"
)

type Server struct {
	db    store.Store
	model risk.Model
	mcp   *sdk.Server
}

func NewServer(db store.Store, model risk.Model, version string) *Server {
	s := &Server{
		db:    db,
		model: model,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "caregraph",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
