package livereload

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/logger"
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the live reload server factory Graft node.
const NodeID graft.ID = "adapter.livereload"

// Factory creates a Server for a workspace's serve settings.
type Factory func(dir, addr string) *Server

func init() {
	graft.Register(graft.Node[Factory]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (Factory, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return func(dir, addr string) *Server { return New(dir, addr, log) }, nil
		},
	})
}
