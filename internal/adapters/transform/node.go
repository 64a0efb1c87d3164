package transform

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the transform factory Graft node.
const NodeID graft.ID = "adapter.transform_factory"

func init() {
	graft.Register(graft.Node[ports.TransformFactory]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.TransformFactory, error) {
			return NewFactory(), nil
		},
	})
}
