package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/cas"        //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/adapters/config"     //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/adapters/fs"         //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/adapters/livereload" //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/adapters/logger"     //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/adapters/transform"  //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/adapters/watcher"    //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			fs.ResolverNodeID,
			fs.WriterNodeID,
			transform.NodeID,
			cas.NodeID,
			logger.NodeID,
			watcher.NodeID,
			livereload.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}
	resolver, err := graft.Dep[ports.SourceResolver](ctx)
	if err != nil {
		return nil, err
	}
	writer, err := graft.Dep[ports.OutputWriter](ctx)
	if err != nil {
		return nil, err
	}
	factory, err := graft.Dep[ports.TransformFactory](ctx)
	if err != nil {
		return nil, err
	}
	opener, err := graft.Dep[ports.StoreOpener](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	newWatcher, err := graft.Dep[watcher.Factory](ctx)
	if err != nil {
		return nil, err
	}
	newServer, err := graft.Dep[livereload.Factory](ctx)
	if err != nil {
		return nil, err
	}
	return New(loader, resolver, writer, factory, opener, log, newWatcher, newServer), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	app, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	return NewComponents(app, log), nil
}
