//go:build wireinject
// +build wireinject

package container

import (
	"github.com/google/wire"

	"github.com/haldanelabs/dlcore/internal/actor"
	"github.com/haldanelabs/dlcore/internal/config"
	"github.com/haldanelabs/dlcore/internal/domain/task"
	gormrepo "github.com/haldanelabs/dlcore/internal/infrastructure/persistence/gorm"
	"github.com/haldanelabs/dlcore/internal/retryproc"
	"github.com/haldanelabs/dlcore/internal/syncer"
	"go.uber.org/zap"
)

// CoreContainer holds every long-lived dependency the core's entrypoint
// needs to start the Worker Actor, Status Syncer, and Retry Processor.
type CoreContainer struct {
	Config         *config.Config
	Logger         *zap.Logger
	Store          *gormrepo.TaskStore
	Actor          *actor.Actor
	Syncer         *syncer.Syncer
	RetryProcessor *retryproc.Processor
}

// InitializeCoreContainer builds a CoreContainer and a cleanup func that
// releases the database connection, event transport, and backends.
func InitializeCoreContainer(cfg *config.Config, logger *zap.Logger) (*CoreContainer, func(), error) {
	wire.Build(
		// Persistence
		gormrepo.NewDB,
		gormrepo.NewTaskStore,
		wire.Bind(new(task.Store), new(*gormrepo.TaskStore)),

		// Backends
		ProvideTorrentBackend,
		ProvideRegistry,

		// Events
		ProvideEventPublisher,

		// Worker Actor, Status Syncer, Retry Processor
		ProvideActor,
		ProvideSyncer,
		ProvideRetryProcessor,

		wire.Struct(new(CoreContainer), "*"),
	)

	return nil, nil, nil
}
