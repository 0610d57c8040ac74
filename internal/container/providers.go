package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/haldanelabs/dlcore/internal/actor"
	"github.com/haldanelabs/dlcore/internal/config"
	"github.com/haldanelabs/dlcore/internal/domain/backend"
	domainevents "github.com/haldanelabs/dlcore/internal/domain/events"
	"github.com/haldanelabs/dlcore/internal/domain/task"
	"github.com/haldanelabs/dlcore/internal/infrastructure/backend/torrentclient"
	"github.com/haldanelabs/dlcore/internal/infrastructure/events/kafka"
	"github.com/haldanelabs/dlcore/internal/infrastructure/events/nats"
	"github.com/haldanelabs/dlcore/internal/retryproc"
	"github.com/haldanelabs/dlcore/internal/syncer"
)

// ProvideTorrentBackend starts the reference anacrolix/torrent backend
// under the name "torrent", tuned from the TORRENT_ prefix.
func ProvideTorrentBackend(cfg *config.Config, logger *zap.Logger) (*torrentclient.Backend, func(), error) {
	bcfg := cfg.LoadBackendConfig("TORRENT_")
	bcfg.Priority = 100

	b, err := torrentclient.New("torrent", bcfg.DownloadDir, toBackendConfig(bcfg), logger)
	if err != nil {
		return nil, nil, err
	}
	return b, func() { _ = b.Close() }, nil
}

func toBackendConfig(b config.BackendConfig) backend.Config {
	return backend.Config{
		Priority:               uint8(b.Priority),
		MaxRetryCount:          b.MaxRetryCount,
		RetryMinInterval:       b.RetryMinInterval,
		RetryMaxInterval:       b.RetryMaxInterval,
		DownloadTimeout:        b.DownloadTimeout,
		DeleteTaskOnCompletion: b.DeleteTaskOnCompletion,
		DownloadDir:            b.DownloadDir,
	}
}

// ProvideRegistry builds the backend registry and registers
// every backend the deployment ships. Real deployments register whatever
// downloader clients they run; this core ships the torrentclient reference
// backend only.
func ProvideRegistry(torrentBackend *torrentclient.Backend) *backend.Registry {
	r := backend.NewRegistry()
	r.Register(torrentBackend)
	return r
}

// ProvideEventPublisher wires the core's domain event transport per
// Server.EventBus ("nats", the default, or "kafka"). Both nats.Publisher
// and kafka.Publisher already implement domainevents.EventPublisher
// directly, so this provider just picks one.
func ProvideEventPublisher(cfg *config.Config, logger *zap.Logger) (domainevents.EventPublisher, func(), error) {
	switch cfg.Server.EventBus {
	case "kafka":
		p, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, nil, fmt.Errorf("building kafka publisher: %w", err)
		}
		return p, func() { _ = p.Close() }, nil
	case "nats", "":
		client, cleanup, err := nats.NewClient(cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("building nats client: %w", err)
		}
		return nats.NewPublisher(client, logger), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown EVENT_BUS %q", cfg.Server.EventBus)
	}
}

// ProvideActor builds the Worker Actor, queue-sized from CoreConfig.
func ProvideActor(cfg *config.Config, store task.Store, registry *backend.Registry, publisher domainevents.EventPublisher, logger *zap.Logger) *actor.Actor {
	return actor.New(store, registry, publisher, logger, cfg.Core.QueueSize)
}

// ProvideSyncer builds the Status Syncer, tuned from CoreConfig.
func ProvideSyncer(cfg *config.Config, store task.Store, registry *backend.Registry, a *actor.Actor, logger *zap.Logger) *syncer.Syncer {
	return syncer.New(store, registry, a, logger, cfg.Core.SyncInterval, cfg.Core.VanishedGraceMultiplier)
}

// ProvideRetryProcessor builds the Retry Processor, tuned from CoreConfig.
func ProvideRetryProcessor(cfg *config.Config, store task.Store, a *actor.Actor, logger *zap.Logger) *retryproc.Processor {
	return retryproc.New(store, a, logger, cfg.Core.RetryProcessorInterval)
}

