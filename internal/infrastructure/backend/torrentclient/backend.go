// Package torrentclient is a reference Backend built on
// anacrolix/torrent. It is deliberately the only Backend shipped with the
// core: real deployments register whatever downloader client they run
// against, but the core itself never depends on one concretely.
package torrentclient

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"go.uber.org/zap"

	"github.com/haldanelabs/dlcore/internal/domain/backend"
	"github.com/haldanelabs/dlcore/internal/domain/task"
	coreerrors "github.com/haldanelabs/dlcore/pkg/errors"
)

// Backend drives a local anacrolix/torrent client as a backend.Backend.
type Backend struct {
	name   string
	client *torrent.Client
	cfg    backend.Config
	logger *zap.Logger

	mu       sync.Mutex
	torrents map[string]*torrent.Torrent // keyed by info-hash, as normalized by task.NormalizeResource
}

// New starts an anacrolix/torrent client rooted at dataDir and wraps it as
// a named Backend.
func New(name string, dataDir string, cfg backend.Config, logger *zap.Logger) (*Backend, error) {
	clientCfg := torrent.NewDefaultClientConfig()
	clientCfg.DataDir = dataDir
	clientCfg.Seed = false

	clientCfg.DHTConfig.StartingNodes = []string{
		"router.utorrent.com:6881",
		"router.bittorrent.com:6881",
		"dht.transmissionbt.com:6881",
	}

	client, err := torrent.NewClient(clientCfg)
	if err != nil {
		return nil, coreerrors.WrapBackend(name, "failed to start torrent client", err)
	}

	return &Backend{
		name:     name,
		client:   client,
		cfg:      cfg,
		logger:   logger.Named("torrentclient").With(zap.String("backend", name)),
		torrents: make(map[string]*torrent.Torrent),
	}, nil
}

func (b *Backend) Name() string           { return b.name }
func (b *Backend) Config() backend.Config { return b.cfg }

// AddTask hands resource to the anacrolix client. The returned task
// context is the backend's own info-hash string, which may differ from
// infoHash when resource was submitted as raw .torrent bytes (the
// normaliser keys those by content hash, not BitTorrent info-hash).
func (b *Backend) AddTask(ctx context.Context, infoHash string, resource task.NormalizedResource, dir string) (string, error) {
	t, err := b.addTorrent(resource)
	if err != nil {
		return "", coreerrors.WrapBackend(b.name, "failed to add torrent", err)
	}

	select {
	case <-t.GotInfo():
	case <-ctx.Done():
		t.Drop()
		return "", ctx.Err()
	}

	t.DownloadAll()

	b.mu.Lock()
	b.torrents[infoHash] = t
	b.mu.Unlock()

	return t.InfoHash().String(), nil
}

func (b *Backend) addTorrent(resource task.NormalizedResource) (*torrent.Torrent, error) {
	switch resource.ResourceType {
	case task.ResourceMagnet:
		return b.client.AddMagnet(resource.Magnet)
	case task.ResourceTorrent:
		mi, err := metainfo.Load(bytes.NewReader(resource.TorrentBytes))
		if err != nil {
			return nil, fmt.Errorf("decoding torrent bytes: %w", err)
		}
		return b.client.AddTorrent(mi)
	default:
		return nil, fmt.Errorf("torrentclient backend cannot add resource type %s directly", resource.ResourceType)
	}
}

// RemoveTask drops the torrent, stopping all network activity for it.
func (b *Backend) RemoveTask(ctx context.Context, infoHash, taskContext string) error {
	b.mu.Lock()
	t, ok := b.torrents[infoHash]
	delete(b.torrents, infoHash)
	b.mu.Unlock()

	if !ok {
		return nil
	}
	t.Drop()
	return nil
}

// PauseTask stops new data download without dropping the torrent.
func (b *Backend) PauseTask(ctx context.Context, infoHash, taskContext string) error {
	t, err := b.lookup(infoHash)
	if err != nil {
		return err
	}
	t.DisallowDataDownload()
	return nil
}

// ResumeTask re-allows data download for a paused torrent.
func (b *Backend) ResumeTask(ctx context.Context, infoHash, taskContext string) error {
	t, err := b.lookup(infoHash)
	if err != nil {
		return err
	}
	t.AllowDataDownload()
	return nil
}

// ListTasks reports this backend's live view of every torrent it is
// tracking (consumed by the Status Syncer).
func (b *Backend) ListTasks(ctx context.Context) (map[string]backend.TaskState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]backend.TaskState, len(b.torrents))
	for infoHash, t := range b.torrents {
		select {
		case <-t.GotInfo():
		default:
			out[infoHash] = backend.TaskState{Kind: backend.TaskStateDownloading}
			continue
		}

		if t.Complete.Bool() {
			out[infoHash] = backend.TaskState{
				Kind:          backend.TaskStateCompleted,
				ArtifactPaths: filePaths(t),
			}
			continue
		}

		stats := t.Stats()
		length := t.Length()
		var progress float64
		if length > 0 {
			progress = float64(stats.BytesReadData.Int64()) / float64(length)
		}
		out[infoHash] = backend.TaskState{
			Kind:     backend.TaskStateDownloading,
			Progress: progress,
		}
	}
	return out, nil
}

// Close shuts down the underlying torrent client.
func (b *Backend) Close() error {
	b.client.Close()
	return nil
}

func (b *Backend) lookup(infoHash string) (*torrent.Torrent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.torrents[infoHash]
	if !ok {
		return nil, coreerrors.New(coreerrors.KindTorrentNotFound, "backend has no torrent for info-hash "+infoHash)
	}
	return t, nil
}

func filePaths(t *torrent.Torrent) []string {
	files := t.Files()
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path()
	}
	return paths
}
