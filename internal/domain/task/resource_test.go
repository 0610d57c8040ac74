package task

import (
	"encoding/base32"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/haldanelabs/dlcore/pkg/errors"
)

func TestNormalizeResource_Magnet_Hex(t *testing.T) {
	r := MagnetLink("magnet:?xt=urn:btih:0123456789ABCDEF0123456789ABCDEF01234567&dn=x")
	n, err := NormalizeResource(r)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", n.InfoHash)
	assert.Equal(t, ResourceMagnet, n.ResourceType)
}

func TestNormalizeResource_Magnet_Base32(t *testing.T) {
	// base32(20 raw bytes) -> 32 chars; round-trip through canonicalizeBtih.
	raw := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, 0x01, 0x23, 0x45, 0x67}
	b32 := base32.StdEncoding.EncodeToString(raw)
	n, err := NormalizeResource(MagnetLink("magnet:?xt=urn:btih:" + b32))
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", n.InfoHash)
}

func TestNormalizeResource_Magnet_MissingPrefix(t *testing.T) {
	_, err := NormalizeResource(MagnetLink("foo:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567"))
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.KindMagnetFormat))
}

func TestNormalizeResource_Magnet_MissingBtih(t *testing.T) {
	_, err := NormalizeResource(MagnetLink("magnet:?dn=x"))
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.KindMagnetFormat))
}

func TestNormalizeResource_Magnet_Empty(t *testing.T) {
	_, err := NormalizeResource(MagnetLink("  "))
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.KindEmptyMagnet))
}

func TestNormalizeResource_InfoHash_Valid(t *testing.T) {
	n, err := NormalizeResource(InfoHashResource("  0123456789ABCDEF0123456789ABCDEF01234567  "))
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", n.InfoHash)
	assert.Equal(t, ResourceInfoHash, n.ResourceType)
}

func TestNormalizeResource_InfoHash_WrongLength(t *testing.T) {
	_, err := NormalizeResource(InfoHashResource("abc123"))
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.KindInfoHashFormat))
}

func TestNormalizeResource_InfoHash_NonHex(t *testing.T) {
	_, err := NormalizeResource(InfoHashResource(strings.Repeat("g", 40)))
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.KindInfoHashFormat))
}

func TestNormalizeResource_TorrentURL_Valid(t *testing.T) {
	n, err := NormalizeResource(TorrentURL("https://example.com/file.torrent"))
	require.NoError(t, err)
	assert.Equal(t, ResourceTorrentURL, n.ResourceType)
	assert.Equal(t, "https://example.com/file.torrent", n.TorrentURL)
}

func TestNormalizeResource_TorrentURL_Relative(t *testing.T) {
	_, err := NormalizeResource(TorrentURL("/file.torrent"))
	require.Error(t, err)
}

func TestNormalizeResource_TorrentURL_Empty(t *testing.T) {
	_, err := NormalizeResource(TorrentURL(""))
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.KindEmptyTorrentURL))
}

func TestNormalizeResource_TorrentBytes(t *testing.T) {
	n, err := NormalizeResource(TorrentBytes([]byte("d8:announce...e")))
	require.NoError(t, err)
	assert.Len(t, n.InfoHash, 40)
	assert.Equal(t, ResourceTorrent, n.ResourceType)

	// Deterministic: same bytes -> same info-hash.
	n2, err := NormalizeResource(TorrentBytes([]byte("d8:announce...e")))
	require.NoError(t, err)
	assert.Equal(t, n.InfoHash, n2.InfoHash)
}

func TestNormalizeResource_TorrentBytes_Empty(t *testing.T) {
	_, err := NormalizeResource(TorrentBytes(nil))
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.KindEmptyTorrent))
}
