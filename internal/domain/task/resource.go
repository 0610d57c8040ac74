package task

import (
	"crypto/sha1"
	"encoding/base32"
	"encoding/hex"
	"net/url"
	"strings"

	coreerrors "github.com/haldanelabs/dlcore/pkg/errors"
)

// Resource is the tagged input a caller submits to Create. Exactly one
// field is meaningful, selected by which constructor built the value.
type Resource struct {
	kind          resourceKind
	magnetLink    string
	torrentBytes  []byte
	torrentURL    string
	infoHashInput string
}

type resourceKind int

const (
	kindMagnet resourceKind = iota
	kindTorrentBytes
	kindTorrentURL
	kindInfoHash
)

func MagnetLink(s string) Resource { return Resource{kind: kindMagnet, magnetLink: s} }
func TorrentBytes(b []byte) Resource { return Resource{kind: kindTorrentBytes, torrentBytes: b} }
func TorrentURL(s string) Resource { return Resource{kind: kindTorrentURL, torrentURL: s} }
func InfoHashResource(s string) Resource { return Resource{kind: kindInfoHash, infoHashInput: s} }

// NormalizedResource is the canonical form produced by NormalizeResource.
type NormalizedResource struct {
	InfoHash     string
	ResourceType ResourceType
	Magnet       string
	TorrentURL   string
	TorrentBytes []byte
}

const magnetPrefix = "magnet:?"
const btihParam = "xt=urn:btih:"

// NormalizeResource converts any submitted resource into its canonical
// form. It never performs I/O.
func NormalizeResource(r Resource) (NormalizedResource, error) {
	switch r.kind {
	case kindMagnet:
		return normalizeMagnet(r.magnetLink)
	case kindTorrentBytes:
		return normalizeTorrentBytes(r.torrentBytes)
	case kindTorrentURL:
		return normalizeTorrentURL(r.torrentURL)
	case kindInfoHash:
		return normalizeInfoHash(r.infoHashInput)
	default:
		return NormalizedResource{}, coreerrors.New(coreerrors.KindUnsupportedResourceType, "unknown resource kind")
	}
}

func normalizeMagnet(raw string) (NormalizedResource, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return NormalizedResource{}, coreerrors.New(coreerrors.KindEmptyMagnet, "magnet link is empty")
	}
	if !strings.HasPrefix(strings.ToLower(trimmed), magnetPrefix) {
		return NormalizedResource{}, coreerrors.New(coreerrors.KindMagnetFormat, "magnet link must start with magnet:?")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return NormalizedResource{}, coreerrors.Wrap(coreerrors.KindMagnetFormat, "magnet link is not a valid URI", err)
	}

	var btih string
	for _, xt := range u.Query()["xt"] {
		lower := strings.ToLower(xt)
		if strings.HasPrefix(lower, "urn:btih:") {
			btih = xt[len("urn:btih:"):]
			break
		}
	}
	if btih == "" {
		return NormalizedResource{}, coreerrors.New(coreerrors.KindMagnetFormat, "magnet link missing xt=urn:btih: parameter")
	}

	infoHash, err := canonicalizeBtih(btih)
	if err != nil {
		return NormalizedResource{}, err
	}

	return NormalizedResource{
		InfoHash:     infoHash,
		ResourceType: ResourceMagnet,
		Magnet:       trimmed,
	}, nil
}

// canonicalizeBtih lowercases a 40-hex or 32-base32 btih token and, for
// base32, decodes it to the canonical 40-hex form.
func canonicalizeBtih(token string) (string, error) {
	switch len(token) {
	case 40:
		lower := strings.ToLower(token)
		if !isHex(lower) {
			return "", coreerrors.New(coreerrors.KindMagnetFormat, "btih hex token is malformed")
		}
		return lower, nil
	case 32:
		decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(token))
		if err != nil || len(decoded) != 20 {
			return "", coreerrors.New(coreerrors.KindMagnetFormat, "btih base32 token is malformed")
		}
		return hex.EncodeToString(decoded), nil
	default:
		return "", coreerrors.New(coreerrors.KindMagnetFormat, "btih token must be 40 hex or 32 base32 characters")
	}
}

func normalizeInfoHash(raw string) (NormalizedResource, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return NormalizedResource{}, coreerrors.New(coreerrors.KindInfoHashFormat, "info-hash is empty")
	}
	if len(trimmed) != 40 || !isHex(trimmed) {
		return NormalizedResource{}, coreerrors.New(coreerrors.KindInfoHashFormat, "info-hash must be exactly 40 hex characters")
	}
	return NormalizedResource{
		InfoHash:     trimmed,
		ResourceType: ResourceInfoHash,
	}, nil
}

func normalizeTorrentURL(raw string) (NormalizedResource, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return NormalizedResource{}, coreerrors.New(coreerrors.KindEmptyTorrentURL, "torrent URL is empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil || !u.IsAbs() {
		return NormalizedResource{}, coreerrors.New(coreerrors.KindUnsupportedResourceType, "torrent URL must be a syntactically valid absolute URL")
	}
	return NormalizedResource{
		ResourceType: ResourceTorrentURL,
		TorrentURL:   trimmed,
	}, nil
}

// normalizeTorrentBytes keys a raw .torrent submission by the SHA-1 digest
// of its bytes rather than the BitTorrent info-hash: computing the true
// info-hash requires bencode-decoding the "info" dictionary, which is
// explicitly out of scope for the core. The digest
// is stable and unique per submission; a backend that later reports the
// real info-hash does so through its own metadata, not the task's primary
// key.
func normalizeTorrentBytes(b []byte) (NormalizedResource, error) {
	if len(b) == 0 {
		return NormalizedResource{}, coreerrors.New(coreerrors.KindEmptyTorrent, "torrent bytes are empty")
	}
	sum := sha1.Sum(b)
	return NormalizedResource{
		InfoHash:     hex.EncodeToString(sum[:]),
		ResourceType: ResourceTorrent,
		TorrentBytes: b,
	}, nil
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
