package cache

import (
	"strconv"
	"strings"

	catalog "github.com/eugener/holocron/internal"
)

const metadataSuffix = "_metadata"

// ListKey derives the cache key of a list call. Unspecified page and limit
// take the remote defaults, so ListParams{} and {Page: 1, Limit: 10} share a key.
func ListKey(kind catalog.ResourceKind, params catalog.ListParams) string {
	p := params.Normalized()
	return string(kind) + "_page" + strconv.Itoa(p.Page) + "_limit" + strconv.Itoa(p.Limit)
}

// idEscaper percent-encodes the characters that would let an id reach into
// another key's shape. Escaping "%" too keeps the mapping injective.
var idEscaper = strings.NewReplacer("%", "%25", "_", "%5F")

// DetailKey derives the cache key of a detail call. The id never contains
// "_" after escaping, so a detail key cannot equal a list key or end in the
// metadata suffix. Plain ids such as "1" are unchanged.
func DetailKey(kind catalog.ResourceKind, id string) string {
	return string(kind) + "_" + idEscaper.Replace(id)
}

// MetadataKey returns the key under which the write timestamp of key is kept.
func MetadataKey(key string) string {
	return key + metadataSuffix
}

// IsMetadataKey reports whether key names a metadata record. Every payload
// key has a "_" after its kind, so "people_metadata" (the detail key of id
// "metadata") is a payload, not the record of "people".
func IsMetadataKey(key string) bool {
	payload, ok := strings.CutSuffix(key, metadataSuffix)
	return ok && strings.Contains(payload, "_")
}

// PayloadKey strips the metadata suffix from a metadata key.
func PayloadKey(metaKey string) string {
	return strings.TrimSuffix(metaKey, metadataSuffix)
}
