// Package simplemedia provides the media ingestion pipeline and the cache
// invalidation plumbing used by the corporate site.
//
// The Service validates uploaded images and videos, generates a fixed set of
// derivative assets, writes them through a pluggable BlobStore and persists one
// MediaAsset per upload. Deletion recomputes every derivable path from the
// asset's primary path, so no side table of derivatives is ever stored.
//
// Derivative naming
//
// All derivative paths are pure functions of the primary path (see the
// derivative subpackage). Generation and cleanup share those functions, which
// keeps the set of written files and the set of deleted files in lockstep.
//
// Implementations of repositories (memory, Postgres), blob stores (memory,
// filesystem, S3, MinIO, GCS, fallback adapter), cache backends (memory, Redis)
// and the invalidation engine live in subpackages.
package simplemedia
