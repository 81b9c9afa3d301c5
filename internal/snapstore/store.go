// Package snapstore defines the interface for persisting snapshot documents
// in object storage.
//
// Providers (MinIO, S3-compatible backends) implement the Store interface.
// Callers depend only on this package, never on a specific provider package.
//
// Usage:
//
//	cfg := snapstore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	key, err := store.Put(ctx, snap)
package snapstore

import (
	"context"
	"fmt"
	"time"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

// Store is the single interface all snapshot storage providers implement.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// Put persists the snapshot as a JSON document and returns its key.
	Put(ctx context.Context, snap *model.Snapshot) (string, error)

	// Get loads the snapshot stored at key.
	Get(ctx context.Context, key string) (*model.Snapshot, error)

	// List returns metadata for stored snapshots of the given engine,
	// newest first. An empty engine lists every snapshot.
	List(ctx context.Context, engine model.Engine) ([]Info, error)
}

// Info is the stored-snapshot listing entry.
type Info struct {
	Key     string       `json:"key"`
	Engine  model.Engine `json:"engine"`
	Size    int64        `json:"size"`
	TakenAt time.Time    `json:"taken_at"`
}

// Config holds all settings needed to connect to a storage backend.
type Config struct {
	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string

	// SecretKey is the secret access key.
	SecretKey string

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool

	// Bucket is the bucket snapshots are written to.
	Bucket string
}

// DefaultConfig returns a sensible local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    false,
		Bucket:    "snapshots",
	}
}

// Key builds the canonical object key for a snapshot:
// <engine>/<RFC3339 capture time>-<hash>.json. Keys sort chronologically
// within one engine prefix.
func Key(snap *model.Snapshot, hash uint64) string {
	return fmt.Sprintf("%s/%s-%016x.json",
		snap.Engine, snap.TakenAt.UTC().Format("20060102T150405Z"), hash)
}
