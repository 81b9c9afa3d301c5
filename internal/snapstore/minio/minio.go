// Package minio provides a MinIO implementation of snapstore.Store.
package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/canon"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/snapstore"
)

// Driver is a MinIO implementation of snapstore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	bucket string
}

// New connects to MinIO using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *snapstore.Config) (*Driver, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{client: client, bucket: cfg.Bucket}
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// --- snapstore.Store implementation ---

// Ping verifies the bucket exists and is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	ok, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !ok {
		return errs.Newf(errs.ErrKindInvalidInput, "bucket %q does not exist", d.bucket)
	}
	return nil
}

// Close is a no-op for MinIO; the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// Put canonicalizes, serializes, and uploads the snapshot. The object key
// embeds the capture time and the schema hash.
func (d *Driver) Put(ctx context.Context, snap *model.Snapshot) (string, error) {
	c := canon.Canonicalize(snap)
	doc, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "failed to encode snapshot", err)
	}

	key := snapstore.Key(c, canon.Hash(c))
	_, err = d.client.PutObject(ctx, d.bucket, key,
		bytes.NewReader(doc), int64(len(doc)),
		miniogo.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", mapError(err, "failed to store snapshot")
	}
	return key, nil
}

// Get loads and decodes the snapshot stored at key.
func (d *Driver) Get(ctx context.Context, key string) (*model.Snapshot, error) {
	obj, err := d.client.GetObject(ctx, d.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get snapshot")
	}
	defer obj.Close()

	doc, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(err, "failed to read snapshot")
	}
	var snap model.Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return nil, errs.Wrapf(errs.ErrKindInvalidInput, err, "object %s is not a snapshot document", key)
	}
	return &snap, nil
}

// List returns stored snapshots for the engine, newest first.
func (d *Driver) List(ctx context.Context, engine model.Engine) ([]snapstore.Info, error) {
	prefix := ""
	if engine != "" {
		prefix = string(engine) + "/"
	}

	var infos []snapstore.Info
	for obj := range d.client.ListObjects(ctx, d.bucket, miniogo.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list snapshots")
		}
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		infos = append(infos, snapstore.Info{
			Key:     obj.Key,
			Engine:  model.Engine(strings.SplitN(obj.Key, "/", 2)[0]),
			Size:    obj.Size,
			TakenAt: obj.LastModified,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key > infos[j].Key })
	return infos, nil
}

// mapError translates a MinIO SDK error into a *errs.Error.
// It mirrors the mapError pattern used in the connection drivers.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.ErrKindCancelled, msg, err)
	}

	resp := miniogo.ToErrorResponse(err)
	switch resp.StatusCode {
	case 401, 403:
		return errs.Wrap(errs.ErrKindConnectionFailed, msg+": access denied", err)
	case 404:
		return errs.Wrap(errs.ErrKindInvalidInput, msg+": not found", err)
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
