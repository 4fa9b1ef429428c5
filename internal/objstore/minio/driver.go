// Package minio provides a MinIO-SDK implementation of objstore.Store.
//
// It is interchangeable with the built-in SigV4 client; pick it when a
// deployment already standardizes on the MinIO SDK or needs its
// transparent multipart handling for large uploads.
//
// Usage:
//
//	cfg := objstore.EndpointConfig{Provider: objstore.ProviderMinIO, Endpoint: "localhost:9000", Bucket: "media", PathStyle: true}
//	store, err := minio.New(cfg, creds, log)
//	if err != nil { ... }
//	defer store.Close()
package minio

import (
	"bytes"
	"context"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kavinraju/cirrus/internal/creds"
	"github.com/kavinraju/cirrus/internal/errs"
	"github.com/kavinraju/cirrus/internal/logger"
	"github.com/kavinraju/cirrus/internal/objstore"
	"github.com/kavinraju/cirrus/internal/objstore/sigv4"
)

// Driver is a MinIO-SDK implementation of objstore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	cfg    objstore.EndpointConfig
	client *miniogo.Client
	log    *logger.Logger
}

// New builds a Driver for the given config. No I/O happens here; use
// TestConnection to validate reachability.
func New(cfg objstore.EndpointConfig, c creds.Credentials, log *logger.Logger) (*Driver, error) {
	cfg = cfg.Normalize()
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errs.New(errs.ErrKindConfiguration, "endpoint and bucket are required")
	}
	if !c.Valid() {
		return nil, errs.New(errs.ErrKindConfiguration, "credentials are incomplete")
	}
	if log == nil {
		log = logger.Nop()
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:        credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.SigningRegion(),
		BucketLookup: bucketLookup(cfg.PathStyle),
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to create minio client", err)
	}

	return &Driver{
		cfg:    cfg,
		client: client,
		log:    log.With().Str("driver", "minio").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

func bucketLookup(pathStyle bool) miniogo.BucketLookupType {
	if pathStyle {
		return miniogo.BucketLookupPath
	}
	return miniogo.BucketLookupDNS
}

// --- objstore.Store implementation ---

func (d *Driver) ListObjects(ctx context.Context, prefix string, maxKeys int) ([]objstore.ObjectInfo, error) {
	opts := miniogo.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   maxKeys,
	}

	objects := []objstore.ObjectInfo{}
	for obj := range d.client.ListObjects(ctx, d.cfg.Bucket, opts) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}
		// Folder marker keys carry no content.
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}

		contentType := obj.ContentType
		if contentType == "" {
			contentType = objstore.ContentTypeForKey(obj.Key)
		}
		objects = append(objects, objstore.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ContentType:  contentType,
			URL:          d.ObjectURL(obj.Key),
		})

		if maxKeys > 0 && len(objects) >= maxKeys {
			break
		}
	}
	return objects, nil
}

func (d *Driver) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := d.client.PutObject(ctx, d.cfg.Bucket, key,
		bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return mapError(err, "failed to upload object")
	}
	return nil
}

func (d *Driver) Delete(ctx context.Context, key string) error {
	if err := d.client.RemoveObject(ctx, d.cfg.Bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

// TestConnection verifies the endpoint accepts a signed listing request.
func (d *Driver) TestConnection(ctx context.Context) error {
	opts := miniogo.ListObjectsOptions{Recursive: true, MaxKeys: 1}
	for obj := range d.client.ListObjects(ctx, d.cfg.Bucket, opts) {
		if obj.Err != nil {
			return mapError(obj.Err, "connection test failed")
		}
		break
	}
	return nil
}

// ObjectURL mirrors the SigV4 client: CDN base when configured,
// otherwise the addressing-mode URL. Pure construction, no I/O.
func (d *Driver) ObjectURL(key string) string {
	if d.cfg.CDNURL != "" {
		return strings.TrimRight(d.cfg.CDNURL, "/") + "/" + sigv4.EncodePath(key)
	}

	scheme := "http"
	if d.cfg.UseSSL {
		scheme = "https"
	}
	if d.cfg.PathStyle {
		return scheme + "://" + d.cfg.Endpoint + "/" + d.cfg.Bucket + "/" + sigv4.EncodePath(key)
	}
	return scheme + "://" + d.cfg.Bucket + "." + d.cfg.Endpoint + "/" + sigv4.EncodePath(key)
}

// Close is a no-op; the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}
