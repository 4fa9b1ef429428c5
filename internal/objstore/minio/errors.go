package minio

import (
	"context"
	"errors"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/kavinraju/cirrus/internal/errs"
)

// mapError translates a MinIO SDK error into a *errs.Error, so callers
// see the same error taxonomy from this driver and the SigV4 client.
func mapError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindCanceled, msg, err)
	}

	// The SDK exposes a typed ErrorResponse for S3-protocol errors.
	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		}
		e := errs.Protocol(msg, resp.StatusCode, resp.Message)
		e.Cause = err
		return e
	}

	return errs.Wrap(errs.ErrKindTransport, msg, err)
}
