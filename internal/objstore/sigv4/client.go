package sigv4

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kavinraju/cirrus/internal/creds"
	"github.com/kavinraju/cirrus/internal/errs"
	"github.com/kavinraju/cirrus/internal/logger"
	"github.com/kavinraju/cirrus/internal/objstore"
)

// responseBodyLimit caps how much of an error response body is kept.
// Listing bodies are not limited.
const responseBodyLimit = 64 << 10

// Client is the hand-rolled SigV4 implementation of objstore.Store.
// It is bound to one endpoint + bucket + credential pair and is safe
// for concurrent use by multiple goroutines.
type Client struct {
	cfg   objstore.EndpointConfig
	creds creds.Credentials
	httpc *http.Client
	log   *logger.Logger

	// now is the clock used for signing. Overridden in tests.
	now func() time.Time
}

// New builds a Client for the given (already catalog-owned) config.
// The endpoint is normalized here as well, so callers cannot hand the
// client a denormalized host.
func New(cfg objstore.EndpointConfig, c creds.Credentials, log *logger.Logger) (*Client, error) {
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

	return &Client{
		cfg:   cfg,
		creds: c,
		httpc: &http.Client{Timeout: 2 * time.Minute},
		log:   log.With().Str("driver", "sigv4").Str("bucket", cfg.Bucket).Logger(),
		now:   time.Now,
	}, nil
}

// --- objstore.Store implementation ---

// ListObjects issues a list-type=2 request and parses the result.
// Malformed listing XML degrades to an empty slice: transient provider
// quirks must not take down an otherwise healthy session.
func (c *Client) ListObjects(ctx context.Context, prefix string, maxKeys int) ([]objstore.ObjectInfo, error) {
	query := url.Values{}
	query.Set("list-type", "2")
	query.Set("max-keys", strconv.Itoa(maxKeys))
	if prefix != "" {
		query.Set("prefix", prefix)
	}

	body, err := c.do(ctx, http.MethodGet, c.bucketURI(), query, nil, "")
	if err != nil {
		return nil, err
	}

	entries, err := parseListing(body, c.now().UTC())
	if err != nil {
		c.log.ErrorWith("listing response unparseable, degrading to empty listing", err, map[string]interface{}{
			"prefix": prefix,
		})
		return []objstore.ObjectInfo{}, nil
	}

	records := make([]objstore.ObjectInfo, 0, len(entries))
	for _, e := range entries {
		// Folder marker objects are namespace noise, not files.
		if strings.HasSuffix(e.key, "/") {
			continue
		}
		records = append(records, objstore.ObjectInfo{
			Key:          e.key,
			Size:         e.size,
			LastModified: e.lastModified,
			ContentType:  objstore.ContentTypeForKey(e.key),
			URL:          c.ObjectURL(e.key),
		})
	}
	return records, nil
}

// Upload PUTs data to key with the given content type.
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.do(ctx, http.MethodPut, c.objectURI(key), nil, data, contentType)
	return err
}

// Delete removes the object at key.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.do(ctx, http.MethodDelete, c.objectURI(key), nil, nil, "")
	return err
}

// TestConnection performs a minimal signed listing. Success implies the
// endpoint is reachable and the credentials are accepted.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.ListObjects(ctx, "", 1)
	return err
}

// ObjectURL returns the direct-access URL for key. When the config
// carries a CDN override, the URL is built on top of it instead of the
// storage endpoint.
func (c *Client) ObjectURL(key string) string {
	if c.cfg.CDNURL != "" {
		return strings.TrimRight(c.cfg.CDNURL, "/") + "/" + EncodePath(key)
	}
	return c.scheme() + "://" + c.host() + c.objectURI(key)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpc.CloseIdleConnections()
	return nil
}

// --- request plumbing ---

// do signs and executes one request, returning the response body on
// 2xx and a transport/protocol error otherwise.
func (c *Client) do(ctx context.Context, method, uri string, query url.Values, body []byte, contentType string) ([]byte, error) {
	headers := map[string]string{"Host": c.host()}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}

	signed := Sign(method, uri, query, headers, body, c.now(), c.creds, c.cfg.SigningRegion())

	u := &url.URL{
		Scheme:   c.scheme(),
		Host:     c.host(),
		RawQuery: CanonicalQuery(query),
	}
	u.RawPath = uri
	unescaped, err := url.PathUnescape(uri)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindTransport, "invalid request path", err)
	}
	u.Path = unescaped

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindTransport, "failed to build request", err)
	}
	for k, v := range signed {
		if strings.EqualFold(k, "Host") {
			continue // carried by req.Host, not the header map
		}
		req.Header.Set(k, v)
	}
	if body != nil {
		req.ContentLength = int64(len(body))
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, errs.Wrap(errs.ErrKindCanceled, "request canceled", err)
		}
		return nil, errs.Wrap(errs.ErrKindTransport, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
		return nil, errs.Protocol(method+" "+uri+" rejected", resp.StatusCode, string(raw))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindTransport, "failed to read response body", err)
	}
	return raw, nil
}

func (c *Client) scheme() string {
	if c.cfg.UseSSL {
		return "https"
	}
	return "http"
}

// host returns the Host header value for the configured addressing
// mode: "bucket.endpoint" for virtual-hosted, the bare endpoint for
// path-style.
func (c *Client) host() string {
	if c.cfg.PathStyle {
		return c.cfg.Endpoint
	}
	return c.cfg.Bucket + "." + c.cfg.Endpoint
}

// bucketURI is the request path for bucket-level operations (listing).
func (c *Client) bucketURI() string {
	if c.cfg.PathStyle {
		return "/" + percentEncode(c.cfg.Bucket)
	}
	return "/"
}

// objectURI is the request path for object-level operations.
func (c *Client) objectURI(key string) string {
	if c.cfg.PathStyle {
		return "/" + percentEncode(c.cfg.Bucket) + "/" + EncodePath(key)
	}
	return "/" + EncodePath(key)
}
