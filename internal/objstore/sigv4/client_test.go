package sigv4

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavinraju/cirrus/internal/creds"
	"github.com/kavinraju/cirrus/internal/errs"
	"github.com/kavinraju/cirrus/internal/logger"
	"github.com/kavinraju/cirrus/internal/objstore"
)

const listingFixture = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>media</Name>
  <KeyCount>4</KeyCount>
  <Contents>
    <Key>a.txt</Key>
    <Size>11</Size>
    <LastModified>2024-03-01T08:30:00.000Z</LastModified>
  </Contents>
  <Contents>
    <Key>docs/</Key>
    <Size>0</Size>
    <LastModified>2024-03-01T08:00:00Z</LastModified>
  </Contents>
  <Contents>
    <Key>docs/b.pdf</Key>
    <Size>2048</Size>
    <LastModified>2024-03-02T10:00:00Z</LastModified>
  </Contents>
  <Contents>
    <Key>docs/broken.bin</Key>
    <Size>not-a-number</Size>
    <LastModified>garbage</LastModified>
  </Contents>
</ListBucketResult>`

// newTestClient points a path-style client at the given test server.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	cfg := objstore.EndpointConfig{
		Provider:  objstore.ProviderMinIO,
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		Bucket:    "media",
		PathStyle: true,
	}
	c, err := New(cfg, creds.Credentials{AccessKey: "ak", SecretKey: "sk"}, logger.Nop())
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2024, 3, 12, 10, 15, 0, 0, time.UTC) }
	return c
}

func TestClient_ListObjects(t *testing.T) {
	var gotReq *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, listingFixture)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	records, err := c.ListObjects(context.Background(), "", 1000)
	require.NoError(t, err)

	// Request shape: path-style URI, list-type=2 query, signed headers.
	require.NotNil(t, gotReq)
	assert.Equal(t, http.MethodGet, gotReq.Method)
	assert.Equal(t, "/media", gotReq.URL.Path)
	assert.Equal(t, "2", gotReq.URL.Query().Get("list-type"))
	assert.Equal(t, "1000", gotReq.URL.Query().Get("max-keys"))
	assert.True(t, strings.HasPrefix(gotReq.Header.Get("Authorization"), "AWS4-HMAC-SHA256 Credential=ak/20240312/us-east-1/s3/aws4_request"))
	assert.Equal(t, "20240312T101500Z", gotReq.Header.Get("x-amz-date"))
	assert.Equal(t, EmptyPayloadHash, gotReq.Header.Get("x-amz-content-sha256"))

	// The folder marker "docs/" is dropped; damaged fields degrade.
	require.Len(t, records, 3)
	assert.Equal(t, "a.txt", records[0].Key)
	assert.Equal(t, int64(11), records[0].Size)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), records[0].LastModified)
	assert.Equal(t, "text/plain", records[0].ContentType)

	assert.Equal(t, "docs/b.pdf", records[1].Key)
	assert.Equal(t, "application/pdf", records[1].ContentType)
	assert.Equal(t, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), records[1].LastModified)

	assert.Equal(t, int64(0), records[2].Size)
	assert.Equal(t, time.Date(2024, 3, 12, 10, 15, 0, 0, time.UTC), records[2].LastModified)
	assert.Equal(t, "application/octet-stream", records[2].ContentType)
}

func TestClient_ListObjects_WithPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "docs/", r.URL.Query().Get("prefix"))
		io.WriteString(w, `<ListBucketResult></ListBucketResult>`)
	}))
	defer srv.Close()

	records, err := newTestClient(t, srv).ListObjects(context.Background(), "docs/", 100)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClient_ListObjects_MalformedXML(t *testing.T) {
	bodies := []string{"", "<not xml", "plain text", "<Wrong><Key>a</Key></Wrong"}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, body)
		}))

		records, err := newTestClient(t, srv).ListObjects(context.Background(), "", 10)
		srv.Close()

		require.NoError(t, err, "body %q", body)
		assert.Empty(t, records, "body %q", body)
	}
}

func TestClient_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/media/docs/report.txt", r.URL.Path)
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		assert.Equal(t, int64(11), r.ContentLength)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(body))
	}))
	defer srv.Close()

	err := newTestClient(t, srv).Upload(context.Background(), "docs/report.txt", []byte("hello world"), "text/plain")
	require.NoError(t, err)
}

func TestClient_Delete_EscapesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/media/my%20file.txt", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).Delete(context.Background(), "my file.txt")
	require.NoError(t, err)
}

func TestClient_ProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, "<Error><Code>AccessDenied</Code></Error>")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).ListObjects(context.Background(), "", 10)
	require.Error(t, err)
	assert.True(t, errs.IsProtocol(err))

	status, ok := errs.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, srv)
	srv.Close() // connection refused from here on

	err := c.Upload(context.Background(), "a.txt", []byte("x"), "text/plain")
	require.Error(t, err)
	assert.True(t, errs.IsTransport(err))
}

func TestClient_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, srv).ListObjects(ctx, "", 10)
	require.Error(t, err)
	assert.True(t, errs.IsCanceled(err))
}

func TestClient_TestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("max-keys"))
		io.WriteString(w, `<ListBucketResult></ListBucketResult>`)
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(t, srv).TestConnection(context.Background()))
}

func TestClient_ObjectURL(t *testing.T) {
	log := logger.Nop()
	pair := creds.Credentials{AccessKey: "ak", SecretKey: "sk"}

	tests := []struct {
		name string
		cfg  objstore.EndpointConfig
		key  string
		want string
	}{
		{
			name: "virtual-hosted addressing",
			cfg:  objstore.EndpointConfig{Endpoint: "storage.example.net", Bucket: "media", UseSSL: true},
			key:  "x.png",
			want: "https://media.storage.example.net/x.png",
		},
		{
			name: "path-style addressing",
			cfg:  objstore.EndpointConfig{Endpoint: "storage.example.net", Bucket: "media", PathStyle: true},
			key:  "x.png",
			want: "http://storage.example.net/media/x.png",
		},
		{
			name: "cdn override",
			cfg:  objstore.EndpointConfig{Endpoint: "storage.example.net", Bucket: "media", CDNURL: "https://cdn.example.com/"},
			key:  "photos/cat 1.jpg",
			want: "https://cdn.example.com/photos/cat%201.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg, pair, log)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.ObjectURL(tt.key))
		})
	}
}

func TestNew_Validation(t *testing.T) {
	log := logger.Nop()
	pair := creds.Credentials{AccessKey: "ak", SecretKey: "sk"}

	_, err := New(objstore.EndpointConfig{Bucket: "media"}, pair, log)
	assert.True(t, errs.IsConfiguration(err))

	_, err = New(objstore.EndpointConfig{Endpoint: "e.example.com"}, pair, log)
	assert.True(t, errs.IsConfiguration(err))

	_, err = New(objstore.EndpointConfig{Endpoint: "e.example.com", Bucket: "b"}, creds.Credentials{}, log)
	assert.True(t, errs.IsConfiguration(err))
}

func TestNew_NormalizesEndpoint(t *testing.T) {
	cfg := objstore.EndpointConfig{
		Provider: objstore.ProviderQiniu,
		Endpoint: "s3.cn-east-1.qiniucs.com",
		Bucket:   "media",
		UseSSL:   true,
	}
	c, err := New(cfg, creds.Credentials{AccessKey: "ak", SecretKey: "sk"}, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, "https://media.s3-cn-east-1.qiniucs.com/x.png", c.ObjectURL("x.png"))
}
