package objstore

import "strings"

// Provider identifies the storage service family an endpoint belongs to.
// The set is closed: provider-specific behavior (default endpoint,
// addressing mode, endpoint normalization) lives in the Info table.
type Provider string

const (
	ProviderAWS     Provider = "aws"
	ProviderMinIO   Provider = "minio"
	ProviderQiniu   Provider = "qiniu"
	ProviderAliyun  Provider = "aliyun"
	ProviderTencent Provider = "tencent"
	ProviderCustom  Provider = "custom"
)

// ProviderInfo carries the per-provider defaults used when a config
// leaves the corresponding field empty.
type ProviderInfo struct {
	// DisplayName is the human-readable provider name.
	DisplayName string

	// DefaultEndpoint is the endpoint host suggested for new configs.
	// Empty for self-hosted providers.
	DefaultEndpoint string

	// DefaultPathStyle is the addressing mode the provider expects.
	DefaultPathStyle bool
}

// Info returns the lookup-table entry for the provider. Unknown tags
// fall back to the custom entry.
func (p Provider) Info() ProviderInfo {
	switch p {
	case ProviderAWS:
		return ProviderInfo{DisplayName: "Amazon S3", DefaultEndpoint: "s3.amazonaws.com"}
	case ProviderMinIO:
		return ProviderInfo{DisplayName: "MinIO", DefaultPathStyle: true}
	case ProviderQiniu:
		return ProviderInfo{DisplayName: "Qiniu Kodo", DefaultEndpoint: "s3.cn-east-1.qiniucs.com"}
	case ProviderAliyun:
		return ProviderInfo{DisplayName: "Alibaba Cloud OSS", DefaultEndpoint: "oss-cn-hangzhou.aliyuncs.com"}
	case ProviderTencent:
		return ProviderInfo{DisplayName: "Tencent COS", DefaultEndpoint: "cos.ap-guangzhou.myqcloud.com"}
	default:
		return ProviderInfo{DisplayName: "Custom", DefaultPathStyle: true}
	}
}

// EndpointConfig describes one endpoint + bucket a Store connects to.
// It is a read-only value object for the duration of a session; the
// catalog owns persistence.
type EndpointConfig struct {
	// Provider is the service family tag.
	Provider Provider

	// Endpoint is the storage host, optionally with a port
	// (e.g. "s3.amazonaws.com", "localhost:9000").
	Endpoint string

	// Bucket is the bucket all operations are scoped to.
	Bucket string

	// Region is used in the SigV4 credential scope.
	// Empty means "us-east-1".
	Region string

	// UseSSL controls whether requests go over HTTPS.
	UseSSL bool

	// PathStyle selects path-style addressing (request URI prefixed
	// with "/bucket") instead of virtual-hosted ("bucket.endpoint").
	PathStyle bool

	// Note is an optional display note. Never sent over the wire.
	Note string

	// CDNURL optionally overrides the base of ObjectURL results.
	CDNURL string

	// CredentialsRef is the opaque id the credential provider resolves
	// to an access/secret key pair.
	CredentialsRef string
}

// Normalize returns a copy of the config with the endpoint host
// normalized. Applied once before a config is used; idempotent.
func (c EndpointConfig) Normalize() EndpointConfig {
	c.Endpoint = NormalizeEndpoint(c.Endpoint)
	return c
}

// SigningRegion returns the region used in the credential scope,
// defaulting to us-east-1 when the config leaves it empty.
func (c EndpointConfig) SigningRegion() string {
	if c.Region == "" {
		return "us-east-1"
	}
	return c.Region
}

// NormalizeEndpoint rewrites the one known-broken endpoint form:
// Qiniu's S3 gateway is reachable at s3-<region>.qiniucs.com, while its
// console displays s3.<region>.qiniucs.com. Only that exact shape is
// rewritten (the leading "s3." and the ".qiniucs.com" suffix must both
// be present); every other host passes through unchanged.
func NormalizeEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "s3.") && strings.HasSuffix(endpoint, ".qiniucs.com") {
		return "s3-" + endpoint[len("s3."):]
	}
	return endpoint
}
