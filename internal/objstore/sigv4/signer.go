// Package sigv4 implements the default objstore.Store driver: a
// hand-rolled AWS Signature Version 4 client speaking the S3 REST API
// over net/http.
//
// The signer is kept SDK-free on purpose — self-hosted and regional
// providers accept exactly the standard signing scheme, and a pure
// implementation keeps every request reproducible for a fixed clock.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/kavinraju/cirrus/internal/creds"
)

const (
	algorithm = "AWS4-HMAC-SHA256"
	service   = "s3"

	// EmptyPayloadHash is the hex SHA-256 of zero bytes, sent as
	// x-amz-content-sha256 for body-less requests.
	EmptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// Sign produces the authenticated header set for one request. The
// returned map contains every input header plus x-amz-date,
// x-amz-content-sha256 and Authorization. Pure and deterministic for
// fixed inputs; the wall-clock instant is supplied by the caller.
//
// uri is the canonical request path (already percent-encoded, see
// EncodePath). region defaults to us-east-1 when empty.
func Sign(method, uri string, query url.Values, headers map[string]string, payload []byte, at time.Time, c creds.Credentials, region string) map[string]string {
	if region == "" {
		region = "us-east-1"
	}

	utc := at.UTC()
	amzDate := utc.Format("20060102T150405Z")
	dateStamp := utc.Format("20060102")

	payloadHash := hashHex(payload)

	signed := make(map[string]string, len(headers)+3)
	for k, v := range headers {
		signed[k] = v
	}
	signed["x-amz-date"] = amzDate
	signed["x-amz-content-sha256"] = payloadHash

	canonicalHeaders, signedHeaders := canonicalizeHeaders(signed)

	canonicalRequest := strings.Join([]string{
		method,
		uri,
		CanonicalQuery(query),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := dateStamp + "/" + region + "/" + service + "/aws4_request"

	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		scope,
		hashHex([]byte(canonicalRequest)),
	}, "\n")

	key := signingKey(c.SecretKey, dateStamp, region)
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	signed["Authorization"] = algorithm +
		" Credential=" + c.AccessKey + "/" + scope +
		", SignedHeaders=" + signedHeaders +
		", Signature=" + signature

	return signed
}

// CanonicalQuery renders query in the exact form the signature covers:
// keys sorted by byte order, keys and values percent-encoded with the
// RFC 3986 unreserved set, joined as k=v pairs with "&". An empty query
// yields the empty string. The request URL must carry this same string.
func CanonicalQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vals := append([]string(nil), query[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(percentEncode(k))
			b.WriteByte('=')
			b.WriteString(percentEncode(v))
		}
	}
	return b.String()
}

// EncodePath percent-encodes an object key for use as a request path,
// keeping segment separators intact.
func EncodePath(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = percentEncode(s)
	}
	return strings.Join(segments, "/")
}

// canonicalizeHeaders lower-cases names, trims surrounding whitespace
// from values (internal whitespace is preserved), sorts by name and
// renders both the canonical header block and the SignedHeaders list.
func canonicalizeHeaders(headers map[string]string) (canonical, signedList string) {
	names := make([]string, 0, len(headers))
	byName := make(map[string]string, len(headers))
	for k, v := range headers {
		name := strings.ToLower(k)
		names = append(names, name)
		byName[name] = strings.TrimSpace(v)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(byName[name])
		b.WriteByte('\n')
	}
	return b.String(), strings.Join(names, ";")
}

// signingKey derives the per-day signing key:
// HMAC(HMAC(HMAC(HMAC("AWS4"+secret, date), region), "s3"), "aws4_request").
func signingKey(secret, dateStamp, region string) []byte {
	k := hmacSHA256([]byte("AWS4"+secret), dateStamp)
	k = hmacSHA256(k, region)
	k = hmacSHA256(k, service)
	return hmacSHA256(k, "aws4_request")
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// percentEncode escapes every byte outside the RFC 3986 unreserved set
// (A-Za-z0-9 - _ . ~) as an upper-case %XX triplet.
func percentEncode(s string) string {
	const hexDigits = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xF])
		}
	}
	return b.String()
}
