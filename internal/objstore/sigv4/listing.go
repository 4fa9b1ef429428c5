package sigv4

import (
	"encoding/xml"
	"strconv"
	"time"

	"github.com/kavinraju/cirrus/internal/errs"
)

// Timestamp layouts seen in the wild: AWS and most compatibles send
// fractional seconds (usually milliseconds, but precision varies by
// gateway), a few self-hosted gateways send whole seconds.
const (
	timeLayoutFractional = "2006-01-02T15:04:05.999999999Z"
	timeLayoutSeconds    = "2006-01-02T15:04:05Z"
)

// listBucketResult is the subset of the ListObjectsV2 response body the
// client consumes. Everything else in the document is ignored.
type listBucketResult struct {
	XMLName  xml.Name `xml:"ListBucketResult"`
	Contents []struct {
		Key          string `xml:"Key"`
		Size         string `xml:"Size"`
		LastModified string `xml:"LastModified"`
	} `xml:"Contents"`
}

// listEntry is one parsed <Contents> block.
type listEntry struct {
	key          string
	size         int64
	lastModified time.Time
}

// parseListing extracts every <Contents> block from body. Per-field
// damage is tolerated (size defaults to 0, timestamps default to
// fallback); only a top-level XML failure is reported, and the caller
// downgrades even that to an empty listing.
func parseListing(body []byte, fallback time.Time) ([]listEntry, error) {
	var doc listBucketResult
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, errs.Wrap(errs.ErrKindParse, "malformed ListBucketResult", err)
	}

	entries := make([]listEntry, 0, len(doc.Contents))
	for _, c := range doc.Contents {
		if c.Key == "" {
			continue
		}
		entries = append(entries, listEntry{
			key:          c.Key,
			size:         parseSize(c.Size),
			lastModified: parseModTime(c.LastModified, fallback),
		})
	}
	return entries, nil
}

func parseSize(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseModTime(raw string, fallback time.Time) time.Time {
	if t, err := time.Parse(timeLayoutFractional, raw); err == nil {
		return t
	}
	if t, err := time.Parse(timeLayoutSeconds, raw); err == nil {
		return t
	}
	return fallback
}
