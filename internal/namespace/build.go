// Package namespace turns a flat, unordered object-key listing into
// the hierarchical folder/file view a browser renders.
//
// Everything here is pure: views are derived, recomputed on every
// listing or navigation, and never mutated in place.
package namespace

import (
	"sort"
	"strings"

	"github.com/kavinraju/cirrus/internal/objstore"
)

// Kind tags a Node as a folder or a file.
type Kind int

const (
	KindFolder Kind = iota
	KindFile
)

// Node is one entry of the materialized view: either a child folder
// with aggregated stats, or a direct file backed by its ObjectInfo.
type Node struct {
	Kind Kind

	// Name is the display name: the folder segment, or the file's
	// final path segment.
	Name string

	// Path is the full prefix of a folder (always with a trailing
	// separator), or the full key of a file.
	Path string

	// FileCount is the number of objects underneath a folder,
	// recursively. Zero for files.
	FileCount int

	// TotalSize is the aggregated byte size underneath a folder, or
	// the file's own size.
	TotalSize int64

	// Object carries the backing record for files; nil for folders.
	Object *objstore.ObjectInfo
}

// Build materializes the view of currentPath from records. Records
// outside the path are discarded (the listing should already be
// prefix-filtered; this is belt and braces). The result depends only on
// the set of matching records, never on their order: folders first,
// then files, each group sorted case-insensitively by name.
func Build(records []objstore.ObjectInfo, currentPath string) []Node {
	path := normalizePath(currentPath)

	type folderAgg struct {
		count int
		size  int64
	}
	folders := make(map[string]*folderAgg)
	var files []objstore.ObjectInfo

	for _, rec := range records {
		if !strings.HasPrefix(rec.Key, path) {
			continue
		}
		relative := rec.Key[len(path):]
		if relative == "" {
			continue
		}

		if slash := strings.IndexByte(relative, '/'); slash >= 0 {
			segment := relative[:slash]
			agg := folders[segment]
			if agg == nil {
				agg = &folderAgg{}
				folders[segment] = agg
			}
			agg.count++
			agg.size += rec.Size
		} else {
			files = append(files, rec)
		}
	}

	nodes := make([]Node, 0, len(folders)+len(files))
	for segment, agg := range folders {
		nodes = append(nodes, Node{
			Kind:      KindFolder,
			Name:      segment,
			Path:      path + segment + "/",
			FileCount: agg.count,
			TotalSize: agg.size,
		})
	}
	sortNodes(nodes)

	fileNodes := make([]Node, 0, len(files))
	for i := range files {
		rec := files[i]
		fileNodes = append(fileNodes, Node{
			Kind:      KindFile,
			Name:      rec.Name(),
			Path:      rec.Key,
			TotalSize: rec.Size,
			Object:    &rec,
		})
	}
	sortNodes(fileNodes)

	return append(nodes, fileNodes...)
}

// normalizePath gives a non-empty path a trailing separator; the empty
// path (bucket root) stays empty.
func normalizePath(path string) string {
	if path == "" || strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

// sortNodes orders case-insensitively by name, falling back to the
// exact name so views stay deterministic when names differ only by case.
func sortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		li, lj := strings.ToLower(nodes[i].Name), strings.ToLower(nodes[j].Name)
		if li != lj {
			return li < lj
		}
		return nodes[i].Name < nodes[j].Name
	})
}
