package namespace

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavinraju/cirrus/internal/objstore"
)

func rec(key string, size int64) objstore.ObjectInfo {
	return objstore.ObjectInfo{Key: key, Size: size}
}

func TestBuild_RootView(t *testing.T) {
	records := []objstore.ObjectInfo{
		rec("a.txt", 10),
		rec("docs/b.txt", 20),
		rec("docs/c.txt", 30),
		rec("docs/sub/d.txt", 40),
	}

	nodes := Build(records, "")
	require.Len(t, nodes, 2)

	folder := nodes[0]
	assert.Equal(t, KindFolder, folder.Kind)
	assert.Equal(t, "docs", folder.Name)
	assert.Equal(t, "docs/", folder.Path)
	assert.Equal(t, 3, folder.FileCount)
	assert.Equal(t, int64(90), folder.TotalSize)
	assert.Nil(t, folder.Object)

	file := nodes[1]
	assert.Equal(t, KindFile, file.Kind)
	assert.Equal(t, "a.txt", file.Name)
	assert.Equal(t, "a.txt", file.Path)
	assert.Equal(t, int64(10), file.TotalSize)
	require.NotNil(t, file.Object)
	assert.Equal(t, "a.txt", file.Object.Key)
}

func TestBuild_NestedPath(t *testing.T) {
	records := []objstore.ObjectInfo{
		rec("docs/b.txt", 20),
		rec("docs/c.txt", 30),
		rec("docs/sub/d.txt", 40),
		rec("docs/sub/deep/e.txt", 50),
		rec("other/x.txt", 5),
	}

	nodes := Build(records, "docs")
	require.Len(t, nodes, 3)

	assert.Equal(t, KindFolder, nodes[0].Kind)
	assert.Equal(t, "sub", nodes[0].Name)
	assert.Equal(t, "docs/sub/", nodes[0].Path)
	assert.Equal(t, 2, nodes[0].FileCount)
	assert.Equal(t, int64(90), nodes[0].TotalSize)

	assert.Equal(t, "b.txt", nodes[1].Name)
	assert.Equal(t, "c.txt", nodes[2].Name)
}

func TestBuild_PathNormalization(t *testing.T) {
	records := []objstore.ObjectInfo{rec("docs/b.txt", 1)}

	// "docs" and "docs/" must materialize the same view.
	assert.Equal(t, Build(records, "docs"), Build(records, "docs/"))
}

func TestBuild_OrderIndependent(t *testing.T) {
	records := []objstore.ObjectInfo{
		rec("a.txt", 1),
		rec("B.txt", 2),
		rec("docs/x.txt", 3),
		rec("docs/y.txt", 4),
		rec("archive/z.bin", 5),
		rec("notes.md", 6),
	}

	want := Build(records, "")

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]objstore.ObjectInfo(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		assert.Equal(t, want, Build(shuffled, ""))
	}
}

func TestBuild_SortsFoldersBeforeFiles(t *testing.T) {
	records := []objstore.ObjectInfo{
		rec("zzz.txt", 1),
		rec("Alpha/a", 1),
		rec("beta/b", 1),
		rec("AAA.txt", 1),
	}

	nodes := Build(records, "")
	require.Len(t, nodes, 4)

	// Folders first, each group case-insensitively sorted.
	assert.Equal(t, "Alpha", nodes[0].Name)
	assert.Equal(t, "beta", nodes[1].Name)
	assert.Equal(t, "AAA.txt", nodes[2].Name)
	assert.Equal(t, "zzz.txt", nodes[3].Name)
}

func TestBuild_DiscardsRecordsOutsidePath(t *testing.T) {
	records := []objstore.ObjectInfo{
		rec("docs/in.txt", 1),
		rec("elsewhere/out.txt", 1),
	}

	nodes := Build(records, "docs/")
	require.Len(t, nodes, 1)
	assert.Equal(t, "in.txt", nodes[0].Name)
}

func TestBuild_Empty(t *testing.T) {
	assert.Empty(t, Build(nil, ""))
	assert.Empty(t, Build([]objstore.ObjectInfo{}, "docs/"))
}
