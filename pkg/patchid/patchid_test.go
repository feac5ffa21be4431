package patchid_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
	"github.com/Sumatoshi-tech/scenariominer/pkg/patchid"
)

const patchA = `diff --git a/app.py b/app.py
index 3b18e51..a5c1966 100644
--- a/app.py
+++ b/app.py
@@ -1,2 +1,3 @@
 import os
+print("hello")

 def main():
`

// patchB is patchA applied on a different branch: blob ids, hunk offsets
// aside, the change is identical.
const patchB = `diff --git a/app.py b/app.py
index 7f0e2aa..19c44d2 100644
--- a/app.py
+++ b/app.py
@@ -1,2 +1,3 @@
 import os
+print("hello")
 def main():
`

func TestNormalizeStripsHeadersAndBlankLines(t *testing.T) {
	t.Parallel()

	want := "@@ -1,2 +1,3 @@\n import os\n+print(\"hello\")\n def main():\n"

	assert.Equal(t, want, patchid.Normalize(patchA))
	assert.Equal(t, want, patchid.Normalize(patchB))
}

func TestNormalizeStripsExtendedHeaders(t *testing.T) {
	t.Parallel()

	patch := "diff --git a/new.py b/new.py\nnew file mode 100644\nindex 0000000..e69de29\n" +
		"--- /dev/null\n+++ b/new.py\n@@ -0,0 +1 @@\n+x = 1\n"

	assert.Equal(t, "@@ -0,0 +1 @@\n+x = 1\n", patchid.Normalize(patch))
}

func TestNormalizeKeepsBodyLinesThatLookLikeHeaders(t *testing.T) {
	t.Parallel()

	patch := "diff --git a/a.sql b/a.sql\nindex 1..2 100644\n--- a/a.sql\n+++ b/a.sql\n" +
		"@@ -1 +1 @@\n--- old comment\n+++ new comment\n"

	assert.Equal(t, "@@ -1 +1 @@\n--- old comment\n+++ new comment\n", patchid.Normalize(patch))
}

func TestSum(t *testing.T) {
	t.Parallel()

	assert.Equal(t, patchid.Sum([]byte(patchA)), patchid.Sum([]byte(patchB)))
	assert.Len(t, patchid.Sum([]byte(patchA)), 40)
	assert.NotEqual(t, patchid.Sum([]byte(patchA)), patchid.Sum([]byte("+something else\n")))
}

func TestSumUndecodablePatch(t *testing.T) {
	t.Parallel()

	assert.Empty(t, patchid.Sum([]byte{0xff, 0xfe, 0x00, 0x41}))
	assert.Equal(t, patchid.Sum([]byte{0xff}), patchid.Sum([]byte{0xc3, 0x28}))
}

type countingSource struct {
	patches map[gitlib.Hash]string
	reads   int
}

func (s *countingSource) Patch(_ context.Context, hash gitlib.Hash) ([]byte, error) {
	s.reads++

	patch, ok := s.patches[hash]
	if !ok {
		return nil, errors.New("missing")
	}

	return []byte(patch), nil
}

func TestCache(t *testing.T) {
	t.Parallel()

	a := gitlib.TestHash("a")
	source := &countingSource{patches: map[gitlib.Hash]string{a: patchA}}

	cache, err := patchid.NewCache(source, 0)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := cache.Sum(ctx, a)
	require.NoError(t, err)

	second, err := cache.Sum(ctx, a)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, patchid.Sum([]byte(patchA)), first)
	assert.Equal(t, 1, source.reads)
	assert.Equal(t, int64(1), cache.Hits())
	assert.Equal(t, int64(1), cache.Misses())

	_, err = cache.Sum(ctx, gitlib.TestHash("missing"))
	require.Error(t, err)
}
