package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// touch creates the named files (and their directories) under root.
func touch(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
}

func videoTree(t *testing.T) string {
	t.Helper()
	input := t.TempDir()
	touch(t, input,
		"walking/b.mp4",
		"walking/a.mp4",
		"walking/c.avi",
		"walking/notes.txt",
		"walking/.mp4",
		"walking/nested/d.mp4",
		"running/e.mp4",
		"running/F.MP4",
		"stray.mp4",
	)
	require.NoError(t, os.MkdirAll(filepath.Join(input, "empty"), 0o755))
	return input
}

func TestDiscover(t *testing.T) {
	input := videoTree(t)
	output := filepath.Join(t.TempDir(), "out")

	jobs, err := Discover(input, output, "mp4", false)
	require.NoError(t, err)

	assert.Equal(t, []Job{
		{Category: "running", Input: filepath.Join(input, "running", "e.mp4"), Output: filepath.Join(output, "running", "e.mp4")},
		{Category: "walking", Input: filepath.Join(input, "walking", "a.mp4"), Output: filepath.Join(output, "walking", "a.mp4")},
		{Category: "walking", Input: filepath.Join(input, "walking", "b.mp4"), Output: filepath.Join(output, "walking", "b.mp4")},
	}, jobs)

	withDot, err := Discover(input, output, ".mp4", false)
	require.NoError(t, err)
	assert.Equal(t, jobs, withDot, "a leading dot is tolerated")
}

func TestDiscover_OtherExtension(t *testing.T) {
	input := videoTree(t)
	output := t.TempDir()

	jobs, err := Discover(input, output, "avi", false)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, filepath.Join(output, "walking", "c.mp4"), jobs[0].Output, "outputs are always .mp4")
	assert.Equal(t, filepath.Join(output, "walking", "c.json"), jobs[0].LabelsPath())

	jobs, err = Discover(input, output, "mkv", false)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestDiscover_FirstOnly(t *testing.T) {
	input := videoTree(t)
	output := t.TempDir()

	jobs, err := Discover(input, output, "mp4", true)
	require.NoError(t, err)
	assert.Empty(t, jobs, "the first category is empty and ends the walk")

	require.NoError(t, os.Remove(filepath.Join(input, "empty")))

	jobs, err = Discover(input, output, "mp4", true)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, filepath.Join(input, "running", "e.mp4"), jobs[0].Input)

	jobs, err = Discover(input, output, "avi", true)
	require.NoError(t, err)
	assert.Empty(t, jobs, "later categories are never visited")
}

func TestDiscover_SkipsBareExtension(t *testing.T) {
	input := t.TempDir()
	touch(t, input, "walking/.mp4", "walking/a.mp4")

	jobs, err := Discover(input, t.TempDir(), "mp4", false)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, filepath.Join(input, "walking", "a.mp4"), jobs[0].Input)
}

func TestDiscover_Errors(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"), t.TempDir(), "mp4", false)
	assert.Error(t, err)

	_, err = Discover(t.TempDir(), t.TempDir(), ".", false)
	assert.Error(t, err)
}

func TestNormalizeExtension(t *testing.T) {
	assert.Equal(t, ".mp4", NormalizeExtension("mp4"))
	assert.Equal(t, ".mp4", NormalizeExtension(".mp4"))
	assert.Equal(t, ".mp4", NormalizeExtension("..mp4"))
}
