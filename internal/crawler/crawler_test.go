package crawler

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFs(t *testing.T, names ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, name := range names {
		require.NoError(t, afero.WriteFile(fs, name, []byte("int main(void) { return 0; }\n"), 0o644))
	}
	return fs
}

func TestCrawler_Sources(t *testing.T) {
	fs := newFs(t,
		"/proj/main.c",
		"/proj/util/strings.c",
		"/proj/util/strings.h",
		"/proj/util/alpha.c",
		"/proj/build/generated.c",
		"/proj/.cache/tmp.c",
		"/proj/testdata/fixture.c",
		"/proj/notes.txt",
	)
	c := NewCrawlerFs(fs)

	t.Run("Directory walk", func(t *testing.T) {
		got, err := c.Sources("/proj")
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join("/proj", "main.c"),
			filepath.Join("/proj", "util", "alpha.c"),
			filepath.Join("/proj", "util", "strings.c"),
		}, got)
	})

	t.Run("File roots are kept as given", func(t *testing.T) {
		got, err := c.Sources("/proj/build/generated.c", "/proj/util", "/proj/util/alpha.c")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"/proj/build/generated.c",
			filepath.Join("/proj", "util", "alpha.c"),
			filepath.Join("/proj", "util", "strings.c"),
		}, got)
	})

	t.Run("Missing root", func(t *testing.T) {
		_, err := c.Sources("/proj/nope.c")
		assert.Error(t, err)
	})
}

func TestCrawler_HostFilesystem(t *testing.T) {
	got, err := NewCrawler().Sources(filepath.Join("..", "pipeline", "testdata", "prog.c"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
