package crawler

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// Crawler collects C translation units from files and directories.
type Crawler struct {
	fs         afero.Fs
	ignored    []string
	extensions []string
}

// NewCrawler creates a crawler over the host filesystem.
func NewCrawler() *Crawler {
	return NewCrawlerFs(afero.NewOsFs())
}

// NewCrawlerFs creates a crawler over fs.
func NewCrawlerFs(fs afero.Fs) *Crawler {
	return &Crawler{
		fs:         fs,
		ignored:    []string{".git", "build", "node_modules", "testdata"},
		extensions: []string{".c"},
	}
}

// Sources expands each root into the C files to compile. A file root is
// returned as given, whatever its extension; a directory root is walked
// recursively. Results keep root order, and files within a directory are
// sorted. A file reached through more than one root is listed once.
func (c *Crawler) Sources(roots ...string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(path string) {
		key := filepath.Clean(path)
		if !seen[key] {
			seen[key] = true
			out = append(out, path)
		}
	}

	for _, root := range roots {
		info, err := c.fs.Stat(root)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to stat %s", root)
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		var found []string
		err = afero.Walk(c.fs, root, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Skip ignored directories
			if fi.IsDir() {
				if path != root && c.isIgnored(fi.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			if c.isSource(fi.Name()) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to walk %s", root)
		}
		sort.Strings(found)
		for _, path := range found {
			add(path)
		}
	}
	return out, nil
}

func (c *Crawler) isIgnored(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, ign := range c.ignored {
		if name == ign {
			return true
		}
	}
	return false
}

func (c *Crawler) isSource(name string) bool {
	for _, ext := range c.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
