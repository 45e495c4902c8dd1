package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// maxParallelFiles bounds how many catalog files are parsed at once.
const maxParallelFiles = 4

// File is the top-level structure of a catalog YAML file.
//
// Example:
//
//	ayahs:
//	  - surah: 1
//	    ayah: 1
//	    surah_name: Al-Fatiha
//	    text: "بِسْمِ اللَّهِ الرَّحْمَٰنِ الرَّحِيمِ"
type File struct {
	Ayahs []Ayah `yaml:"ayahs"`
}

// LoadFile reads and parses one catalog file.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()

	cf, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
	}
	return cf, nil
}

// LoadFromReader parses catalog YAML from r. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*File, error) {
	var cf File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	return &cf, nil
}

// Import parses every file in paths concurrently and stores their ayahs in
// path order, so an ayah defined in a later file replaces an earlier one. It
// returns the number of ayahs stored. Parsing errors abort the import before
// anything is written.
func Import(ctx context.Context, store Store, paths []string) (int, error) {
	files := make([]*File, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFiles)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := LoadFile(path)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for i, f := range files {
		n, err := store.BulkImport(ctx, f.Ayahs)
		total += n
		if err != nil {
			return total, fmt.Errorf("catalog: import %q: %w", paths[i], err)
		}
		slog.Debug("catalog file imported", "path", paths[i], "ayahs", n)
	}
	return total, nil
}
