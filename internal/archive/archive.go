// Package archive saves simulated series to compressed, checksummed files
// and loads them back for re-flattening or plotting.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/scenario"
)

// Extension is the file extension of archives written by GeneratePath.
const Extension = ".series.gz"

// Header is the plain-text first line of an archive file.
type Header struct {
	Version    int               `json:"version"`
	CreatedAt  time.Time         `json:"created_at"`
	Checksum   string            `json:"checksum"`
	Name       string            `json:"name,omitempty"`
	Snapshots  int               `json:"snapshots"`
	Models     int               `json:"models"`
	Compressed bool              `json:"compressed"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Archive is the payload of an archive file: every recorded snapshot of a
// series in document form, stamps and resolved parameters included.
type Archive struct {
	Name      string                  `json:"name,omitempty" yaml:"name,omitempty"`
	Snapshots [][]*scenario.ModelSpec `json:"snapshots" yaml:"snapshots"`

	// Carried in the header.
	CreatedAt time.Time         `json:"-" yaml:"-"`
	Metadata  map[string]string `json:"-" yaml:"-"`
}

// New converts series into an archive.
func New(name string, series model.ModelListSeries) (*Archive, error) {
	a := &Archive{
		Name:      name,
		Snapshots: make([][]*scenario.ModelSpec, len(series)),
		CreatedAt: time.Now().UTC(),
	}
	for i, list := range series {
		specs := make([]*scenario.ModelSpec, len(list))
		for j, m := range list {
			s, err := scenario.FromModel(m)
			if err != nil {
				return nil, fmt.Errorf("snapshot %d, model %d: %w", i, j, err)
			}
			specs[j] = s
		}
		a.Snapshots[i] = specs
	}
	return a, nil
}

// Series converts the archive back into a series.
func (a *Archive) Series() (model.ModelListSeries, error) {
	series := make(model.ModelListSeries, len(a.Snapshots))
	for i, specs := range a.Snapshots {
		list := make(model.ModelList, len(specs))
		for j, s := range specs {
			if s == nil {
				return nil, fmt.Errorf("snapshot %d, model %d: empty entry", i, j)
			}
			m, err := s.ToModel()
			if err != nil {
				return nil, fmt.Errorf("snapshot %d, model %d: %w", i, j, err)
			}
			list[j] = m
		}
		series[i] = list
	}
	return series, nil
}

// Save archives series at path.
func Save(path, name string, series model.ModelListSeries) (*Archive, error) {
	a, err := New(name, series)
	if err != nil {
		return nil, err
	}
	if err := Write(path, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DefaultDir returns the default archive directory (~/.macrosim/archives/).
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".macrosim", "archives"), nil
}

// GeneratePath creates a timestamped archive filename in dir.
func GeneratePath(dir, name string) string {
	ts := time.Now().Format("20060102-150405")
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, name)
	if slug == "" {
		slug = "series"
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s%s", slug, ts, Extension))
}

// Rotate keeps only the most recent keepN archives in dir, deleting older ones.
func Rotate(dir string, keepN int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	type dated struct {
		path    string
		created time.Time
	}
	var archives []dated
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		h, err := ReadHeader(path)
		if err != nil {
			continue // not an archive
		}
		archives = append(archives, dated{path, h.CreatedAt})
	}

	// Newest first
	sort.Slice(archives, func(i, j int) bool {
		return archives[i].created.After(archives[j].created)
	})

	var deleted []string
	if len(archives) > keepN {
		for _, a := range archives[keepN:] {
			if err := os.Remove(a.path); err != nil {
				return deleted, fmt.Errorf("failed to remove old archive %s: %w", a.path, err)
			}
			deleted = append(deleted, a.path)
		}
	}
	return deleted, nil
}
