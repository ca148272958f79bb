// Package source loads content items from YAML or JSON item files.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/fieldcrawl/internal/content"
	crawlerrors "github.com/Aman-CERP/fieldcrawl/internal/errors"
)

// Extensions lists the file extensions recognised as item files.
var Extensions = []string{".yaml", ".yml", ".json"}

// File is the on-disk layout of an item file.
type File struct {
	Items []ItemSpec `yaml:"items" json:"items"`
}

// ItemSpec describes one content item.
type ItemSpec struct {
	ID       string      `yaml:"id" json:"id"`
	Revision string      `yaml:"revision,omitempty" json:"revision,omitempty"`
	Template bool        `yaml:"template,omitempty" json:"template,omitempty"`
	Media    bool        `yaml:"media,omitempty" json:"media,omitempty"`
	Fields   []FieldSpec `yaml:"fields" json:"fields"`
}

// FieldSpec describes one declared field. Loaded defaults to true; a field
// with loaded: false is only reachable through LoadAllFields or by id.
type FieldSpec struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"`
	Value    string `yaml:"value,omitempty" json:"value,omitempty"`
	Fallback string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	Loaded   *bool  `yaml:"loaded,omitempty" json:"loaded,omitempty"`
}

// IsItemFile reports whether path has an item file extension.
func IsItemFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadFile reads the items in one file.
func LoadFile(path string) ([]*content.MemoryItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, crawlerrors.New(crawlerrors.ErrCodeFileNotFound, "item file not found", err).
				WithDetail("path", path)
		}
		return nil, crawlerrors.IOError("failed to read item file", err).WithDetail("path", path)
	}
	items, err := Parse(data)
	if err != nil {
		if ce, ok := err.(*crawlerrors.CrawlError); ok {
			return nil, ce.WithDetail("path", path)
		}
		return nil, err
	}
	return items, nil
}

// Parse decodes item file content. JSON input is accepted as YAML.
func Parse(data []byte) ([]*content.MemoryItem, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, invalid("failed to parse item file", err)
	}

	items := make([]*content.MemoryItem, 0, len(f.Items))
	seen := make(map[string]bool, len(f.Items))
	for i, entry := range f.Items {
		it, err := entry.build()
		if err != nil {
			return nil, invalid(fmt.Sprintf("item %d", i), err)
		}
		if seen[it.UniqueID()] {
			return nil, invalid(fmt.Sprintf("item %d", i), fmt.Errorf("duplicate item id %s", it.UniqueID()))
		}
		seen[it.UniqueID()] = true
		items = append(items, it)
	}
	return items, nil
}

func (s ItemSpec) build() (*content.MemoryItem, error) {
	id := strings.TrimSpace(s.ID)
	if id == "" {
		return nil, fmt.Errorf("item id is required")
	}
	// GUID-like item ids are stored in canonical form.
	id = content.CanonicalKey(id)

	it := content.NewMemoryItem(id).
		AsTemplate(s.Template).
		AsMedia(s.Media).
		WithRevision(s.Revision)

	for j, fs := range s.Fields {
		fid, ok := content.ParseFieldID(fs.ID)
		if !ok {
			return nil, fmt.Errorf("field %d (%s): invalid field id %q", j, fs.Name, fs.ID)
		}
		f := content.NewMemoryField(fid, fs.Name, fs.Type, fs.Value)
		if fs.Fallback != "" {
			f.WithFallback(fs.Fallback)
		}
		loaded := fs.Loaded == nil || *fs.Loaded
		it.Declare(f, loaded)
	}
	return it, nil
}

// LoadPaths loads every item file named by paths. Directories are walked
// for files with an item file extension. Items are returned in path order.
func LoadPaths(paths ...string) ([]*content.MemoryItem, error) {
	files, err := ExpandPaths(paths...)
	if err != nil {
		return nil, err
	}

	var all []*content.MemoryItem
	for _, p := range files {
		items, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

// ExpandPaths resolves paths to a sorted, de-duplicated list of item files.
func ExpandPaths(paths ...string) ([]string, error) {
	set := make(map[string]struct{})
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, crawlerrors.New(crawlerrors.ErrCodeFileNotFound, "path not found", err).
					WithDetail("path", p)
			}
			return nil, crawlerrors.IOError("failed to stat path", err).WithDetail("path", p)
		}
		if !info.IsDir() {
			set[filepath.Clean(p)] = struct{}{}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if IsItemFile(path) && !strings.HasPrefix(d.Name(), ".") {
				set[filepath.Clean(path)] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, crawlerrors.IOError("failed to walk directory", err).WithDetail("path", p)
		}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func invalid(msg string, cause error) *crawlerrors.CrawlError {
	return crawlerrors.New(crawlerrors.ErrCodeSourceInvalid, msg, cause).
		WithSuggestion("Check the item file against the documented items/fields layout")
}
