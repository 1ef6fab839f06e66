package jar

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/zip"
)

// FileManifest maps entry names of an archive to their file info
type FileManifest map[string]os.FileInfo

// NewFileManifest lists the entries of an archive
func NewFileManifest(archivePath string) (FileManifest, error) {
	manifest := make(FileManifest)
	err := Traverse(archivePath, func(file *zip.File) error {
		manifest[file.Name] = file.FileInfo()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

// GlobMatch returns the sorted entries matching any of the doublestar patterns.
// Patterns are matched against the entry name with a leading slash.
func (m FileManifest) GlobMatch(patterns ...string) []string {
	unique := make(map[string]struct{})
	for _, pattern := range patterns {
		for entry := range m {
			if ok, err := doublestar.Match(pattern, normalizeEntryName(entry)); err == nil && ok {
				unique[entry] = struct{}{}
			}
		}
	}

	results := make([]string, 0, len(unique))
	for entry := range unique {
		results = append(results, entry)
	}
	sort.Strings(results)
	return results
}

// Files returns the sorted non-directory entries
func (m FileManifest) Files() []string {
	results := make([]string, 0, len(m))
	for entry, info := range m {
		if !info.IsDir() {
			results = append(results, entry)
		}
	}
	sort.Strings(results)
	return results
}

func normalizeEntryName(entry string) string {
	if !strings.HasPrefix(entry, "/") {
		return "/" + entry
	}
	return entry
}

// ValidateEntryName rejects names that would escape an extraction root
func ValidateEntryName(name string) error {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return fmt.Errorf("absolute entry name %q", name)
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return fmt.Errorf("entry name %q escapes the archive root", name)
		}
	}
	return nil
}
