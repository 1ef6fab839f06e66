// Package jar reads JAR archives: entry traversal, bounded extraction, and
// the metadata embedded by Maven builds.
package jar

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

const (
	_  = iota
	kb = 1 << (10 * iota)
	mb
	gb
)

// perEntryReadLimit bounds how much a single entry may inflate to
const perEntryReadLimit = 2 * gb

// ErrReadLimit is returned when an entry inflates beyond perEntryReadLimit
var ErrReadLimit = errors.New("zip read limit hit (potential decompression bomb)")

// Visitor is called for each visited entry of an archive
type Visitor func(*zip.File) error

// Traverse visits the entries of the archive in central directory order.
// When paths are given only those entries are visited.
func Traverse(archivePath string, visitor Visitor, paths ...string) error {
	request := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		request[p] = struct{}{}
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("unable to open jar (%s): %w", archivePath, err)
	}
	//nolint:errcheck // Defer close
	defer reader.Close()

	for _, file := range reader.File {
		if len(paths) > 0 {
			if _, ok := request[file.Name]; !ok {
				continue
			}
		}
		if err := visitor(file); err != nil {
			return err
		}
	}
	return nil
}

// Contents returns the contents of the requested entries keyed by entry name.
// Requested entries that do not exist are absent from the result.
func Contents(archivePath string, paths ...string) (map[string]string, error) {
	results := make(map[string]string)
	if len(paths) == 0 {
		return results, nil
	}

	visitor := func(file *zip.File) error {
		if file.FileInfo().IsDir() {
			return fmt.Errorf("unable to extract directories, only files: %s", file.Name)
		}

		var buffer bytes.Buffer
		if err := CopyEntry(&buffer, file); err != nil {
			return fmt.Errorf("unable to copy %q from %q: %w", file.Name, archivePath, err)
		}
		results[file.Name] = buffer.String()
		return nil
	}

	return results, Traverse(archivePath, visitor, paths...)
}

// CopyEntry inflates one entry into w
func CopyEntry(w io.Writer, file *zip.File) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close
	defer rc.Close()
	return safeCopy(w, rc)
}

func safeCopy(w io.Writer, r io.Reader) error {
	n, err := io.Copy(w, io.LimitReader(r, perEntryReadLimit))
	if err != nil {
		return err
	}
	if n >= perEntryReadLimit {
		return ErrReadLimit
	}
	return nil
}
