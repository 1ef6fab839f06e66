package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
	"github.com/ochairo/cauldron/internal/domain/services"
	"github.com/ochairo/cauldron/internal/external-adapters/jar"
)

// zipDataDescriptorFlag marks entries whose sizes follow the data
const zipDataDescriptorFlag = 0x8

// ReproducibleTimestamp is stamped on every entry when AssemblySpec.Timestamp is zero
var ReproducibleTimestamp = time.Date(1980, time.February, 1, 0, 0, 0, 0, time.UTC)

var signatureExtensions = []string{".sf", ".dsa", ".rsa", ".ec"}

// plannedEntry is a file selected for the output archive
type plannedEntry struct {
	name   string
	source string
	member *zip.File // set for entries taken from a dependency archive
	disk   string    // set for entries taken from a content directory
}

// JarAssembler merges compiled output and dependency jars into one archive
type JarAssembler struct {
	manifests *services.ManifestService
	logger    interfaces.Logger
}

var _ gateways.Assembler = (*JarAssembler)(nil)

// NewJarAssembler creates an assembler
func NewJarAssembler(manifests *services.ManifestService, logger interfaces.Logger) *JarAssembler {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if manifests == nil {
		manifests = services.NewManifestService(logger)
	}
	return &JarAssembler{manifests: manifests, logger: logger}
}

// assembly collects the entries of one archive before anything is written
type assembly struct {
	spec       entities.AssemblySpec
	dirs       map[string]bool
	files      []plannedEntry
	owner      map[string]string
	duplicates []entities.DuplicateEntry
	excluded   int
	sources    int
}

// Assemble writes spec.OutputPath. Content directories are merged first, then dependency
// archives in order; the first source to provide a path wins.
func (a *JarAssembler) Assemble(ctx context.Context, spec entities.AssemblySpec) (*entities.AssemblyReport, error) {
	start := time.Now()
	if spec.Timestamp.IsZero() {
		spec.Timestamp = ReproducibleTimestamp
	}
	for _, pattern := range spec.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	plan := &assembly{
		spec:  spec,
		dirs:  make(map[string]bool),
		owner: make(map[string]string),
	}

	for _, dir := range spec.ContentDirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := plan.addDirectory(dir); err != nil {
			return nil, err
		}
	}

	var readers []*zip.ReadCloser
	defer func() {
		for _, r := range readers {
			//nolint:errcheck // Defer close on read-only archives
			r.Close()
		}
	}()
	for _, dep := range spec.Dependencies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if dep.Path == "" {
			continue
		}
		reader, err := zip.OpenReader(dep.Path)
		if err != nil {
			return nil, fmt.Errorf("unable to open %s (%s): %w", dep.Coordinate, dep.Path, err)
		}
		readers = append(readers, reader)
		plan.addArchive(dep.Coordinate.String(), reader)
	}

	for _, d := range plan.duplicates {
		a.logger.Debug("duplicate entry skipped",
			interfaces.F(interfaces.FieldPath, d.Path),
			interfaces.F("kept", d.KeptFrom),
			interfaces.F("skipped", d.SkippedFrom))
	}

	size, sum, err := a.write(ctx, plan)
	if err != nil {
		return nil, err
	}

	artifactType := entities.ArtifactTypeJar
	if spec.Manifest.MainClass() != "" {
		artifactType = entities.ArtifactTypeFatJar
	}
	version := ""
	if spec.Manifest != nil {
		version = spec.Manifest.Main["Implementation-Version"]
	}

	report := &entities.AssemblyReport{
		Artifact: &entities.Artifact{
			Name:    strings.TrimSuffix(filepath.Base(spec.OutputPath), filepath.Ext(spec.OutputPath)),
			Version: version,
			Path:    spec.OutputPath,
			Type:    artifactType,
			Size:    size,
			SHA256:  sum,
		},
		Entries:    plan.entryCount(),
		Sources:    plan.sources,
		Duplicates: plan.duplicates,
		Excluded:   plan.excluded,
		Duration:   time.Since(start),
	}

	a.logger.Info("archive assembled",
		interfaces.F(interfaces.FieldPath, spec.OutputPath),
		interfaces.F("entries", report.Entries),
		interfaces.F("duplicates", len(report.Duplicates)),
		interfaces.F("size", humanize.Bytes(uint64(size))))

	return report, nil
}

func (p *assembly) addDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	p.sources++

	return filepath.WalkDir(dir, func(current string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if current == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, current)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if d.IsDir() {
			p.addDir(name)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		p.addFile(plannedEntry{name: name, source: dir, disk: current})
		return nil
	})
}

func (p *assembly) addArchive(source string, reader *zip.ReadCloser) {
	p.sources++
	for _, member := range reader.File {
		name := strings.TrimPrefix(member.Name, "/")
		if member.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			p.addDir(strings.TrimSuffix(name, "/"))
			continue
		}
		if isSignatureFile(name) {
			continue
		}
		p.addFile(plannedEntry{name: name, source: source, member: member})
	}
}

func (p *assembly) addDir(name string) {
	if name == "" || jar.ValidateEntryName(name) != nil || p.isExcluded(name) {
		return
	}
	p.dirs[name] = true
}

func (p *assembly) addFile(entry plannedEntry) {
	if jar.ValidateEntryName(entry.name) != nil {
		return
	}
	// the generated manifest always wins
	if strings.EqualFold(entry.name, entities.ManifestPath) {
		return
	}
	if p.isExcluded(entry.name) {
		p.excluded++
		return
	}
	if kept, ok := p.owner[entry.name]; ok {
		p.duplicates = append(p.duplicates, entities.DuplicateEntry{
			Path:        entry.name,
			KeptFrom:    kept,
			SkippedFrom: entry.source,
		})
		return
	}
	p.owner[entry.name] = entry.source
	p.files = append(p.files, entry)

	for parent := path.Dir(entry.name); parent != "." && parent != "/"; parent = path.Dir(parent) {
		p.dirs[parent] = true
	}
}

func (p *assembly) isExcluded(name string) bool {
	for _, pattern := range p.spec.Exclude {
		// patterns are validated before planning starts
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (p *assembly) entryCount() int {
	count := len(p.files) + len(p.dirs)
	if p.spec.Manifest != nil {
		count++
		if !p.dirs["META-INF"] {
			count++
		}
	}
	return count
}

func isSignatureFile(name string) bool {
	dir, file := path.Split(name)
	if !strings.EqualFold(dir, "META-INF/") {
		return false
	}
	ext := strings.ToLower(path.Ext(file))
	for _, sig := range signatureExtensions {
		if ext == sig {
			return true
		}
	}
	return false
}

// write streams the planned entries into a temporary file that replaces the output on success
func (a *JarAssembler) write(ctx context.Context, plan *assembly) (int64, string, error) {
	output := plan.spec.OutputPath
	if err := os.MkdirAll(filepath.Dir(output), 0750); err != nil {
		return 0, "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+"-*")
	if err != nil {
		return 0, "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		//nolint:errcheck,gosec // G104: temp file is gone after a successful rename
		os.Remove(tmpName)
	}()

	hash := sha256.New()
	counter := &countingWriter{w: io.MultiWriter(tmp, hash)}
	zw := zip.NewWriter(counter)

	err = a.writeEntries(ctx, zw, plan)
	if closeErr := zw.Close(); err == nil {
		err = closeErr
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to write %s: %w", output, err)
	}

	if err := os.Rename(tmpName, output); err != nil {
		return 0, "", fmt.Errorf("failed to move archive into place: %w", err)
	}
	return counter.n, hex.EncodeToString(hash.Sum(nil)), nil
}

func (a *JarAssembler) writeEntries(ctx context.Context, zw *zip.Writer, plan *assembly) error {
	ts := plan.spec.Timestamp
	written := make(map[string]bool)

	if plan.spec.Manifest != nil {
		if err := writeDirEntry(zw, "META-INF", ts); err != nil {
			return err
		}
		written["META-INF"] = true

		w, err := zw.CreateHeader(fileHeader(entities.ManifestPath, zip.Deflate, ts))
		if err != nil {
			return err
		}
		if _, err := w.Write(a.manifests.Render(plan.spec.Manifest)); err != nil {
			return err
		}
	}

	dirs := make([]string, 0, len(plan.dirs))
	for d := range plan.dirs {
		if !written[d] {
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		if err := writeDirEntry(zw, d, ts); err != nil {
			return err
		}
	}

	for i, entry := range plan.files {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := writeFileEntry(zw, entry, ts); err != nil {
			return fmt.Errorf("%s from %s: %w", entry.name, entry.source, err)
		}
	}
	return nil
}

func writeDirEntry(zw *zip.Writer, name string, ts time.Time) error {
	h := fileHeader(name+"/", zip.Store, ts)
	h.SetMode(fs.ModeDir | 0755)
	_, err := zw.CreateHeader(h)
	return err
}

func writeFileEntry(zw *zip.Writer, entry plannedEntry, ts time.Time) error {
	if entry.member != nil {
		return copyMember(zw, entry.name, entry.member, ts)
	}

	//nolint:gosec // G304: path comes from walking the compiled output directory
	f, err := os.Open(entry.disk)
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	w, err := zw.CreateHeader(fileHeader(entry.name, zip.Deflate, ts))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// copyMember moves the compressed bytes of a dependency entry without inflating them.
// Name, method, sizes, CRC and general purpose flags carry over; timestamps and extra fields
// are normalized.
func copyMember(zw *zip.Writer, name string, member *zip.File, ts time.Time) error {
	if member.Method != zip.Store && member.Method != zip.Deflate {
		// unusual methods are re-encoded so every reader can open the result
		rc, err := member.Open()
		if err != nil {
			return err
		}
		//nolint:errcheck // Defer close on read-only entry
		defer rc.Close()
		w, err := zw.CreateHeader(fileHeader(name, zip.Deflate, ts))
		if err != nil {
			return err
		}
		_, err = io.Copy(w, rc)
		return err
	}

	raw, err := member.OpenRaw()
	if err != nil {
		return err
	}

	h := fileHeader(name, member.Method, ts)
	// keeps the UTF-8 name bit; sizes are known so no data descriptor follows
	h.Flags = member.Flags &^ zipDataDescriptorFlag
	h.CRC32 = member.CRC32
	h.CompressedSize64 = member.CompressedSize64
	h.UncompressedSize64 = member.UncompressedSize64

	w, err := zw.CreateRaw(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, raw)
	return err
}

func fileHeader(name string, method uint16, ts time.Time) *zip.FileHeader {
	h := &zip.FileHeader{Name: name, Method: method}
	//nolint:staticcheck // SA1019: DOS fields avoid the extended timestamp extra field
	h.ModifiedDate, h.ModifiedTime = dosDateTime(ts)
	h.SetMode(0644)
	return h
}

// dosDateTime encodes t in the MS-DOS date and time format of zip headers
func dosDateTime(t time.Time) (date, clock uint16) {
	t = t.UTC()
	year := t.Year()
	if year < 1980 {
		year = 1980
	}
	date = uint16(t.Day() + int(t.Month())<<5 + (year-1980)<<9)
	clock = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return date, clock
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
