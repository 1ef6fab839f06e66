package services

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
)

// manifestLineLimit is the maximum length of a manifest line in bytes, excluding the line break
const manifestLineLimit = 72

var leadingAttributes = []string{
	"Manifest-Version",
	"Main-Class",
	"Created-By",
	"Build-Jdk-Spec",
	"Implementation-Title",
	"Implementation-Version",
	"Implementation-Vendor",
}

// ManifestService builds, renders and parses JAR manifests
type ManifestService struct {
	logger interfaces.Logger
}

// NewManifestService creates a new manifest service
func NewManifestService(logger interfaces.Logger) *ManifestService {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ManifestService{logger: logger}
}

// NewManifest returns the manifest for the project's fat archive. User attributes
// cannot override Manifest-Version or Main-Class.
func (s *ManifestService) NewManifest(project *entities.Project, toolVersion string) *entities.JavaManifest {
	main := map[string]string{}
	for k, v := range project.Archive.Manifest {
		if err := entities.CheckManifestAttribute(k, v); err != nil {
			s.logger.Warn("manifest attribute dropped", interfaces.Err(err))
			continue
		}
		main[k] = v
	}

	main["Manifest-Version"] = "1.0"
	main["Created-By"] = "cauldron " + toolVersion
	main["Build-Jdk-Spec"] = strconv.Itoa(project.Java.Release)
	main["Implementation-Title"] = project.Name
	main["Implementation-Version"] = project.Version

	delete(main, "Main-Class")
	if project.Archive.Executable && project.MainClass != "" {
		main["Main-Class"] = project.MainClass
	}

	return &entities.JavaManifest{Main: main}
}

// Render serializes the manifest with CRLF line breaks and 72-byte line wrapping
func (s *ManifestService) Render(m *entities.JavaManifest) []byte {
	var buf bytes.Buffer

	writeSection(&buf, orderedKeys(m.Main), m.Main)

	names := make([]string, 0, len(m.NamedSections))
	for name := range m.NamedSections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		section := m.NamedSections[name]
		keys := make([]string, 0, len(section))
		for k := range section {
			if k != "Name" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)

		writeAttribute(&buf, "Name", name)
		writeSection(&buf, keys, section)
	}

	return buf.Bytes()
}

func orderedKeys(attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	seen := make(map[string]bool)
	for _, k := range leadingAttributes {
		if _, ok := attrs[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}

	rest := make([]string, 0, len(attrs))
	for k := range attrs {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func writeSection(buf *bytes.Buffer, keys []string, attrs map[string]string) {
	for _, k := range keys {
		writeAttribute(buf, k, attrs[k])
	}
	buf.WriteString("\r\n")
}

func writeAttribute(buf *bytes.Buffer, key, value string) {
	line := key + ": " + value
	limit := manifestLineLimit
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		buf.WriteString(line[:cut])
		buf.WriteString("\r\n ")
		line = line[cut:]
		limit = manifestLineLimit - 1
	}
	buf.WriteString(line)
	buf.WriteString("\r\n")
}

// Parse reads a MANIFEST.MF. Malformed lines are skipped with a warning.
func (s *ManifestService) Parse(path string, reader io.Reader) (*entities.JavaManifest, error) {
	var manifest entities.JavaManifest
	var sections []map[string]string

	currentSection := func() int {
		return len(sections) - 1
	}

	var lastKey string
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == "" {
			lastKey = ""
			continue
		}

		if line[0] == ' ' {
			if lastKey == "" {
				s.logger.Warn("manifest continuation with no previous key",
					interfaces.F(interfaces.FieldPath, path), interfaces.F("line", line))
				continue
			}
			sections[currentSection()][lastKey] += line[1:]
			continue
		}

		idx := strings.Index(line, ":")
		if idx == -1 {
			s.logger.Warn("unable to split manifest key-value pair",
				interfaces.F(interfaces.FieldPath, path), interfaces.F("line", line))
			continue
		}

		key := strings.TrimSpace(line[0:idx])
		value := strings.TrimLeft(line[idx+1:], " ")
		if key == "" {
			continue
		}

		if lastKey == "" {
			sections = append(sections, make(map[string]string))
		}

		sections[currentSection()][key] = value
		lastKey = key
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read java manifest: %w", err)
	}

	manifest.Main = map[string]string{}
	if len(sections) > 0 {
		manifest.Main = sections[0]
		if len(sections) > 1 {
			manifest.NamedSections = make(map[string]map[string]string)
			for i, section := range sections[1:] {
				name, ok := section["Name"]
				if !ok {
					s.logger.Warn("manifest section without a name", interfaces.F(interfaces.FieldPath, path))
					name = strconv.Itoa(i)
				} else {
					delete(section, "Name")
				}
				manifest.NamedSections[name] = section
			}
		}
	}

	return &manifest, nil
}
