package jar

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// PomPropertiesGlob matches the pom.properties Maven writes into every jar
const PomPropertiesGlob = "/META-INF/maven/**/pom.properties"

// ParsePomProperties decodes a pom.properties file
func ParsePomProperties(path string, reader io.Reader) (*entities.PomProperties, error) {
	var props entities.PomProperties
	propMap := make(map[string]string)

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimLeft(line, " "), "#") {
			continue
		}

		idx := strings.IndexAny(line, "=:")
		if idx == -1 {
			return nil, fmt.Errorf("unable to split pom.properties key-value pairs: %q", line)
		}

		propMap[strings.TrimSpace(line[:idx])] = strings.TrimSpace(line[idx+1:])
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read pom.properties: %w", err)
	}

	if err := mapstructure.Decode(propMap, &props); err != nil {
		return nil, fmt.Errorf("unable to parse pom.properties: %w", err)
	}

	if props.Extra == nil {
		props.Extra = make(map[string]string)
	}
	props.Path = path

	return &props, nil
}

// EmbeddedPomProperties returns the pom.properties of every library packed into an archive
func EmbeddedPomProperties(archivePath string) ([]entities.PomProperties, error) {
	manifest, err := NewFileManifest(archivePath)
	if err != nil {
		return nil, err
	}

	paths := manifest.GlobMatch(PomPropertiesGlob)
	contents, err := Contents(archivePath, paths...)
	if err != nil {
		return nil, err
	}

	results := make([]entities.PomProperties, 0, len(paths))
	for _, p := range paths {
		props, err := ParsePomProperties(p, strings.NewReader(contents[p]))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		results = append(results, *props)
	}
	return results, nil
}
