package gateways

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
	"github.com/ochairo/cauldron/internal/domain/services"
	"github.com/ochairo/cauldron/internal/external-adapters/jar"
)

// JarInspector reads the manifest and layout of an existing archive
type JarInspector struct {
	manifests *services.ManifestService
	logger    interfaces.Logger
}

var _ gateways.ArchiveInspector = (*JarInspector)(nil)

// NewJarInspector creates an inspector
func NewJarInspector(manifests *services.ManifestService, logger interfaces.Logger) *JarInspector {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if manifests == nil {
		manifests = services.NewManifestService(logger)
	}
	return &JarInspector{manifests: manifests, logger: logger}
}

// Inspect reports whether the archive at path declares an entry point that it actually contains
func (i *JarInspector) Inspect(ctx context.Context, path string) (*entities.ArchiveInspection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unable to inspect %s: %w", path, err)
	}

	inspection := &entities.ArchiveInspection{Path: path, Size: info.Size()}
	names := make(map[string]int)

	err = jar.Traverse(path, func(file *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		inspection.Entries++
		names[file.Name]++
		if strings.HasSuffix(file.Name, ".class") {
			inspection.Classes++
		}
		if file.Name == entities.ManifestPath {
			rc, err := file.Open()
			if err != nil {
				return err
			}
			//nolint:errcheck // Defer close on read-only entry
			defer rc.Close()
			inspection.Manifest, err = i.manifests.Parse(file.Name, rc)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for name, count := range names {
		if count > 1 {
			inspection.DuplicateNames = append(inspection.DuplicateNames, name)
		}
	}
	sort.Strings(inspection.DuplicateNames)

	inspection.MainClass = inspection.Manifest.MainClass()
	if inspection.MainClass != "" {
		_, inspection.MainClassPresent = names[ClassEntryName(inspection.MainClass)]
	}
	inspection.Executable = inspection.MainClassPresent

	embedded, err := jar.EmbeddedPomProperties(path)
	if err != nil {
		// a malformed pom.properties does not make the archive unusable
		i.logger.Warn("unable to read embedded pom.properties",
			interfaces.F(interfaces.FieldPath, path), interfaces.Err(err))
	}
	inspection.Embedded = embedded

	return inspection, nil
}

// ClassEntryName maps a binary class name such as "sc2002.HMSApp" to its archive entry
func ClassEntryName(className string) string {
	return strings.ReplaceAll(strings.TrimSpace(className), ".", "/") + ".class"
}
