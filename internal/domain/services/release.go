package services

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// OutputKind identifies one file of a release set
type OutputKind string

// Release output kinds
const (
	OutputArchive    OutputKind = "archive"
	OutputSHA256     OutputKind = "sha256"
	OutputSHA512     OutputKind = "sha512"
	OutputSBOM       OutputKind = "sbom"
	OutputProvenance OutputKind = "provenance"
	OutputSignature  OutputKind = "signature"
	OutputJavadoc    OutputKind = "javadoc"
)

// ReleaseStatus represents the readiness status of a build output directory
type ReleaseStatus string

// Release validation statuses
const (
	StatusReady          ReleaseStatus = "ready"
	StatusNoArchive      ReleaseStatus = "no_archive"
	StatusMissingOutputs ReleaseStatus = "missing_outputs"
	StatusUnexpectedJars ReleaseStatus = "unexpected_jars"
)

// ReleaseValidation contains the validation result for a release set
type ReleaseValidation struct {
	Status          ReleaseStatus
	Expected        map[OutputKind]string
	Missing         []OutputKind
	UnexpectedFiles []string
}

// IsReady returns true if every expected file is present
func (rv *ReleaseValidation) IsReady() bool {
	return rv.Status == StatusReady
}

// ErrorMessage returns a human-readable error message if not ready
func (rv *ReleaseValidation) ErrorMessage() string {
	switch rv.Status {
	case StatusReady:
		return ""
	case StatusNoArchive:
		return fmt.Sprintf("archive %s not found", rv.Expected[OutputArchive])
	case StatusMissingOutputs:
		names := make([]string, 0, len(rv.Missing))
		for _, kind := range rv.Missing {
			names = append(names, rv.Expected[kind])
		}
		return fmt.Sprintf("missing release files: %s", strings.Join(names, ", "))
	case StatusUnexpectedJars:
		return fmt.Sprintf("unexpected archives in output directory: %s", strings.Join(rv.UnexpectedFiles, ", "))
	default:
		return "unknown status"
	}
}

// ReleaseService checks that a build produced the complete set of release files
type ReleaseService struct{}

// NewReleaseService creates a new release service
func NewReleaseService() *ReleaseService {
	return &ReleaseService{}
}

// ExpectedOutputs maps each output the project configuration asks for to its file name
func (s *ReleaseService) ExpectedOutputs(project *entities.Project) map[OutputKind]string {
	archive := project.ArchiveFileName()
	expected := map[OutputKind]string{OutputArchive: archive}

	if project.Release.Any() {
		expected[OutputSHA256] = archive + ".sha256"
		expected[OutputSHA512] = archive + ".sha512"
	}
	if project.Release.SBOM {
		expected[OutputSBOM] = archive + ".sbom.json"
	}
	if project.Release.Provenance {
		expected[OutputProvenance] = archive + ".provenance.json"
	}
	if project.Signing.Enabled {
		expected[OutputSignature] = archive + ".asc"
	}
	if project.Docs.Enabled && project.Docs.Archive {
		expected[OutputJavadoc] = JavadocArchiveName(project)
	}
	return expected
}

// JavadocArchiveName returns the file name of the packaged API documentation
func JavadocArchiveName(project *entities.Project) string {
	return fmt.Sprintf("%s-%s-javadoc.jar", project.Name, project.Version)
}

// ValidateRelease compares the files of an output directory against the expected release set.
// Other jars in the directory usually mean a stale build with a different version.
func (s *ReleaseService) ValidateRelease(project *entities.Project, paths []string) *ReleaseValidation {
	validation := &ReleaseValidation{Expected: s.ExpectedOutputs(project)}

	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[filepath.Base(p)] = true
	}

	expectedNames := make(map[string]bool, len(validation.Expected))
	for kind, name := range validation.Expected {
		expectedNames[name] = true
		if !present[name] {
			validation.Missing = append(validation.Missing, kind)
		}
	}
	sort.Slice(validation.Missing, func(i, j int) bool {
		return validation.Missing[i] < validation.Missing[j]
	})

	for name := range present {
		if strings.HasSuffix(name, ".jar") && !expectedNames[name] {
			validation.UnexpectedFiles = append(validation.UnexpectedFiles, name)
		}
	}
	sort.Strings(validation.UnexpectedFiles)

	switch {
	case !present[validation.Expected[OutputArchive]]:
		validation.Status = StatusNoArchive
	case len(validation.Missing) > 0:
		validation.Status = StatusMissingOutputs
	case len(validation.UnexpectedFiles) > 0:
		validation.Status = StatusUnexpectedJars
	default:
		validation.Status = StatusReady
	}

	return validation
}
