package gateways

import (
	"context"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// FetchedFile is a repository file available in the local cache
type FetchedFile struct {
	Path       string
	SHA1       string
	FromCache  bool
	Repository string
}

// MavenMetadata is the content of a module's maven-metadata.xml
type MavenMetadata struct {
	GroupID     string
	ArtifactID  string
	Latest      string
	Release     string
	Versions    []string
	LastUpdated string
}

// ArtifactRepository fetches files laid out as a Maven repository
type ArtifactRepository interface {
	// Fetch returns the local path of the file for coord, downloading it when needed
	Fetch(ctx context.Context, coord entities.Coordinate) (*FetchedFile, error)

	// FetchMetadata returns the version listing of a module
	FetchMetadata(ctx context.Context, group, artifact string) (*MavenMetadata, error)
}
