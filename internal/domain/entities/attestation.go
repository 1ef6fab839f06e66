package entities

import "time"

// Provenance describes how an archive was built, following the SLSA provenance layout
type Provenance struct {
	Subject   ProvenanceSubject
	Builder   string
	BuildType string
	Metadata  BuildMetadata
	Materials []Material
}

// ProvenanceSubject identifies what is being attested
type ProvenanceSubject struct {
	Name   string
	Size   int64
	Digest DigestSet
}

// DigestSet contains cryptographic digests of the subject
type DigestSet struct {
	SHA256 string
	SHA512 string
}

// Material is an input of the build
type Material struct {
	URI    string
	SHA256 string
}

// BuildMetadata contains metadata about the build process
type BuildMetadata struct {
	BuildID       string
	BuildStarted  time.Time
	BuildFinished time.Time
	SourceCommit  string
	SourceDirty   bool
	JavaRelease   int
	Reproducible  bool
}
