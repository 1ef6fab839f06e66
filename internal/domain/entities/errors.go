package entities

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across layers
var (
	ErrTestsFailed       = errors.New("tests failed")
	ErrNoMainClass       = errors.New("main class is not configured for an executable archive")
	ErrLockfileMismatch  = errors.New("resolved dependencies do not match lockfile")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrOffline           = errors.New("artifact is not cached and offline mode is enabled")
	ErrArtifactNotFound  = errors.New("artifact not found in any repository")
	ErrToolchainNotFound = errors.New("java toolchain not found")
)

// Stage names a step of the build pipeline
type Stage string

// Pipeline stages in execution order
const (
	StageLoad     Stage = "load"
	StageResolve  Stage = "resolve"
	StageCompile  Stage = "compile"
	StageTest     Stage = "test"
	StageAssemble Stage = "assemble"
	StageDocs     Stage = "docs"
	StageRelease  Stage = "release"
)

// StageError records which stage of the pipeline failed
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
