// Package repository defines the persistence interfaces of the Cascade
// pipeline. Implementations live in the infrastructure layer (gorm-backed SQL
// and in-memory).
package repository

import "errors"

// Sentinel errors shared by all repository implementations.
var (
	// ErrJobNotFound is returned when no UploadJob exists for the given id.
	ErrJobNotFound = errors.New("upload job not found")
	// ErrStoreNotFound is returned when no Store exists for the given external id.
	ErrStoreNotFound = errors.New("store not found")
)

// PipelineRepository aggregates the per-aggregate repositories so fx can wire
// a single implementation that satisfies all of them.
type PipelineRepository interface {
	JobRepository
	RawRecordRepository
	DerivedRepository

	// Close releases any resources held by the repository.
	Close() error
}
