// Package storage provides storage implementations for job persistence.
//
// This package includes:
//   - GormStore: A GORM-based implementation supporting various databases
//
// The Store interface is defined in pkg/core and must be implemented
// by any custom storage backend.
//
// Most users should import the root package github.com/jobtrack/jobtrack
// which provides NewGormStore() to create storage instances.
package storage
