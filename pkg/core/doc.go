// Package core provides the fundamental types and interfaces for the jobtrack package.
//
// This package contains:
//   - Job, JobError, Retry, and Event data models with GORM annotations
//   - Store interface defining the persistence contract
//   - EventMask for selecting which lifecycle transitions post webhooks
//   - Error types for duplicate detection and session misuse
//
// Most users should import the root package github.com/jobtrack/jobtrack
// instead of this package directly.
package core
