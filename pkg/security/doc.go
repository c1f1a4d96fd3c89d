// Package security provides validation, sanitization, and limits for the jobtrack package.
//
// This package includes:
//   - Input validation for owners, keys, and webhook URLs
//   - Error message sanitization to prevent sensitive data leakage
//   - Clamping functions to enforce safe limits on reclaim attempts
//   - Security-related constants defining maximum sizes and counts
//
// Most users should import the root package github.com/jobtrack/jobtrack
// which re-exports these functions.
package security
