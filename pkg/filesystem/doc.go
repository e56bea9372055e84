// Package filesystem provides the filesystem abstraction for doarch.
//
// This package contains the FS interface and its implementations:
// the standard OS filesystem for real runs and an afero-backed one for
// tests, plus the recursive copy and chown helpers the deployment
// routines are built on.
package filesystem
