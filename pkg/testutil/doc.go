// Package testutil provides shared helpers for doarch tests.
//
// It covers the two things most tests need: building throwaway file
// trees (profile templates, fake home directories) and a small set of
// assertion helpers for cases where testify would be heavier than the
// check deserves.
//
// Guidelines:
//   - Define test data inline with CreateFile/CreateTree, not in
//     external fixture files
//   - Tests touching ownership or privileged paths should gate on
//     RequireRoot rather than failing on plain developer machines
package testutil
