// Package fs provides the filesystem seam used by the store.
//
// The package defines two key interfaces:
//
//   - [File]: an open store file with read/write/sync capabilities
//   - [FileSystem]: opens store files by path
//
// # Implementations
//
//   - [LocalFS]: production implementation using the standard os package
//   - [FaultyFS]: test utility for fault injection and handle accounting
//
// # Usage
//
// Production code uses fs.Default (which is [LocalFS]):
//
//	file, err := fs.Default.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
//
// Tests inject [FaultyFS] to simulate failures and to assert that every
// handle opened by an operation has been closed again:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.SetLimit(16) // fail after 16 bytes written
//	// ... run the operation ...
//	require.Zero(t, ffs.OpenHandles())
//
// Filesystem calls carry no context.Context. Local reads and writes are not
// interruptible at the syscall level.
package fs
