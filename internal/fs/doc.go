// Package fs provides a small filesystem abstraction used by the persistence
// layer, plus a fault-injecting implementation for tests.
//
// Production code uses fs.Default (which is [LocalFS]):
//
//	f, err := fs.Default.OpenFile(path, os.O_RDONLY, 0)
//
// Tests inject [FaultyFS] to simulate failing writes, syncs or renames:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp-", fs.Fault{FailAfterBytes: 16})
//
// Operations take no context.Context. Local file operations cannot be
// interrupted at the syscall level; slow remote storage goes through
// blobstore, which does take a context.
package fs
