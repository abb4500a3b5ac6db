// Package fs abstracts the file system behind the persistence layers so
// fault injection tests can drive write, sync, close and rename failures
// through the same code paths production uses.
//
// LocalFS is the production implementation. FaultyFS wraps any FileSystem
// and injects failures on paths matching registered rules. WriteAtomic is
// the shared write-then-rename primitive used wherever a file must appear
// complete or not at all.
//
// Operations deliberately take no context: local file calls are not
// interruptible at the syscall level. Remote stores with real cancellation
// live in blobstore.
package fs
