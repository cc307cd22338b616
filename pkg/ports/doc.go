/*
Package ports defines the driven ports (interfaces) of the viewer.

These interfaces decouple the application service from storage backends so
the same history semantics hold in memory, on disk, in Redis or in SQLite.

# Key Interfaces

  - HistoryStore: persists previously loaded files by filename.

The reusable compliance suite for adapters lives in the tests subpackage.
*/
package ports
