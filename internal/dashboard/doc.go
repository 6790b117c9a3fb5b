// Package dashboard maintains the in-memory device cache that backs every
// read surface of the service.
//
// A single poll loop owns all writes:
//
//	  +----------+   fetch    +--------+   parse    +--------+
//	  |  Cache   | ---------> | client | ---------> | merge  |
//	  |  loop    |            +--------+            +--------+
//	  +----------+                                       |
//	       ^                                             v
//	  500ms tick                              entries + change events
//
// Each cycle fetches the full live-context snapshot, parses it, keeps only
// the entities the configured categories care about, and merges the result
// into the entry store with change detection. A failed poll leaves the
// store untouched: the previous snapshot stays authoritative until a poll
// succeeds again, so readers always see the best data available.
//
// Reads come from any number of goroutines; the store is guarded by a
// read-write mutex and hands out copies.
package dashboard
