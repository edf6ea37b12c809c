// Package tracestore implements §4.1's Trace Store: random-access,
// read-only access to a recorded CodeTracer artifact. The step stream is
// memory-mapped and addressed by fixed-width records (one mmap.ReaderAt per
// section, in the style of aclements-go-perf's perf.data section reader);
// the symbol table, type table, event stream, and value-snapshot arena are
// smaller, variable-width tables loaded whole into memory at Open.
//
// A Store is opened once per session and never mutated; every other
// component holds only a lookup-only reference to it (§3 Ownership).
package tracestore
