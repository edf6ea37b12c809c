// Package corekit defines the data model shared by every component of the
// CodeTracer replay core: the Tick time coordinate, the Step and Function
// Instance records read from the Trace Store, the Loop shape reconstructed
// by the Flow Reconstructor, the Event and Value variant trees, and the
// Position that the Dispatcher is the sole mutator of.
//
// Types in this package are immutable once constructed (mirroring the
// "Event... once created... is expected to be immutable" discipline of
// github.com/peterbourgon/trc's Event), and safe for concurrent read access
// by every component, which only ever holds a lookup-only back-reference to
// data owned by the Trace Store (§3 Ownership).
package corekit
