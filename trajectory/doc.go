// Package trajectory describes the upstream per-agent trajectory API and
// turns it into a fixed set of accessors.
//
// Upstream recordings come from several dataset parsers whose agent objects
// do not share one shape: some expose a StateAtTimestamp accessor, others a
// generic State accessor, and the returned state values name their fields
// differently (x vs position_x, heading vs orientation, ...).
//
// Detect probes one representative agent once per parse and returns an
// Accessors value whose closures are reused for every agent and every frame.
// No type probing happens after detection.
//
// ResolveStatic determines each agent's class and footprint from an ordered
// list of fallbacks (side-table, adapter fields, defaults). Each step of the
// chain is a Step and the chain is combined with FirstOf, so the order stays
// visible in one place.
package trajectory
