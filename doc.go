// Package metaspace supplies off-heap memory management for a managed
// runtime's class metadata. Note that Types and Functions exported by
// this package are thread safe unless stated otherwise.
//
// A Metaspace instance manages address space in three tiers. Arenas
// are large reserved regions whose committed prefix grows in granule
// steps; chunks are fixed or variable sized slices carved off an
// arena's committed prefix; blocks are the requester visible units
// carved off a chunk. Every class-loading context gets a Loader facade
// owning one allocation context for ordinary metadata and, when a
// compressed-pointer space is enabled, a second one for class
// metadata. Chunks released by dying loaders park in a global pool and
// are recycled without ever being split across size classes.
//
// Capacity is bounded by a single ceiling recomputed only after a full
// collection. Metaspace instances can be created with following
// parameters:
//
//	capacity       : initial ceiling on committed memory, in bytes.
//	maxcapacity    : hard limit on committed memory, in bytes.
//	classcapacity  : capacity of the compressed-pointer space.
//	arenasize      : reservation size of a single arena.
//	commitgranule  : granularity of commits within an arena.
//	expansion.min  : minimum step while growing the ceiling.
//	expansion.max  : maximum step while growing the ceiling.
//	freeratio.min  : grow ceiling when free fraction drops below this.
//	freeratio.max  : shrink ceiling when free fraction exceeds this.
//	smallchunks    : small chunks consumed before stepping to medium.
package metaspace
