// Package twolist implements a bounded, in-memory associative container
// based on the Linux page-cache two-list (active/inactive) design.
//
// # Design
//
// Entries live in one of two doubly-linked lists: Active (hot, promoted
// on access) and Inactive (cold, holds recently-demoted entries before
// they fall out of the cache entirely). Insertion always targets the
// Active head; when Active is full, its oldest unprotected entry is
// demoted to the Inactive head rather than evicted outright, and only
// the oldest unprotected Inactive entry is actually dropped (when
// Inactive is full and wholly protected, the Active entry picked for
// demotion is dropped instead, without the eviction callback). This
// demote-before-evict cascade gives entries that were recently hot a
// second chance before they are reclaimed.
//
// twolist is intended for bounded operational metadata (method
// descriptors, lock handles) rather than application data — it stores
// whatever value type the caller chooses and never touches Redis or
// any other backend.
//
// # Protected entries
//
// An optional eviction predicate can mark individual values as
// ineligible for eviction (but never for demotion-skipping during
// promotion bookkeeping). Both the demotion walk and the eviction walk
// skip protected nodes in order, starting from the tail; if every
// candidate is protected, Put returns ErrEvictionProtected and the
// newcomer is rejected rather than silently dropped.
//
// All operations hold a single mutex; Get takes it too because a hit
// promotes the entry and may cascade a demotion.
package twolist
