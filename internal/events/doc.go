// Package events maintains the in-process cache of enriched superevents and
// the synchronization against the remote GraceDB listing.
package events
