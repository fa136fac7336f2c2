// Package scatter holds the shard arithmetic and file-level split and merge
// operations behind scatter/gather stages.
//
// Two split policies exist. The index-bucketed split cuts a list of L items
// into N contiguous groups of floor(L/N) items, with the last group taking
// the remainder. The region split applies the same arithmetic to an ordered
// interval list, and gathers concatenate shard outputs in index order so
// that genomic coordinate order survives the round trip.
package scatter
