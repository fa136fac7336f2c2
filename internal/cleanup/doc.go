// Package cleanup implements the terminal pass that removes intermediate
// artifacts once the outputs they fed are in place.
//
// Patterns are derived from the node graph rather than listed by hand:
// every gathered stage contributes the shard pattern of each shard index,
// and every produced output contributes its temp pattern. Renaming a stage
// therefore renames its cleanup patterns with it.
package cleanup
