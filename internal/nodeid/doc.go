// internal/nodeid/doc.go

/*
Package nodeid provides a structured representation for task node
addresses.

An address is a dot-separated sequence of segments where any segment may
carry a shard index, e.g. `stage.genotype_gvcf.shard[2]` or
`source.gvcf[0]`. The first segment names the block kind that declared the
node (stage, source, group, cleanup) and the second its name; further
segments name the role a derived node plays inside a scatter stage.
*/
package nodeid
