package node

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"slices"
	"strconv"

	"github.com/vk/callgrid/internal/provenance"
)

// Identity hashes the parameter tuple and provenance namespace. Every field
// is length-prefixed so distinct tuples cannot collide by concatenation.
// The definition hash is left out: it does not affect output paths, and
// identity must agree with the paths a node declares.
func Identity(p Params, prov provenance.Provenance) string {
	h := sha256.New()
	writeField(h, "version", prov.Version)
	writeField(h, "pipeline", prov.Pipeline)
	writeField(h, "kind", p.Kind)
	writeField(h, "name", p.Name)
	writeField(h, "role", p.Role.String())
	writeField(h, "prefix", p.Prefix)
	writeField(h, "shard.count", strconv.Itoa(p.Shard.Count))
	writeField(h, "shard.index", strconv.Itoa(p.Shard.Index))
	writeField(h, "inputs", strconv.Itoa(len(p.Inputs)))
	for _, in := range p.Inputs {
		writeField(h, "input", in)
	}
	keys := make([]string, 0, len(p.Values))
	for k := range p.Values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		writeField(h, "value."+k, p.Values[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, name, value string) {
	fmt.Fprintf(h, "%d:%s%d:%s", len(name), name, len(value), value)
}
