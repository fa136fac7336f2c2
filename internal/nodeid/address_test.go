// internal/nodeid/address_test.go
package nodeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_String(t *testing.T) {
	testCases := []struct {
		name        string
		addr        Address
		expectedStr string
	}{
		{
			name:        "stage",
			addr:        New("stage", "filter"),
			expectedStr: "stage.filter",
		},
		{
			name:        "indexed source",
			addr:        NewIndexed("source", "gvcf", 3),
			expectedStr: "source.gvcf[3]",
		},
		{
			name:        "shard of a stage",
			addr:        New("stage", "genotype_gvcf").Shard(2),
			expectedStr: "stage.genotype_gvcf.shard[2]",
		},
		{
			name:        "scatter child",
			addr:        New("stage", "genotype_gvcf").Child("scatter"),
			expectedStr: "stage.genotype_gvcf.scatter",
		},
		{
			name:        "zero address",
			addr:        Address{},
			expectedStr: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedStr, tc.addr.String())
		})
	}
}

func TestAddress_RoundTrip(t *testing.T) {
	testIDs := []string{
		"stage.filter",
		"stage.genotype_gvcf.shard[4]",
		"source.gvcf[0]",
		"cleanup.cleanup_callset",
	}

	for _, id := range testIDs {
		t.Run(id, func(t *testing.T) {
			addr, err := Parse(id)
			require.NoError(t, err)
			assert.Equal(t, id, addr.String())

			again, err := Parse(addr.String())
			require.NoError(t, err)
			assert.True(t, addr.Equal(again))
		})
	}
}

func TestAddress_Accessors(t *testing.T) {
	shard := MustParse("stage.snps.shard[7]")
	assert.Equal(t, "stage", shard.Kind())
	assert.Equal(t, "snps", shard.Name())
	assert.Equal(t, 7, shard.ShardIndex())

	plain := MustParse("group.callset")
	assert.Equal(t, -1, plain.ShardIndex())
	assert.False(t, plain.IsZero())
	assert.True(t, Address{}.IsZero())
}

func TestAddress_ChildDoesNotAlias(t *testing.T) {
	base := New("stage", "raw")
	a := base.Shard(0)
	b := base.Shard(1)

	assert.Equal(t, "stage.raw", base.String())
	assert.Equal(t, "stage.raw.shard[0]", a.String())
	assert.Equal(t, "stage.raw.shard[1]", b.String())
	assert.False(t, a.Equal(b))
}
