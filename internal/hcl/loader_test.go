package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/callgrid/internal/config"
)

const tinyPipeline = `
pipeline "tiny" {
  version = "1.0"
}

source "reads" {
  path       = "/data/${sample}.vcf"
  per_sample = true
}

stage "merge" {
  depends_on = ["source.reads"]
  output     = "${run.prefix}.vcf.gz"
  command    = "merge ${join(" ", inputs)} > ${output}"

  params {
    min_qual = 20
  }

  scatter {
    policy = "items"
    shards = 2
    gather = "lines"
  }
}

stage "split" {
  depends_on = ["stage.merge"]
  output     = "${run.prefix}_split.vcf.gz"
  command    = "cp ${input} ${output}"

  scatter {
    policy = "vcf"
  }
}
`

func TestLoadDefault(t *testing.T) {
	p, err := NewLoader().LoadDefault(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "callset", p.Name)
	assert.Equal(t, "0.3", p.Version)
	assert.NotEmpty(t, p.Hash)
	assert.Len(t, p.Sources, 2)
	assert.Len(t, p.Stages, 11)

	combine, ok := p.Stage("combine_gvcfs")
	require.True(t, ok)
	assert.True(t, combine.Scratch)
	assert.Equal(t, config.Resources{MemoryMB: 16000, CPUs: 1, Queue: "nbi-medium"}, combine.Resources)
	require.NotNil(t, combine.Scatter)
	assert.Equal(t, config.PolicyItems, combine.Scatter.Policy)
	assert.Equal(t, config.GatherNone, combine.Scatter.Gather)
	assert.NotNil(t, combine.Scatter.Shards)

	genotype, _ := p.Stage("genotype_gvcf")
	assert.Equal(t, []string{"source.contigs", "stage.combine_gvcfs"}, genotype.DependsOn)
	assert.Nil(t, genotype.Scatter.Shards, "omitted shard count falls back to the run's")

	snps, _ := p.Stage("get_snps")
	assert.True(t, snps.Committed)

	filter, _ := p.Stage("vcftools_filter")
	assert.Len(t, filter.Params, 3)

	cleanup, ok := p.Cleanup("cleanup_callset")
	require.True(t, ok)
	assert.Equal(t, "group.callset", cleanup.Target)
}

func TestParse_Tiny(t *testing.T) {
	p, err := NewLoader().Parse(context.Background(), File{Name: "tiny.hcl", Src: []byte(tinyPipeline)})
	require.NoError(t, err)

	merge, _ := p.Stage("merge")
	assert.Equal(t, "lines", merge.Scatter.Gather)
	assert.Equal(t, 1, merge.Resources.CPUs, "cpus default to one")
	assert.Contains(t, merge.Params, "min_qual")

	split, _ := p.Stage("split")
	assert.Equal(t, "vcf", split.Scatter.Gather, "non-item policies gather as vcf by default")
	assert.Equal(t, "tiny.hcl", split.Range.Filename)
}

func TestParse_HashTracksSource(t *testing.T) {
	l := NewLoader()
	a, err := l.Parse(context.Background(), File{Name: "tiny.hcl", Src: []byte(tinyPipeline)})
	require.NoError(t, err)
	b, err := l.Parse(context.Background(), File{Name: "tiny.hcl", Src: []byte(tinyPipeline + "\n# edited\n")})
	require.NoError(t, err)
	assert.NotEqual(t, a.Hash, b.Hash)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		msg  string
	}{
		{name: "syntax", src: `pipeline "x" {`, msg: "failed to parse"},
		{name: "unknown block", src: `step "x" "y" {}`, msg: "failed to decode"},
		{name: "no pipeline", src: `group "g" { members = ["stage.a"] }`, msg: "exactly one pipeline block"},
		{name: "two pipelines", src: `
pipeline "a" { version = "1" }
pipeline "b" { version = "1" }`, msg: "found 2"},
		{name: "dangling reference", src: `
pipeline "a" { version = "1" }
group "g" { members = ["stage.missing"] }`, msg: `"stage.missing" is not declared`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLoader().Parse(context.Background(), File{Name: "bad.hcl", Src: []byte(tc.src)})
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalidPipeline)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(`pipeline "split" { version = "2" }`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.hcl"), []byte(`
source "vcf" { path = "/in.vcf" }
stage "copy" {
  depends_on = ["source.vcf"]
  output     = "out.vcf"
  command    = "cp ${input} ${output}"
}`), 0o644))

	p, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "split", p.Name)
	assert.Len(t, p.Stages, 1)

	_, err = NewLoader().Load(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, "no .hcl files")
}
