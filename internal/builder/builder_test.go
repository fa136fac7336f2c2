package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/callgrid/internal/config"
	hclload "github.com/vk/callgrid/internal/hcl"
	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/oracle"
	"github.com/vk/callgrid/internal/output"
)

type fixture struct {
	base, scratch, logs string
	req                 Request
}

func newFixture(t *testing.T, samples int) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		base:    filepath.Join(root, "base"),
		scratch: filepath.Join(root, "scratch"),
		logs:    filepath.Join(root, "logs"),
	}
	contigs := filepath.Join(root, "contigs.txt")
	require.NoError(t, os.WriteFile(contigs, []byte("chr1\nchr2\nchr3\n"), 0o644))

	names := make([]string, samples)
	for i := range names {
		names[i] = fmt.Sprintf("LIB%02d", i)
	}
	f.req = Request{
		Samples:    names,
		Prefix:     "run1",
		Shards:     10,
		BaseDir:    f.base,
		ScratchDir: f.scratch,
		LogDir:     f.logs,
		Ref: Reference{
			Genome:  "/ref/genome.fa",
			Mask:    "/ref/mask.bed",
			Contigs: contigs,
		},
	}
	return f
}

func (f *fixture) out(root, rel string) string {
	return filepath.Join(root, "0.3", "callset", "run1", rel)
}

func loadCallset(t *testing.T) *config.Pipeline {
	t.Helper()
	p, err := hclload.NewLoader().LoadDefault(context.Background())
	require.NoError(t, err)
	return p
}

func parse(t *testing.T, src string) *config.Pipeline {
	t.Helper()
	p, err := hclload.NewLoader().Parse(context.Background(), hclload.File{Name: "test.hcl", Src: []byte(src)})
	require.NoError(t, err)
	return p
}

func lookup(t *testing.T, res *Result, id string) *node.Node {
	t.Helper()
	n, ok := res.Nodes[id]
	require.True(t, ok, "node %s not built", id)
	return n
}

func TestBuild_Callset(t *testing.T) {
	f := newFixture(t, 12)
	res, err := New(loadCallset(t), oracle.New()).Build(context.Background(), f.req)
	require.NoError(t, err)

	require.Len(t, res.Targets, 1)
	assert.Equal(t, "cleanup.cleanup_callset", res.Targets[0].ID(), "the cleanup is the only sink")
	assert.Equal(t, "0.3/callset", res.Provenance.String())

	gvcfs, ok := res.Lookup("source.gvcf")
	require.True(t, ok)
	require.Len(t, gvcfs, 12)
	assert.Equal(t, []string{filepath.Join(f.base, "0.3", "Library", "LIB03", "LIB03.g.vcf")}, gvcfs[3].Output().Paths())

	t.Run("items scatter without gather", func(t *testing.T) {
		combine := lookup(t, res, "stage.combine_gvcfs")
		assert.Equal(t, node.RoleGroup, combine.Role())
		assert.Len(t, combine.Upstream(), 5, "the stage sets five shards")
		assert.Equal(t, f.out(f.scratch, "combined/run1_4.g.vcf"), combine.Output().Paths()[4])

		last := lookup(t, res, "stage.combine_gvcfs.shard[4]")
		assert.Equal(t, 8, last.Params().Shard.Range.Start)
		assert.Equal(t, 12, last.Params().Shard.Range.End, "the last shard absorbs the remainder")
		assert.Len(t, last.Params().Inputs, 4)
		assert.Len(t, last.Upstream(), 4, "a shard depends only on the sources it reads")
		_, hasScatter := res.Nodes["stage.combine_gvcfs.scatter"]
		assert.False(t, hasScatter, "item scatters need no partition files")
	})

	t.Run("region scatter clamps to the contig count", func(t *testing.T) {
		_, ok := res.Nodes["stage.genotype_gvcf.shard[2]"]
		assert.True(t, ok)
		_, ok = res.Nodes["stage.genotype_gvcf.shard[3]"]
		assert.False(t, ok, "three contigs allow three shards")

		gather := lookup(t, res, "stage.genotype_gvcf")
		assert.Equal(t, node.RoleGather, gather.Role())
		assert.Equal(t, "vcf", gather.Params().Values["gather"])
		assert.Equal(t, []string{f.out(f.base, "run1_raw.vcf.gz")}, gather.Output().Paths())

		shard := lookup(t, res, "stage.genotype_gvcf.shard[1]")
		cmd := shard.Params().Values["command"]
		assert.Contains(t, cmd, "-L "+f.out(f.base, "run1_raw_1.intervals.list"))
		assert.Contains(t, cmd, "--variant "+f.out(f.scratch, "combined/run1_0.g.vcf"))
		assert.Contains(t, cmd, "-Xmx8000m")
		assert.Contains(t, cmd, "-O "+f.out(f.base, "run1_raw_1.vcf.gz"))
	})

	t.Run("committed and manifest stages", func(t *testing.T) {
		snps := lookup(t, res, "stage.get_snps")
		assert.Equal(t, output.Committed, snps.Output().Kind())
		assert.Equal(t, output.Single, lookup(t, res, "stage.get_indels").Output().Kind())

		hdf5 := lookup(t, res, "stage.hdf5_raw.shard[0]")
		assert.Equal(t, f.out(f.base, "run1_raw_hd5_0.hd5"), hdf5.Output().Primary())
		assert.Equal(t, "manifest", lookup(t, res, "stage.hdf5_raw").Params().Values["gather"])

		shard := lookup(t, res, "stage.vcftools_filter.shard[0]")
		assert.Equal(t, []string{f.out(f.base, "run1_filtered_0.input.vcf")}, shard.Params().Inputs)
		assert.Contains(t, shard.Params().Values["command"], "FMT/GQ < 30")
	})

	t.Run("group collects member outputs", func(t *testing.T) {
		group := lookup(t, res, "group.callset")
		assert.Equal(t, node.RoleGroup, group.Role())
		assert.Len(t, group.Upstream(), 7)
		assert.Contains(t, group.Output().Paths(), f.out(f.base, "run1_SNPs_syn.vcf.gz"))
	})
}

func TestBuild_WorkUsesAttemptTempPaths(t *testing.T) {
	f := newFixture(t, 3)
	res, err := New(loadCallset(t), oracle.New()).Build(context.Background(), f.req)
	require.NoError(t, err)

	shard := lookup(t, res, "stage.genotype_gvcf.shard[0]")
	u, err := shard.BuildWork(context.Background(), "abc")
	require.NoError(t, err)

	temp := output.TempPath(shard.Output().Primary(), "abc")
	assert.Equal(t, []string{temp}, u.Outputs)
	assert.Contains(t, u.Command, "-O "+temp)
	assert.NotContains(t, u.Command, "-O "+shard.Output().Primary()+" ")
	assert.Equal(t, 8000, u.Resources.MemoryMB)
	assert.Equal(t, "nbi-long", u.Resources.Queue)
	assert.Equal(t, filepath.Join(f.logs, "run1", "stage.genotype_gvcf.shard_0.abc.log"), u.LogPath)
	assert.DirExists(t, filepath.Dir(temp), "output directories are created for the attempt")
}

func TestBuild_ScatterWritesIntervalLists(t *testing.T) {
	f := newFixture(t, 3)
	f.req.Shards = 2
	res, err := New(loadCallset(t), oracle.New()).Build(context.Background(), f.req)
	require.NoError(t, err)

	scat := lookup(t, res, "stage.genotype_gvcf.scatter")
	assert.Equal(t, node.RoleScatter, scat.Role())
	u, err := scat.BuildWork(context.Background(), "tok")
	require.NoError(t, err)
	require.False(t, u.IsExternal())
	require.NoError(t, u.Run(context.Background()))

	require.Len(t, u.Outputs, 2)
	first, err := os.ReadFile(u.Outputs[0])
	require.NoError(t, err)
	second, err := os.ReadFile(u.Outputs[1])
	require.NoError(t, err)
	assert.Equal(t, "chr1\n", string(first))
	assert.Equal(t, "chr2\nchr3\n", string(second))
}

func TestBuild_IdentityIsStable(t *testing.T) {
	f := newFixture(t, 4)
	p := loadCallset(t)
	a, err := New(p, oracle.New()).Build(context.Background(), f.req)
	require.NoError(t, err)
	b, err := New(p, oracle.New()).Build(context.Background(), f.req)
	require.NoError(t, err)

	for id, n := range a.Nodes {
		assert.Equal(t, n.Identity(), b.Nodes[id].Identity(), id)
	}

	f.req.Ref.Mask = "/ref/other.bed"
	c, err := New(p, oracle.New()).Build(context.Background(), f.req)
	require.NoError(t, err)
	const id = "stage.vcftools_filter.shard[0]"
	assert.NotEqual(t, a.Nodes[id].Identity(), c.Nodes[id].Identity(),
		"the rendered command is part of a node's identity")
}

func TestBuild_Targets(t *testing.T) {
	f := newFixture(t, 2)
	f.req.Targets = []string{"stage.genotype_gvcf"}
	res, err := New(loadCallset(t), oracle.New()).Build(context.Background(), f.req)
	require.NoError(t, err)

	require.Len(t, res.Targets, 1)
	assert.Equal(t, "stage.genotype_gvcf", res.Targets[0].ID())
	for id := range res.Nodes {
		assert.False(t, strings.HasPrefix(id, "stage.get_"), "downstream stage %s should not be built", id)
	}
}

func TestBuild_Errors(t *testing.T) {
	p := loadCallset(t)
	tests := []struct {
		name   string
		mutate func(r *Request)
		want   string
		is     error
	}{
		{"no samples", func(r *Request) { r.Samples = nil }, "no samples", nil},
		{"duplicate sample", func(r *Request) { r.Samples = []string{"A", "A"} }, `duplicate sample "A"`, nil},
		{"relative base", func(r *Request) { r.BaseDir = "rel" }, "absolute path", nil},
		{"zero shards", func(r *Request) { r.Shards = 0 }, "shard count 0", nil},
		{"no contigs", func(r *Request) { r.Ref.Contigs = "" }, "failed to build source.contigs", nil},
		{"unknown target", func(r *Request) { r.Targets = []string{"stage.nope"} }, "stage.nope", config.ErrUnknownReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2)
			tt.mutate(&f.req)
			_, err := New(p, oracle.New()).Build(context.Background(), f.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestBuild_RejectsUnboundExpressions(t *testing.T) {
	p := parse(t, `
pipeline "tiny" {
  version = "1.0"
}

source "reads" {
  path = "/data/reads.vcf"
}

stage "copy" {
  depends_on = ["source.reads"]
  output     = "${run.prefix}.vcf"
  command    = "cp ${upstream.raw} ${output} ${params.depth} ${trim(input)}"
}
`)
	f := newFixture(t, 1)
	_, err := New(p, oracle.New()).Build(context.Background(), f.req)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidPipeline)
	assert.Contains(t, err.Error(), `"upstream.raw" is not one of [reads]`)
	assert.Contains(t, err.Error(), `"params.depth" is not one of []`)
	assert.Contains(t, err.Error(), `unknown function "trim"`)
}

func TestBuild_PairedStage(t *testing.T) {
	p := parse(t, `
pipeline "tiny" {
  version = "1.0"
}

source "reads" {
  path       = "/data/${sample}.fastq.gz"
  per_sample = true
}

stage "trim" {
  depends_on = ["source.reads"]
  output     = "${run.prefix}_trimmed.fastq.gz"
  paired     = true
  command    = "trim ${join(" ", inputs)} -1 ${outputs[0]} -2 ${outputs[1]}"
}
`)
	f := newFixture(t, 2)
	res, err := New(p, oracle.New()).Build(context.Background(), f.req)
	require.NoError(t, err)

	trim := lookup(t, res, "stage.trim")
	root := filepath.Join(f.base, "1.0", "tiny", "run1")
	assert.Equal(t, output.Paired, trim.Output().Kind())
	assert.Equal(t, []string{
		filepath.Join(root, "run1_trimmed_R1.fastq.gz"),
		filepath.Join(root, "run1_trimmed_R2.fastq.gz"),
	}, trim.Output().Paths())
	assert.Equal(t, "trim /data/LIB00.fastq.gz /data/LIB01.fastq.gz -1 "+
		filepath.Join(root, "run1_trimmed_R1.fastq.gz")+" -2 "+
		filepath.Join(root, "run1_trimmed_R2.fastq.gz"), trim.Params().Values["command"])
}

func TestBuild_SingleEndReadStage(t *testing.T) {
	p := parse(t, `
pipeline "tiny" {
  version = "1.0"
}

source "reads" {
  path       = "/data/${sample}.fastq.gz"
  per_sample = true
}

stage "trim" {
  depends_on = ["source.reads"]
  output     = "${run.prefix}_trimmed.fq.gz"
  command    = "trim ${join(" ", inputs)} -o ${output}"
}
`)
	f := newFixture(t, 1)
	res, err := New(p, oracle.New()).Build(context.Background(), f.req)
	require.NoError(t, err)

	trim := lookup(t, res, "stage.trim")
	assert.Equal(t, output.Single, trim.Output().Kind())
	assert.Equal(t, []string{filepath.Join(f.base, "1.0", "tiny", "run1", "run1_trimmed.fq.gz")}, trim.Output().Paths())
}
