package oracle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/callgrid/internal/output"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIsComplete_Single(t *testing.T) {
	dir := t.TempDir()
	o := New()

	missing := filepath.Join(dir, "missing.vcf")
	empty := filepath.Join(dir, "empty.vcf")
	full := filepath.Join(dir, "full.vcf")
	write(t, empty, "")
	write(t, full, "##fileformat=VCFv4.2\n")

	assert.False(t, o.IsComplete(output.NewSingle(missing)), "non-existent path")
	assert.False(t, o.IsComplete(output.NewSingle(empty)), "zero-byte path")
	assert.True(t, o.IsComplete(output.NewSingle(full)), "populated path")
}

func TestIsComplete_MultiIsPerEntryAnd(t *testing.T) {
	dir := t.TempDir()
	o := New()
	r1 := filepath.Join(dir, "lib_R1.fastq.gz")
	r2 := filepath.Join(dir, "lib_R2.fastq.gz")
	write(t, r1, "@read\n")

	paired := output.NewPaired(r1, r2)
	assert.False(t, o.IsComplete(paired))
	assert.Equal(t, []string{r2}, o.Missing(paired))

	write(t, r2, "@read\n")
	assert.True(t, o.IsComplete(paired))
	assert.Empty(t, o.Missing(paired))
}

func TestIsComplete_CommittedNeedsMarker(t *testing.T) {
	dir := t.TempDir()
	o := New()
	final := filepath.Join(dir, "x_SNPs.vcf.gz")
	write(t, final, "data")

	out := output.NewCommitted(final)
	assert.False(t, o.IsComplete(out))
	assert.Equal(t, []string{final + MarkerSuffix}, o.Missing(out))

	write(t, final+MarkerSuffix, "path: x\n")
	assert.True(t, o.IsComplete(out))
}

func TestIsComplete_MinSize(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "small.vcf")
	write(t, p, "abc")

	assert.True(t, New().IsComplete(output.NewSingle(p)))
	assert.False(t, New(WithMinSize(3)).IsComplete(output.NewSingle(p)))
}

func TestIsComplete_Directory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "cache")
	require.NoError(t, os.Mkdir(sub, 0o755))
	o := New(WithCacheSize(0))

	assert.False(t, o.IsComplete(output.NewSingle(sub)))
	write(t, filepath.Join(sub, "a"), "x")
	assert.True(t, o.IsComplete(output.NewSingle(sub)))
}

func TestForget(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.vcf")
	write(t, p, "x")
	o := New()

	require.True(t, o.IsComplete(output.NewSingle(p)))
	require.NoError(t, os.Remove(p))
	assert.True(t, o.IsComplete(output.NewSingle(p)), "cached positive result")

	o.Forget(p)
	assert.False(t, o.IsComplete(output.NewSingle(p)))
}

func TestEmptyOutputIsVacuouslyComplete(t *testing.T) {
	assert.True(t, New().IsComplete(output.NewMulti()))
}

func TestIsComplete_UnionChecksCommittedMembers(t *testing.T) {
	dir := t.TempDir()
	o := New()
	plain := filepath.Join(dir, "p_filtered.vcf.gz")
	deliverable := filepath.Join(dir, "p_RefSNPs.vcf.gz")
	write(t, plain, "x")
	write(t, deliverable, "x")
	group := output.Union(output.NewSingle(plain), output.NewCommitted(deliverable))

	assert.False(t, o.IsComplete(group), "committed member without a marker")
	assert.Equal(t, []string{deliverable + MarkerSuffix}, o.Missing(group))

	write(t, deliverable+MarkerSuffix, "sha256: abc\n")
	assert.True(t, o.IsComplete(group))
	assert.Empty(t, o.Missing(group))
}
