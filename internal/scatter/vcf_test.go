package scatter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\n"

func sampleVCF() string {
	var b strings.Builder
	b.WriteString(header)
	for _, rec := range []string{
		"chr1\t10\t.\tA\tG",
		"chr1\t20\t.\tC\tT",
		"chr2\t5\t.\tG\tA",
		"chrUn\t1\t.\tT\tC",
		"chr3\t7\t.\tA\tC",
		"chr4\t9\t.\tA\tT",
	} {
		b.WriteString(rec + "\n")
	}
	return b.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	if strings.HasSuffix(path, ".gz") {
		f, err := os.Create(path)
		require.NoError(t, err)
		zw := gzip.NewWriter(f)
		_, err = zw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		require.NoError(t, f.Close())
		return
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	r, err := openText(path)
	require.NoError(t, err)
	defer r.Close()
	var b strings.Builder
	require.NoError(t, forEachLine(r.Reader, func(line []byte) error {
		b.Write(line)
		return nil
	}))
	return b.String()
}

func contigs(names ...string) []Interval {
	out := make([]Interval, len(names))
	for i, n := range names {
		out[i] = Interval{Contig: n, Start: -1, End: -1}
	}
	return out
}

func TestSplitThenMergeVCF_PreservesOrder(t *testing.T) {
	for _, ext := range []string{".vcf", ".vcf.gz"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "in"+ext)
			writeFile(t, src, sampleVCF())

			groups, err := PartitionIntervals(contigs("chr1", "chr2", "chr3", "chr4"), 3)
			require.NoError(t, err)

			dsts := []string{
				filepath.Join(dir, "in_0.scatter"+ext),
				filepath.Join(dir, "in_1.scatter"+ext),
				filepath.Join(dir, "in_2.scatter"+ext),
			}
			require.NoError(t, SplitVCF(context.Background(), src, groups, dsts))

			shard0 := readFile(t, dsts[0])
			assert.True(t, strings.HasPrefix(shard0, header))
			assert.Contains(t, shard0, "chr1\t20")
			assert.NotContains(t, shard0, "chr2")

			shard1 := readFile(t, dsts[1])
			assert.Contains(t, shard1, "chr2\t5")
			assert.Contains(t, shard1, "chrUn\t1", "unlisted contig follows its predecessor")

			merged := filepath.Join(dir, "merged"+ext)
			require.NoError(t, MergeVCF(context.Background(), merged, dsts))
			assert.Equal(t, sampleVCF(), readFile(t, merged))
		})
	}
}

func TestSplitVCF_MismatchedOutputs(t *testing.T) {
	err := SplitVCF(context.Background(), "unused", make([][]Interval, 2), []string{"a"})
	assert.ErrorIs(t, err, ErrInvalidShards)
}

func TestReadIntervals(t *testing.T) {
	dir := t.TempDir()
	bed := filepath.Join(dir, "mask.bed")
	writeFile(t, bed, "track name=mask\n# comment\nchr1\t0\t100\n\nchr2\t5\t50\nchrM\n")

	ivs, err := ReadIntervals(bed)
	require.NoError(t, err)
	require.Len(t, ivs, 3)
	assert.Equal(t, "chr1", ivs[0].Contig)
	assert.Equal(t, int64(0), ivs[0].Start)
	assert.Equal(t, int64(100), ivs[0].End)
	assert.Equal(t, int64(-1), ivs[2].Start)

	out := filepath.Join(dir, "out.bed")
	require.NoError(t, WriteIntervals(out, ivs[1:]))
	assert.Equal(t, "chr2\t5\t50\nchrM\n", readFile(t, out))
}

func TestReadIntervals_Invalid(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"short.bed":    "chr1\t5\n",
		"badstart.bed": "chr1\tx\t5\n",
		"reversed.bed": "chr1\t9\t5\n",
	} {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(dir, name)
			writeFile(t, p, content)
			_, err := ReadIntervals(p)
			assert.Error(t, err)
		})
	}
}
