package output

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitExt(t *testing.T) {
	testCases := []struct {
		path, stem, ext string
	}{
		{"/d/x_raw.vcf.gz", "/d/x_raw", ".vcf.gz"},
		{"/d/x.g.vcf", "/d/x", ".g.vcf"},
		{"/d/x.g.vcf.gz", "/d/x", ".g.vcf.gz"},
		{"/d/x.hd5", "/d/x", ".hd5"},
		{"/d/lib.fastq.gz", "/d/lib", ".fastq.gz"},
		{"/d/noext", "/d/noext", ""},
		{"/d/.hidden", "/d/.hidden", ""},
		{"/d.v2/file", "/d.v2/file", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			stem, ext := SplitExt(tc.path)
			assert.Equal(t, tc.stem, stem)
			assert.Equal(t, tc.ext, ext)
		})
	}
}

func TestShardAndTempNaming(t *testing.T) {
	final := "/d/cohort_raw.vcf.gz"
	assert.Equal(t, "/d/cohort_raw_2.vcf.gz", ShardPath(final, 2))
	assert.Equal(t, "/d/cohort_raw_2.hd5", ShardPathExt(final, 2, ".hd5"))
	assert.Equal(t, "/d/cohort_raw_2.intervals.bed", ScatterPath(final, 2, "intervals", ".bed"))
	assert.Equal(t, "/d/cohort_raw.temp-abc.vcf.gz", TempPath(final, "abc"))
	assert.Equal(t, "/d/cohort_raw_3.temp-abc.vcf.gz", TempPath(ShardPath(final, 3), "abc"))
}

func TestShardPattern(t *testing.T) {
	final := "/d/cohort_SNPs.vcf.gz"
	pattern := ShardPattern(final, 1)

	match := func(name string) bool {
		ok, err := filepath.Match(pattern, name)
		assert.NoError(t, err)
		return ok
	}

	assert.True(t, match("/d/cohort_SNPs_1.vcf.gz"))
	assert.True(t, match("/d/cohort_SNPs_1.scatter.vcf.gz"))
	assert.True(t, match("/d/cohort_SNPs_1.temp-x.vcf.gz"))
	assert.False(t, match("/d/cohort_SNPs_10.vcf.gz"))
	assert.False(t, match("/d/cohort_SNPs_syn_1.vcf.gz"))
	assert.False(t, match("/d/cohort_SNPs.vcf.gz"))
}

func TestTempPattern(t *testing.T) {
	ok, err := filepath.Match(TempPattern("/d/a_raw.vcf.gz"), "/d/a_raw.temp-1234.vcf.gz")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, _ = filepath.Match(TempPattern("/d/a_raw.vcf.gz"), "/d/a_raw.vcf.gz")
	assert.False(t, ok)
}

func TestIsReadFile(t *testing.T) {
	assert.True(t, IsReadFile("x_R1.fastq.gz"))
	assert.True(t, IsReadFile("x.fq"))
	assert.False(t, IsReadFile("x.vcf.gz"))
}

func TestLiteralPattern(t *testing.T) {
	assert.Equal(t, `/d/odd\[1]_0.input.vcf`, LiteralPattern("/d/odd[1]_0.input.vcf"))
}

