package output

import (
	"fmt"
	"path/filepath"
	"strings"
)

// compoundExts are multi-dot extensions kept intact when inserting shard or
// temp markers. Longer entries must come before their suffixes.
var compoundExts = []string{
	".g.vcf.gz",
	".vcf.gz.tbi",
	".fastq.gz",
	".fq.gz",
	".vcf.gz",
	".g.vcf",
	".bed.gz",
	".bam.bai",
	".tar.gz",
}

var readExts = []string{".fastq.gz", ".fq.gz", ".fastq", ".fq"}

// SplitExt splits a path into its stem and extension, keeping known
// compound extensions such as ".vcf.gz" whole.
func SplitExt(path string) (stem, ext string) {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, e := range compoundExts {
		if strings.HasSuffix(lower, e) && len(base) > len(e) {
			return path[:len(path)-len(e)], path[len(path)-len(e):]
		}
	}
	e := filepath.Ext(base)
	if e == base {
		e = ""
	}
	return path[:len(path)-len(e)], e
}

// IsReadFile reports whether path names a sequencing read file.
func IsReadFile(path string) bool {
	_, ext := SplitExt(path)
	ext = strings.ToLower(ext)
	for _, e := range readExts {
		if ext == e {
			return true
		}
	}
	return false
}

// ShardPath inserts `_<index>` before the extension of final.
func ShardPath(final string, index int) string {
	_, ext := SplitExt(final)
	return ShardPathExt(final, index, ext)
}

// ShardPathExt is ShardPath with the extension replaced by ext.
func ShardPathExt(final string, index int, ext string) string {
	stem, _ := SplitExt(final)
	return fmt.Sprintf("%s_%d%s", stem, index, ext)
}

// ScatterPath names the input partition file of shard index for a stage
// whose merged output is final. ext is the extension of the partitioned
// data, e.g. ".bed" or ".vcf.gz".
func ScatterPath(final string, index int, role, ext string) string {
	stem, _ := SplitExt(final)
	return fmt.Sprintf("%s_%d.%s%s", stem, index, role, ext)
}

// ShardPattern is the glob that matches every artifact of shard index,
// including its partition input and temp files. The dot after the index
// keeps shard 1 from matching shard 10.
func ShardPattern(final string, index int) string {
	stem, _ := SplitExt(final)
	return fmt.Sprintf("%s_%d.*", escapeGlob(stem), index)
}

// TempPath names the attempt-private temporary file for final. token must
// be unique per attempt.
func TempPath(final, token string) string {
	stem, ext := SplitExt(final)
	return fmt.Sprintf("%s.temp-%s%s", stem, token, ext)
}

// TempPattern matches every temporary file ever derived from final.
func TempPattern(final string) string {
	stem, _ := SplitExt(final)
	return escapeGlob(stem) + ".temp-*"
}

// PairedPaths derives the forward and reverse file names of a paired output.
func PairedPaths(path string) (string, string) {
	stem, ext := SplitExt(path)
	return stem + "_R1" + ext, stem + "_R2" + ext
}

// LiteralPattern is a glob matching exactly path.
func LiteralPattern(path string) string {
	return escapeGlob(path)
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `{`, `\{`)
	return r.Replace(s)
}
