package scatter

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Interval is one entry of an ordered interval list. Start and End are
// -1 when the entry names a whole contig.
type Interval struct {
	Contig string
	Start  int64
	End    int64
	line   string
}

// String renders the interval in BED form, or the bare contig name.
func (iv Interval) String() string {
	if iv.line != "" {
		return iv.line
	}
	if iv.Start < 0 {
		return iv.Contig
	}
	return fmt.Sprintf("%s\t%d\t%d", iv.Contig, iv.Start, iv.End)
}

// ReadIntervals reads a contig list or BED file. Blank lines, comments and
// track/browser headers are skipped; the order of entries is preserved.
func ReadIntervals(path string) ([]Interval, error) {
	r, err := openText(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open interval list: %w", err)
	}
	defer r.Close()

	var out []Interval
	lineNo := 0
	err = forEachLine(r.Reader, func(raw []byte) error {
		lineNo++
		line := strings.TrimRight(string(raw), "\r\n")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "track") || strings.HasPrefix(trimmed, "browser") {
			return nil
		}
		iv, err := parseInterval(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		out = append(out, iv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseInterval(line string) (Interval, error) {
	fields := strings.Fields(line)
	iv := Interval{Contig: fields[0], Start: -1, End: -1, line: line}
	if len(fields) == 1 {
		return iv, nil
	}
	if len(fields) < 3 {
		return Interval{}, fmt.Errorf("interval %q needs contig, start and end", line)
	}
	start, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid start in %q: %w", line, err)
	}
	end, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid end in %q: %w", line, err)
	}
	if end < start {
		return Interval{}, fmt.Errorf("interval %q ends before it starts", line)
	}
	iv.Start, iv.End = start, end
	return iv, nil
}

// PartitionIntervals splits an ordered interval list into shards
// contiguous groups using the index-bucketed arithmetic.
func PartitionIntervals(ivs []Interval, shards int) ([][]Interval, error) {
	return SplitItems(ivs, shards)
}

// WriteIntervals writes one interval per line.
func WriteIntervals(path string, ivs []Interval) error {
	w, err := createText(path)
	if err != nil {
		return err
	}
	for _, iv := range ivs {
		if _, err := w.WriteString(iv.String() + "\n"); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// contigIndex maps every contig to the first group that holds it.
func contigIndex(groups [][]Interval) map[string]int {
	idx := make(map[string]int)
	for i, g := range groups {
		for _, iv := range g {
			if _, ok := idx[iv.Contig]; !ok {
				idx[iv.Contig] = i
			}
		}
	}
	return idx
}

func recordContig(line []byte) string {
	if i := bytes.IndexByte(line, '\t'); i >= 0 {
		return string(line[:i])
	}
	return string(bytes.TrimRight(line, "\r\n"))
}
