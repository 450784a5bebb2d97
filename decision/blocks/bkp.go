package blocks

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// bkpLookahead is how many lines after a block name may hold its record type.
const bkpLookahead = 4

// ParseBackupRecordTypes scans a simulator backup (.bkp) text for the
// record type of each named block. A block name on its own line is followed
// within a few lines by its record type. Blocks that are not found map to "".
func ParseBackupRecordTypes(r io.Reader, names []string) (map[string]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read backup file: %w", err)
	}

	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = findRecordType(lines, name)
	}
	return out, nil
}

func findRecordType(lines []string, name string) string {
	for i, l := range lines {
		if l != name {
			continue
		}
		end := i + 1 + bkpLookahead
		if end > len(lines) {
			end = len(lines)
		}
		for _, next := range lines[i+1 : end] {
			if _, ok := KindFromRecordType(next); ok {
				return next
			}
		}
		// only the first occurrence declares the block
		return ""
	}
	return ""
}

// BlocksFromBackup combines names with record types parsed from a backup.
func BlocksFromBackup(r io.Reader, names []string) ([]Block, error) {
	types, err := ParseBackupRecordTypes(r, names)
	if err != nil {
		return nil, err
	}
	out := make([]Block, 0, len(names))
	for _, n := range names {
		out = append(out, Block{Name: n, RecordType: types[n]})
	}
	return out, nil
}
