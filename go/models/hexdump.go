package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

func printable(p []byte) string {
	o := make([]byte, len(p))
	for i, c := range p {
		if c >= 0x20 && c <= 0x7e {
			o[i] = c
		} else {
			o[i] = '.'
		}
	}
	return string(o)
}

// HexDump formats mem as 80-column lines of word-sized groups, addressed
// from base. Words are bits/8 bytes wide.
func HexDump(base uint64, mem []byte, bits int) []string {
	bsz := bits / 8
	hexFmt := fmt.Sprintf("0x%%0%dx:", bsz*2)
	padBlock := strings.Repeat(" ", bsz*2)
	padTail := strings.Repeat(" ", bsz)

	width := 80
	addrSize := bsz*2 + 4
	blockCount := ((width - addrSize) * 3 / 4) / ((bsz + 1) * 2)
	if blockCount < 1 {
		blockCount = 1
	}
	lineSize := blockCount * bsz
	var out []string
	blocks := make([]string, blockCount)
	tail := make([]string, blockCount)
	for i := 0; i < len(mem); i += lineSize {
		line := mem[i:]
		for j := 0; j < blockCount; j++ {
			start, end := j*bsz, (j+1)*bsz
			if start >= len(line) {
				blocks[j] = padBlock
				tail[j] = padTail
				continue
			}
			short := 0
			if end > len(line) {
				short = end - len(line)
				end = len(line)
			}
			blocks[j] = hex.EncodeToString(line[start:end]) + strings.Repeat("  ", short)
			tail[j] = printable(line[start:end]) + strings.Repeat(" ", short)
		}
		out = append(out, strings.Join([]string{
			fmt.Sprintf(hexFmt, base+uint64(i)),
			strings.Join(blocks, " "),
			fmt.Sprintf("[%s]", strings.Join(tail, " ")),
		}, " "))
	}
	return out
}
