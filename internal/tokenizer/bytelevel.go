// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package tokenizer

// byteToUnicode builds the fixed 256→Unicode table spec §4.3 step 2
// describes: printable ASCII (33..126) and the Latin-1 printable range
// (161..172, 174..255) pass through unchanged; the remaining 68 byte values
// are remapped to the code points U+0100..U+0143 so every possible byte
// has a printable, round-trippable single-rune representation. This is the
// same construction CLIP/GPT-2 style byte-level BPE tokenizers use.
func byteToUnicode() map[byte]rune {
	var passthrough []int
	for b := int('!'); b <= int('~'); b++ {
		passthrough = append(passthrough, b)
	}
	for b := 0xA1; b <= 0xAC; b++ {
		passthrough = append(passthrough, b)
	}
	for b := 0xAE; b <= 0xFF; b++ {
		passthrough = append(passthrough, b)
	}

	present := make(map[int]bool, len(passthrough))
	for _, b := range passthrough {
		present[b] = true
	}

	table := make(map[byte]rune, 256)
	for _, b := range passthrough {
		table[byte(b)] = rune(b)
	}
	next := rune(0x100)
	for b := 0; b < 256; b++ {
		if present[b] {
			continue
		}
		table[byte(b)] = next
		next++
	}
	return table
}

var byteEncodeTable = byteToUnicode()

var unicodeDecodeTable = func() map[rune]byte {
	m := make(map[rune]byte, 256)
	for b, r := range byteEncodeTable {
		m[r] = b
	}
	return m
}()

// encodeBytesToUnicode maps each byte of s through the fixed table,
// producing one rune per input byte.
func encodeBytesToUnicode(b []byte) []rune {
	out := make([]rune, len(b))
	for i, c := range b {
		out[i] = byteEncodeTable[c]
	}
	return out
}
