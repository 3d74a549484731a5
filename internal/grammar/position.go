package grammar

import "go.lsp.dev/protocol"

// PositionAt converts a byte offset into a zero-based line and UTF-16 character position.
func PositionAt(text string, offset int) protocol.Position {
	if offset > len(text) {
		offset = len(text)
	}
	var line, char uint32
	for i, r := range text {
		if i >= offset {
			break
		}
		if r == '\n' {
			line++
			char = 0
			continue
		}
		if r >= 0x10000 {
			char += 2
		} else {
			char++
		}
	}
	return protocol.Position{Line: line, Character: char}
}

// RangeOf returns the editor range covering text[offset:offset+length].
func RangeOf(text string, offset, length int) protocol.Range {
	if offset < 0 {
		offset = 0
	}
	end := offset + length
	if end < offset {
		end = offset
	}
	return protocol.Range{Start: PositionAt(text, offset), End: PositionAt(text, end)}
}
