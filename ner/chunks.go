package ner

import "strings"

const outsideTag = "O"

type tagRole int

const (
	roleOutside tagRole = iota
	roleBegin
	roleInside
	roleEnd
	roleSingle
)

// splitTag parses one label into its role and chunk type. "O" and the empty
// string are outside. A bare non-outside label without a role prefix is
// treated as inside-of-type, so sequences from sloppier schemes still chunk
// instead of crashing.
func splitTag(tag string) (tagRole, string) {
	if tag == "" || tag == outsideTag {
		return roleOutside, ""
	}
	prefix, typ, ok := strings.Cut(tag, "-")
	if !ok {
		return roleInside, tag
	}
	switch prefix {
	case "B":
		return roleBegin, typ
	case "I", "M":
		return roleInside, typ
	case "E":
		return roleEnd, typ
	case "S":
		return roleSingle, typ
	default:
		return roleInside, tag
	}
}

// ExtractChunks scans a BIO/BIOES-style tag sequence and returns its typed
// chunks in start order. It is a pure, total function: malformed sequences
// (an inside label with no open chunk, a type flip mid-span) degrade into
// boundary-implied chunks rather than erroring, and no character is ever
// dropped from consideration.
func ExtractChunks(tags []string) []Chunk {
	var chunks []Chunk
	open := false
	curType := ""
	curStart := 0

	closeAt := func(end int) {
		chunks = append(chunks, Chunk{Type: curType, Start: curStart, End: end})
		open = false
	}

	for i, tag := range tags {
		role, typ := splitTag(tag)
		switch role {
		case roleOutside:
			if open {
				closeAt(i)
			}
		case roleBegin:
			if open {
				closeAt(i)
			}
			open, curType, curStart = true, typ, i
		case roleSingle:
			if open {
				closeAt(i)
			}
			chunks = append(chunks, Chunk{Type: typ, Start: i, End: i + 1})
		case roleInside, roleEnd:
			if !open || curType != typ {
				// Implicit boundary: the continuation has nothing
				// matching to continue, so it opens its own chunk here.
				if open {
					closeAt(i)
				}
				open, curType, curStart = true, typ, i
			}
			if role == roleEnd {
				closeAt(i + 1)
			}
		}
	}
	if open {
		closeAt(len(tags))
	}
	return chunks
}
