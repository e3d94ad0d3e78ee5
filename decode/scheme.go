package decode

import (
	"fmt"
	"strings"
)

// Scheme names the chunk-encoding convention a label vocabulary follows.
// The scheme determines which label transitions a sequence-level decoder
// treats as structurally valid.
type Scheme string

const (
	// SchemeBIO uses begin/inside/outside roles only.
	SchemeBIO Scheme = "bio"
	// SchemeBIOES adds explicit end and single roles.
	SchemeBIOES Scheme = "bioes"
)

// ParseScheme normalizes a scheme name. The empty string defaults to BIO.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bio":
		return SchemeBIO, nil
	case "bioes", "bmes", "bioul":
		return SchemeBIOES, nil
	default:
		return "", fmt.Errorf("decode: unknown tag scheme %q", s)
	}
}

type labelParts struct {
	role byte // 'O', 'B', 'I', 'E', 'S'
	typ  string
}

func parseLabel(label string) labelParts {
	if label == "" || label == outsideLabel {
		return labelParts{role: 'O'}
	}
	prefix, typ, ok := strings.Cut(label, "-")
	if !ok || len(prefix) != 1 {
		return labelParts{role: 'I', typ: label}
	}
	switch prefix[0] {
	case 'B':
		return labelParts{role: 'B', typ: typ}
	case 'I', 'M':
		return labelParts{role: 'I', typ: typ}
	case 'E':
		return labelParts{role: 'E', typ: typ}
	case 'S':
		return labelParts{role: 'S', typ: typ}
	default:
		return labelParts{role: 'I', typ: label}
	}
}

// startValid reports whether a sequence may open with the label.
func (s Scheme) startValid(label labelParts) bool {
	switch label.role {
	case 'O', 'B', 'S':
		return true
	default:
		return false
	}
}

// endValid reports whether a sequence may close on the label. BIO has no
// explicit close role, so any label may end a sequence there.
func (s Scheme) endValid(label labelParts) bool {
	if s != SchemeBIOES {
		return true
	}
	switch label.role {
	case 'O', 'E', 'S':
		return true
	default:
		return false
	}
}

// transitionValid reports whether prev→next is structurally allowed:
// a continuation must continue an open chunk of the same type, and under
// BIOES an open chunk must be continued or closed, never abandoned.
func (s Scheme) transitionValid(prev, next labelParts) bool {
	if next.role == 'I' || next.role == 'E' {
		if prev.role != 'B' && prev.role != 'I' {
			return false
		}
		if prev.typ != next.typ {
			return false
		}
	}
	if s == SchemeBIOES && (prev.role == 'B' || prev.role == 'I') {
		if next.role != 'I' && next.role != 'E' {
			return false
		}
		if prev.typ != next.typ {
			return false
		}
	}
	return true
}
