package shortener

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jaevor/go-nanoid"
)

const (
	// DefaultCodeLength is the length of a code produced by Generate.
	DefaultCodeLength = 6

	alphanumeric = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	letters      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	minSuffixLength = 2
)

// CodeGenerator produces random strings of a fixed length.
type CodeGenerator func() string

// Generator derives short codes from long URLs.
//
// Generate is a pure function of the URL: a SHA-256 hex digest windowed to
// the code length, starting at the first letter so the code does not read
// like a numeric ID. ResolveCollision appends a random alphanumeric suffix
// and leaves the uniqueness check to the caller.
type Generator struct {
	length       int
	randomSuffix CodeGenerator
	randomLetter CodeGenerator
}

// NewGenerator creates a generator for codes of the given length whose
// collision suffixes are suffixLength characters long. Zero values fall back
// to DefaultCodeLength and the code length respectively. The code must fit
// the hex digest, and code plus suffix must stay a valid stored code.
func NewGenerator(length, suffixLength int) (*Generator, error) {
	if length == 0 {
		length = DefaultCodeLength
	}

	if suffixLength == 0 {
		suffixLength = length
	}

	switch {
	case length < DefaultCodeLength || length > sha256.Size*2:
		return nil, fmt.Errorf("code length %d: must be %d-%d", length, DefaultCodeLength, sha256.Size*2)
	case suffixLength < minSuffixLength:
		return nil, fmt.Errorf("suffix length %d: must be at least %d", suffixLength, minSuffixLength)
	case length+suffixLength > maxCodeLength:
		return nil, fmt.Errorf("code length %d plus suffix length %d: must be at most %d",
			length, suffixLength, maxCodeLength)
	}

	suffix, err := nanoid.CustomASCII(alphanumeric, suffixLength)
	if err != nil {
		return nil, fmt.Errorf("suffix generator: %w", err)
	}

	// nanoid ids are at least two characters long
	pair, err := nanoid.CustomASCII(letters, minSuffixLength)
	if err != nil {
		return nil, fmt.Errorf("letter generator: %w", err)
	}

	return &Generator{
		length:       length,
		randomSuffix: suffix,
		randomLetter: func() string { return pair()[:1] },
	}, nil
}

// NewGeneratorWith builds a generator around explicit random sources.
func NewGeneratorWith(length int, suffix, letter CodeGenerator) *Generator {
	return &Generator{length: length, randomSuffix: suffix, randomLetter: letter}
}

// Length returns the length of codes produced by Generate.
func (g *Generator) Length() int {
	return g.length
}

// Generate returns the short code for longURL.
func (g *Generator) Generate(longURL string) Code {
	sum := sha256.Sum256([]byte(longURL))

	return g.window(hex.EncodeToString(sum[:]))
}

// ResolveCollision returns code with a fresh random suffix appended.
func (g *Generator) ResolveCollision(code Code) Code {
	return code + Code(g.randomSuffix())
}

func (g *Generator) window(digest string) Code {
	start := 0

	for i := 0; i <= len(digest)-g.length; i++ {
		if isLetter(digest[i]) {
			start = i

			break
		}
	}

	out := []byte(digest[start : start+g.length])

	if allDigits(out) {
		out[0] = g.randomLetter()[0]
	}

	return Code(out)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
