package room

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet deliberately omits lookalike characters (0/O, 1/I/L) since
// room codes are read aloud and typed by hand.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// CodeLength is the length of generated room codes.
const CodeLength = 6

// CodeGenerator produces short room identifiers. Implementations hold no
// state; collision handling is the store's responsibility.
type CodeGenerator interface {
	Generate() (string, error)
}

type cryptoCodeGenerator struct{}

// NewCodeGenerator returns a CodeGenerator backed by crypto/rand.
func NewCodeGenerator() CodeGenerator {
	return cryptoCodeGenerator{}
}

func (cryptoCodeGenerator) Generate() (string, error) {
	b := make([]byte, CodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate room code: %w", err)
	}

	code := make([]byte, CodeLength)
	for i, v := range b {
		code[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return string(code), nil
}
