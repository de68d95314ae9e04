package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
)

// Character classes.
const (
	CharsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	CharsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	CharsetDigits    = "0123456789"
	CharsetSymbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	// SimilarChars are removed from the pool when ExcludeSimilar is set.
	SimilarChars = "0O1lI"

	wordSeparators = "$@#&*!+="
)

// Generator limits.
const (
	MinLength        = 4
	MaxLength        = 256
	DefaultLength    = 16
	MinWordCount     = 1
	MaxWordCount     = 10
	DefaultWordCount = 3
	maxWordNumber    = 999
)

// Words is the dictionary used by GenerateWords.
var Words = []string{
	"Ocean", "Mountain", "River", "Forest", "Desert", "Valley", "Storm", "Thunder",
	"Lightning", "Rainbow", "Sunset", "Sunrise", "Galaxy", "Planet", "Star", "Moon",
	"Phoenix", "Dragon", "Eagle", "Wolf", "Tiger", "Lion", "Bear", "Falcon",
	"Crystal", "Diamond", "Gold", "Silver", "Platinum", "Ruby", "Emerald", "Sapphire",
}

var (
	ErrEmptyCharset     = errors.New("security: character set is empty: enable at least one character class")
	ErrInvalidLength    = fmt.Errorf("security: length must be between %d and %d", MinLength, MaxLength)
	ErrInvalidWordCount = fmt.Errorf("security: word count must be between %d and %d", MinWordCount, MaxWordCount)
)

// GeneratorOptions selects the character pool for Generate.
type GeneratorOptions struct {
	Length         int  `json:"length"`
	Uppercase      bool `json:"includeUppercase"`
	Lowercase      bool `json:"includeLowercase"`
	Numbers        bool `json:"includeNumbers"`
	Symbols        bool `json:"includeSymbols"`
	ExcludeSimilar bool `json:"excludeSimilar"`
}

// DefaultGeneratorOptions returns 16 characters drawn from every class with
// look-alike characters removed.
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		Length:         DefaultLength,
		Uppercase:      true,
		Lowercase:      true,
		Numbers:        true,
		Symbols:        true,
		ExcludeSimilar: true,
	}
}

// Charset returns the pool described by opts.
func (o GeneratorOptions) Charset() string {
	var b strings.Builder
	if o.Uppercase {
		b.WriteString(CharsetUppercase)
	}
	if o.Lowercase {
		b.WriteString(CharsetLowercase)
	}
	if o.Numbers {
		b.WriteString(CharsetDigits)
	}
	if o.Symbols {
		b.WriteString(CharsetSymbols)
	}
	pool := b.String()
	if o.ExcludeSimilar {
		pool = removeChars(pool, SimilarChars)
	}
	return pool
}

// Generator draws passwords from a random source.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a Generator reading randomness from r. A nil r means
// crypto/rand.
func NewGenerator(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{rand: r}
}

var defaultGenerator = NewGenerator(nil)

// Generate returns a random password using crypto/rand.
func Generate(opts GeneratorOptions) (string, error) {
	return defaultGenerator.Generate(opts)
}

// GenerateWords returns a word-based password using crypto/rand.
func GenerateWords(count int) (string, error) {
	return defaultGenerator.GenerateWords(count)
}

// Generate samples opts.Length characters uniformly from the pool. Classes are
// not guaranteed to all appear.
func (g *Generator) Generate(opts GeneratorOptions) (string, error) {
	if opts.Length < MinLength || opts.Length > MaxLength {
		return "", ErrInvalidLength
	}
	pool := opts.Charset()
	if pool == "" {
		return "", ErrEmptyCharset
	}

	out := make([]byte, opts.Length)
	for i := range out {
		idx, err := g.intn(len(pool))
		if err != nil {
			return "", err
		}
		out[i] = pool[idx]
	}
	return string(out), nil
}

// GenerateWords joins count dictionary words with random separators and
// appends a number between 1 and 999, e.g. "Falcon#Ruby=Storm417".
func (g *Generator) GenerateWords(count int) (string, error) {
	if count < MinWordCount || count > MaxWordCount {
		return "", ErrInvalidWordCount
	}

	n, err := g.intn(maxWordNumber)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := range count {
		w, err := g.intn(len(Words))
		if err != nil {
			return "", err
		}
		b.WriteString(Words[w])
		if i < count-1 {
			s, err := g.intn(len(wordSeparators))
			if err != nil {
				return "", err
			}
			b.WriteByte(wordSeparators[s])
		}
	}
	b.WriteString(strconv.Itoa(n + 1))
	return b.String(), nil
}

func (g *Generator) intn(n int) (int, error) {
	v, err := rand.Int(g.rand, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("security: failed to generate random number: %w", err)
	}
	return int(v.Int64()), nil
}

func removeChars(s, chars string) string {
	exclude := make(map[rune]bool, len(chars))
	for _, c := range chars {
		exclude[c] = true
	}
	var b strings.Builder
	for _, c := range s {
		if !exclude[c] {
			b.WriteRune(c)
		}
	}
	return b.String()
}
