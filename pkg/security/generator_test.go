package security

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"
	"unicode"
)

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestDefaultGeneratorOptions(t *testing.T) {
	opts := DefaultGeneratorOptions()
	want := GeneratorOptions{Length: 16, Uppercase: true, Lowercase: true, Numbers: true, Symbols: true, ExcludeSimilar: true}
	if opts != want {
		t.Errorf("DefaultGeneratorOptions() = %+v, want %+v", opts, want)
	}
}

func TestGeneratorOptions_Charset(t *testing.T) {
	tests := []struct {
		name string
		opts GeneratorOptions
		want string
	}{
		{
			name: "lowercase_only",
			opts: GeneratorOptions{Lowercase: true},
			want: CharsetLowercase,
		},
		{
			name: "lowercase_exclude_similar",
			opts: GeneratorOptions{Lowercase: true, ExcludeSimilar: true},
			want: "abcdefghijkmnopqrstuvwxyz",
		},
		{
			name: "digits_exclude_similar",
			opts: GeneratorOptions{Numbers: true, ExcludeSimilar: true},
			want: "23456789",
		},
		{
			name: "upper_then_lower_order",
			opts: GeneratorOptions{Uppercase: true, Lowercase: true},
			want: CharsetUppercase + CharsetLowercase,
		},
		{
			name: "none",
			opts: GeneratorOptions{ExcludeSimilar: true},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.Charset(); got != tt.want {
				t.Errorf("Charset() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	similar := regexp.MustCompile(`[0O1lI]`)

	tests := []struct {
		name  string
		opts  GeneratorOptions
		check func(r rune) bool
	}{
		{
			name:  "lowercase_only",
			opts:  GeneratorOptions{Length: 64, Lowercase: true},
			check: func(r rune) bool { return r >= 'a' && r <= 'z' },
		},
		{
			name:  "uppercase_only",
			opts:  GeneratorOptions{Length: 64, Uppercase: true},
			check: unicode.IsUpper,
		},
		{
			name:  "digits_only",
			opts:  GeneratorOptions{Length: 64, Numbers: true},
			check: unicode.IsDigit,
		},
		{
			name:  "symbols_only",
			opts:  GeneratorOptions{Length: 64, Symbols: true},
			check: func(r rune) bool { return strings.ContainsRune(CharsetSymbols, r) },
		},
		{
			name:  "defaults",
			opts:  DefaultGeneratorOptions(),
			check: func(r rune) bool { return r < unicode.MaxASCII },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pw, err := Generate(tt.opts)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if len(pw) != tt.opts.Length {
				t.Errorf("len = %d, want %d", len(pw), tt.opts.Length)
			}
			for _, r := range pw {
				if !tt.check(r) {
					t.Errorf("unexpected character %q in %q", r, pw)
				}
			}
			if tt.opts.ExcludeSimilar && similar.MatchString(pw) {
				t.Errorf("similar character found in %q", pw)
			}
		})
	}
}

func TestGenerate_ExcludeSimilarAllClasses(t *testing.T) {
	similar := regexp.MustCompile(`[0O1lI]`)
	opts := GeneratorOptions{Length: MaxLength, Uppercase: true, Lowercase: true, Numbers: true, Symbols: true, ExcludeSimilar: true}

	for range 20 {
		pw, err := Generate(opts)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if similar.MatchString(pw) {
			t.Fatalf("similar character found in %q", pw)
		}
	}
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts GeneratorOptions
		want error
	}{
		{"empty_pool", GeneratorOptions{Length: 16}, ErrEmptyCharset},
		{"too_short", GeneratorOptions{Length: MinLength - 1, Lowercase: true}, ErrInvalidLength},
		{"too_long", GeneratorOptions{Length: MaxLength + 1, Lowercase: true}, ErrInvalidLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("Generate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerator_InjectedReader(t *testing.T) {
	g := NewGenerator(zeroReader{})

	pw, err := g.Generate(GeneratorOptions{Length: 8, Uppercase: true, Lowercase: true})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if pw != "AAAAAAAA" {
		t.Errorf("Generate() = %q, want AAAAAAAA", pw)
	}

	words, err := g.GenerateWords(3)
	if err != nil {
		t.Fatalf("GenerateWords() error = %v", err)
	}
	if words != "Ocean$Ocean$Ocean1" {
		t.Errorf("GenerateWords() = %q, want Ocean$Ocean$Ocean1", words)
	}
}

func TestGenerator_ReaderFailure(t *testing.T) {
	g := NewGenerator(failingReader{})

	if _, err := g.Generate(DefaultGeneratorOptions()); err == nil {
		t.Error("Generate() expected error from failing reader")
	}
	if _, err := g.GenerateWords(DefaultWordCount); err == nil {
		t.Error("GenerateWords() expected error from failing reader")
	}
}

func TestGenerateWords(t *testing.T) {
	shape := regexp.MustCompile(`^([A-Z][a-z]+[$@#&*!+=]){2}[A-Z][a-z]+([1-9][0-9]{0,2})$`)

	for range 50 {
		pw, err := GenerateWords(DefaultWordCount)
		if err != nil {
			t.Fatalf("GenerateWords() error = %v", err)
		}
		if !shape.MatchString(pw) {
			t.Fatalf("GenerateWords() = %q does not match expected shape", pw)
		}
		for _, part := range strings.FieldsFunc(pw, func(r rune) bool {
			return strings.ContainsRune(wordSeparators, r) || unicode.IsDigit(r)
		}) {
			if !containsWord(part) {
				t.Errorf("word %q not in dictionary", part)
			}
		}
	}
}

func TestGenerateWords_Count(t *testing.T) {
	pw, err := NewGenerator(zeroReader{}).GenerateWords(1)
	if err != nil {
		t.Fatalf("GenerateWords() error = %v", err)
	}
	if pw != "Ocean1" {
		t.Errorf("GenerateWords(1) = %q, want Ocean1", pw)
	}

	for _, n := range []int{0, MaxWordCount + 1} {
		if _, err := GenerateWords(n); !errors.Is(err, ErrInvalidWordCount) {
			t.Errorf("GenerateWords(%d) error = %v, want ErrInvalidWordCount", n, err)
		}
	}
}

func TestGenerate_Distribution(t *testing.T) {
	// Every pool character should show up given enough draws.
	opts := GeneratorOptions{Length: MaxLength, Numbers: true, ExcludeSimilar: true}
	var all bytes.Buffer
	for range 10 {
		pw, err := Generate(opts)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		all.WriteString(pw)
	}
	for _, c := range opts.Charset() {
		if !bytes.ContainsRune(all.Bytes(), c) {
			t.Errorf("character %q never generated", c)
		}
	}
}

func containsWord(w string) bool {
	for _, candidate := range Words {
		if candidate == w {
			return true
		}
	}
	return false
}
