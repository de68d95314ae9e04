package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/sentrivault/pkg/security"
)

const (
	defaultPasswordCount = 1
	maxPasswordCount     = 100
)

// Generate command flags
var (
	generateLength       int
	generateCount        int
	generateWords        int
	generateNoSymbols    bool
	generateNoNumbers    bool
	generateNoUppercase  bool
	generateNoLowercase  bool
	generateAllowSimilar bool
	generateCopy         bool
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntVarP(&generateLength, "length", "l", security.DefaultLength,
		fmt.Sprintf("Password length (%d-%d)", security.MinLength, security.MaxLength))
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", defaultPasswordCount, "Number of passwords to generate (1-100)")
	generateCmd.Flags().IntVarP(&generateWords, "words", "w", 0,
		fmt.Sprintf("Generate a word-based password with this many words (%d-%d)", security.MinWordCount, security.MaxWordCount))
	generateCmd.Flags().BoolVar(&generateNoSymbols, "no-symbols", false, "Exclude symbols")
	generateCmd.Flags().BoolVar(&generateNoNumbers, "no-numbers", false, "Exclude numbers")
	generateCmd.Flags().BoolVar(&generateNoUppercase, "no-uppercase", false, "Exclude uppercase letters")
	generateCmd.Flags().BoolVar(&generateNoLowercase, "no-lowercase", false, "Exclude lowercase letters")
	generateCmd.Flags().BoolVar(&generateAllowSimilar, "allow-similar", false, "Keep look-alike characters (0 O 1 l I)")
	generateCmd.Flags().BoolVarP(&generateCopy, "copy", "c", false, "Copy first password to clipboard (accessible to all processes)")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate secure random passwords",
	Long: `Generate passwords from crypto/rand.

Examples:
  # Generate a 16-character password (default)
  sentrivault generate

  # Generate a 32-character password without symbols
  sentrivault generate -l 32 --no-symbols

  # Generate 5 passwords
  sentrivault generate -n 5

  # Generate a memorable password from 4 words
  sentrivault generate --words 4`,
	Args: cobra.NoArgs,
	RunE: executeGenerate,
}

type generatedPassword struct {
	Password string            `json:"password"`
	Strength security.Strength `json:"strength"`
}

func executeGenerate(cmd *cobra.Command, args []string) error {
	if err := validateGenerateFlags(); err != nil {
		return err
	}
	opts := generatorOptions()
	if generateWords == 0 && opts.Charset() == "" {
		return fmt.Errorf("character set is empty: adjust flags to include at least one character type")
	}

	gen := security.NewGenerator(nil)
	passwords := make([]generatedPassword, 0, generateCount)
	for i := 0; i < generateCount; i++ {
		var (
			pw  string
			err error
		)
		if generateWords > 0 {
			pw, err = gen.GenerateWords(generateWords)
		} else {
			pw, err = gen.Generate(opts)
		}
		if err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}
		passwords = append(passwords, generatedPassword{Password: pw, Strength: security.EvaluateStrength(pw)})
	}

	if jsonOutput {
		if err := printJSON(passwords); err != nil {
			return err
		}
	} else {
		for _, p := range passwords {
			fmt.Println(p.Password)
		}
	}

	if generateCopy && len(passwords) > 0 {
		if err := copyToClipboard(passwords[0].Password); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to copy to clipboard: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, "Password copied to clipboard")
		}
	}
	return nil
}

// validateGenerateFlags validates the generate command flags
func validateGenerateFlags() error {
	if generateWords != 0 {
		if generateWords < security.MinWordCount || generateWords > security.MaxWordCount {
			return fmt.Errorf("word count must be between %d and %d", security.MinWordCount, security.MaxWordCount)
		}
	} else {
		if generateLength < security.MinLength {
			return fmt.Errorf("password length must be at least %d characters", security.MinLength)
		}
		if generateLength > security.MaxLength {
			return fmt.Errorf("password length must be at most %d characters", security.MaxLength)
		}
	}
	if generateCount < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	if generateCount > maxPasswordCount {
		return fmt.Errorf("count must be at most %d", maxPasswordCount)
	}
	return nil
}

// generatorOptions maps the flags onto generator options.
func generatorOptions() security.GeneratorOptions {
	return security.GeneratorOptions{
		Length:         generateLength,
		Uppercase:      !generateNoUppercase,
		Lowercase:      !generateNoLowercase,
		Numbers:        !generateNoNumbers,
		Symbols:        !generateNoSymbols,
		ExcludeSimilar: !generateAllowSimilar,
	}
}

// copyToClipboard copies text to the system clipboard
func copyToClipboard(text string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		// Try xclip first, then xsel
		if _, err := exec.LookPath("xclip"); err == nil {
			cmd = exec.Command("xclip", "-selection", "clipboard")
		} else if _, err := exec.LookPath("xsel"); err == nil {
			cmd = exec.Command("xsel", "--clipboard", "--input")
		} else {
			return fmt.Errorf("clipboard tool not found: install xclip or xsel")
		}
	case "windows":
		cmd = exec.Command("clip")
	default:
		return fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
	}

	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}
