package main

import (
	"strings"
	"testing"

	"github.com/forest6511/sentrivault/pkg/security"
)

func TestValidateGenerateFlags(t *testing.T) {
	tests := []struct {
		name        string
		length      int
		count       int
		words       int
		expectError bool
	}{
		{"valid defaults", security.DefaultLength, defaultPasswordCount, 0, false},
		{"minimum length", security.MinLength, 1, 0, false},
		{"maximum length", security.MaxLength, 1, 0, false},
		{"length too short", security.MinLength - 1, 1, 0, true},
		{"length too long", security.MaxLength + 1, 1, 0, true},
		{"count zero", 24, 0, 0, true},
		{"count too high", 24, maxPasswordCount + 1, 0, true},
		{"maximum count", 24, maxPasswordCount, 0, false},
		{"words ignore length", 0, 1, security.DefaultWordCount, false},
		{"too many words", 24, 1, security.MaxWordCount + 1, true},
		{"negative words", 24, 1, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Save and restore globals
			oldLength, oldCount, oldWords := generateLength, generateCount, generateWords
			defer func() {
				generateLength, generateCount, generateWords = oldLength, oldCount, oldWords
			}()

			generateLength = tt.length
			generateCount = tt.count
			generateWords = tt.words

			err := validateGenerateFlags()
			if tt.expectError && err == nil {
				t.Errorf("expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGeneratorOptions(t *testing.T) {
	tests := []struct {
		name         string
		noLowercase  bool
		noUppercase  bool
		noNumbers    bool
		noSymbols    bool
		allowSimilar bool
		contains     string
		notContains  string
	}{
		{name: "all character types", contains: "aA2!", notContains: "0O1lI"},
		{name: "no symbols", noSymbols: true, contains: "aA2", notContains: "!@#"},
		{name: "no numbers", noNumbers: true, contains: "aA!", notContains: "23456789"},
		{name: "no uppercase", noUppercase: true, contains: "a2!", notContains: "ABC"},
		{name: "no lowercase", noLowercase: true, contains: "A2!", notContains: "abc"},
		{name: "allow similar", allowSimilar: true, contains: "0O1lI"},
		{name: "empty charset", noLowercase: true, noUppercase: true, noNumbers: true, noSymbols: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := []bool{generateNoLowercase, generateNoUppercase, generateNoNumbers, generateNoSymbols, generateAllowSimilar}
			defer func() {
				generateNoLowercase, generateNoUppercase, generateNoNumbers, generateNoSymbols, generateAllowSimilar =
					old[0], old[1], old[2], old[3], old[4]
			}()

			generateNoLowercase = tt.noLowercase
			generateNoUppercase = tt.noUppercase
			generateNoNumbers = tt.noNumbers
			generateNoSymbols = tt.noSymbols
			generateAllowSimilar = tt.allowSimilar

			charset := generatorOptions().Charset()
			for _, c := range tt.contains {
				if !strings.ContainsRune(charset, c) {
					t.Errorf("charset should contain %q", c)
				}
			}
			for _, c := range tt.notContains {
				if strings.ContainsRune(charset, c) {
					t.Errorf("charset should not contain %q", c)
				}
			}
			if tt.contains == "" && charset != "" {
				t.Errorf("expected empty charset, got %q", charset)
			}
		})
	}
}
