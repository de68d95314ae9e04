package importer

import (
	"strings"
	"testing"

	"github.com/forest6511/sentrivault/pkg/store"
)

func TestOnePasswordParser_Source(t *testing.T) {
	p := &OnePasswordParser{}
	if p.Source() != Source1Password {
		t.Errorf("Source() = %q, want %q", p.Source(), Source1Password)
	}
}

func TestOnePasswordParser_Parse(t *testing.T) {
	tests := []struct {
		name         string
		csvData      string
		wantItems    int
		wantWarnings int
		wantSkipped  int
		wantError    bool
		checkFirst   func(t *testing.T, item store.ItemInput)
	}{
		{
			name: "standard login entry",
			csvData: `Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
GitHub,https://github.com,johndoe,mysecretpass123,otpauth://totp/GitHub?secret=JBSWY3DPEHPK3PXP,true,false,"work, dev",My notes`,
			wantItems: 1,
			checkFirst: func(t *testing.T, item store.ItemInput) {
				if item.Title != "GitHub" {
					t.Errorf("Title = %q, want %q", item.Title, "GitHub")
				}
				want := store.PasswordFields{Username: "johndoe", Password: "mysecretpass123", URL: "https://github.com"}
				if item.Fields != want {
					t.Errorf("Fields = %+v, want %+v", item.Fields, want)
				}
				for _, s := range []string{"My notes", "totp: otpauth://totp/GitHub?secret=JBSWY3DPEHPK3PXP", "tags: work, dev"} {
					if !strings.Contains(item.Notes, s) {
						t.Errorf("Notes missing %q:\n%s", s, item.Notes)
					}
				}
				if strings.Contains(item.Notes, "archived") {
					t.Error("non-archived item marked archived")
				}
			},
		},
		{
			name: "archived entry",
			csvData: `Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
Old,https://old.example.com,u,p,,false,true,,`,
			wantItems: 1,
			checkFirst: func(t *testing.T, item store.ItemInput) {
				if item.Notes != "archived: true" {
					t.Errorf("Notes = %q", item.Notes)
				}
			},
		},
		{
			name: "title from website",
			csvData: `Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
,https://www.example.com,u,p,,,,,`,
			wantItems: 1,
			checkFirst: func(t *testing.T, item store.ItemInput) {
				if item.Title != "example.com" {
					t.Errorf("Title = %q, want %q", item.Title, "example.com")
				}
			},
		},
		{
			name: "empty row skipped",
			csvData: `Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
Nothing,,,,,,,,`,
			wantSkipped: 1,
		},
		{
			name: "column count mismatch",
			csvData: `Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
Broken,https://x.com
Good,https://x.com,u,p,,,,,`,
			wantItems:    1,
			wantWarnings: 1,
		},
		{
			name:      "missing title column",
			csvData:   "Website,Username,Password\nhttps://x.com,u,p",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &OnePasswordParser{}
			result, err := p.Parse([]byte(tt.csvData))
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result.Items) != tt.wantItems {
				t.Errorf("Items count = %d, want %d", len(result.Items), tt.wantItems)
			}
			if len(result.Warnings) != tt.wantWarnings {
				t.Errorf("Warnings = %v, want %d", result.Warnings, tt.wantWarnings)
			}
			if len(result.Skipped) != tt.wantSkipped {
				t.Errorf("Skipped = %v, want %d", result.Skipped, tt.wantSkipped)
			}
			if tt.checkFirst != nil && len(result.Items) > 0 {
				tt.checkFirst(t, result.Items[0])
			}
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	if got := normalizeTags(" work , ,dev,"); got != "work, dev" {
		t.Errorf("normalizeTags = %q, want %q", got, "work, dev")
	}
}
