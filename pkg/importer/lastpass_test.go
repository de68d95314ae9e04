package importer

import (
	"strings"
	"testing"

	"github.com/forest6511/sentrivault/pkg/store"
)

func TestLastPassParser_Source(t *testing.T) {
	p := &LastPassParser{}
	if p.Source() != SourceLastPass {
		t.Errorf("Source() = %q, want %q", p.Source(), SourceLastPass)
	}
}

func TestLastPassParser_Parse(t *testing.T) {
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
			csvData: `url,username,password,totp,extra,name,grouping,fav
https://github.com,johndoe,mysecretpass123,JBSWY3DPEHPK3PXP,My GitHub notes,GitHub,Work,1`,
			wantItems: 1,
			checkFirst: func(t *testing.T, item store.ItemInput) {
				if item.Title != "GitHub" {
					t.Errorf("Title = %q, want %q", item.Title, "GitHub")
				}
				want := store.PasswordFields{Username: "johndoe", Password: "mysecretpass123", URL: "https://github.com"}
				if item.Fields != want {
					t.Errorf("Fields = %+v, want %+v", item.Fields, want)
				}
				if item.Notes != "My GitHub notes\ntotp: JBSWY3DPEHPK3PXP\ngroup: Work" {
					t.Errorf("Notes = %q", item.Notes)
				}
			},
		},
		{
			name: "secure note",
			csvData: `url,username,password,totp,extra,name,grouping,fav
http://sn,,,,Recovery codes: 1234,Backup Codes,,`,
			wantItems: 1,
			checkFirst: func(t *testing.T, item store.ItemInput) {
				if _, ok := item.Fields.(store.NoteFields); !ok {
					t.Errorf("Fields = %T, want store.NoteFields", item.Fields)
				}
				if item.Notes != "Recovery codes: 1234" {
					t.Errorf("Notes = %q", item.Notes)
				}
			},
		},
		{
			name: "html entities decoded",
			csvData: `url,username,password,totp,extra,name,grouping,fav
https://example.com,user,pass,,Tom &amp; Jerry,A &amp; B,,`,
			wantItems: 1,
			checkFirst: func(t *testing.T, item store.ItemInput) {
				if item.Title != "A & B" {
					t.Errorf("Title = %q, want %q", item.Title, "A & B")
				}
				if item.Notes != "Tom & Jerry" {
					t.Errorf("Notes = %q", item.Notes)
				}
			},
		},
		{
			name: "uppercase header",
			csvData: `URL,USERNAME,PASSWORD,TOTP,EXTRA,NAME,GROUPING,FAV
https://example.com,user,pass,,,Example,,`,
			wantItems: 1,
		},
		{
			name: "utf-8 bom",
			csvData: "\xEF\xBB\xBFurl,username,password,totp,extra,name,grouping,fav\n" +
				"https://example.com,user,pass,,,Example,,",
			wantItems: 1,
		},
		{
			name: "empty rows skipped",
			csvData: `url,username,password,totp,extra,name,grouping,fav
,,,,,Nothing,,
http://sn,,,,,Empty Note,,`,
			wantSkipped: 2,
		},
		{
			name: "column count mismatch",
			csvData: `url,username,password,totp,extra,name,grouping,fav
https://example.com,user
https://example.com,user,pass,,,Good,,`,
			wantItems:    1,
			wantWarnings: 1,
		},
		{
			name:      "missing name column",
			csvData:   "url,username,password\nhttps://x.com,u,p",
			wantError: true,
		},
		{
			name:      "empty input",
			csvData:   "",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &LastPassParser{}
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

func TestLastPassParser_LazyQuotes(t *testing.T) {
	data := `url,username,password,totp,extra,name,grouping,fav
https://example.com,user,pa"ss,,,Quoted,,`

	result, err := (&LastPassParser{}).Parse([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("Items count = %d, want 1", len(result.Items))
	}
	if got := result.Items[0].Fields.(store.PasswordFields).Password; got != `pa"ss` {
		t.Errorf("Password = %q, want %q", got, `pa"ss`)
	}
}

func TestLastPassParser_LargeFile(t *testing.T) {
	var b strings.Builder
	b.WriteString("url,username,password,totp,extra,name,grouping,fav\n")
	for i := 0; i < 1000; i++ {
		b.WriteString("https://example.com,user,pass,,,Site,,\n")
	}

	result, err := (&LastPassParser{}).Parse([]byte(b.String()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 1000 {
		t.Errorf("Items count = %d, want 1000", len(result.Items))
	}
}
