package utils

import (
	"errors"
	"testing"
)

func TestPrefixSuggestions(t *testing.T) {
	const domain = "@stud.kuet.ac.bd"
	tests := []struct {
		input, name, value string
	}{
		{"zihad2107071", "zihad2107071@stud.kuet.ac.bd", "zihad2107071"},
		{" Zihad2107071@stud ", "zihad2107071@stud.kuet.ac.bd", "zihad2107071"},
		{"zi", "zi (your email prefix)", "zi"},
		{"zihad", "zihad (nameRoll)", "zihad"},
		{"zihad21", "zihad21 (Full Roll)", "zihad21"},
		{"2107071", "2107071 (invalid format)", "2107071"},
		{"zihad21070711", "zihad21070711 (invalid format)", "zihad21070711"},
	}
	for _, tt := range tests {
		got := PrefixSuggestions(tt.input, domain)
		if len(got) != 1 {
			t.Fatalf("PrefixSuggestions(%q) returned %d choices", tt.input, len(got))
		}
		if got[0].Name != tt.name || got[0].Value != tt.value {
			t.Errorf("PrefixSuggestions(%q) = {%q, %v}, want {%q, %q}", tt.input, got[0].Name, got[0].Value, tt.name, tt.value)
		}
	}

	if got := PrefixSuggestions("   ", domain); len(got) != 0 {
		t.Errorf("blank input returned %v", got)
	}
}

func TestIsStudentPrefix(t *testing.T) {
	for in, want := range map[string]bool{
		"zihad2107071":  true,
		"ab1234567":     true,
		"a1234567":      false,
		"zihad210707":   false,
		"Zihad2107071":  false,
		"zihad2107071x": false,
	} {
		if got := IsStudentPrefix(in); got != want {
			t.Errorf("IsStudentPrefix(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBatchFromEmail(t *testing.T) {
	batch, token, err := BatchFromEmail("zihad2107071@stud.kuet.ac.bd")
	if err != nil || batch != 2021 || token != "21" {
		t.Fatalf("BatchFromEmail = %d, %q, %v", batch, token, err)
	}
	if batch, _, _ := BatchFromEmail("rafi1907001"); batch != 2019 {
		t.Fatalf("batch = %d, want 2019", batch)
	}
	if _, _, err := BatchFromEmail("someone@example.com"); !errors.Is(err, ErrNoBatchToken) {
		t.Fatalf("err = %v, want ErrNoBatchToken", err)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"  Zihad   Hasan ":   "Zihad Hasan",
		"Zihad\nHasan":       "Zihad Hasan",
		"Zihad\x00\tHasan\r": "Zihad Hasan",
	}
	for in, want := range tests {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := EscapeMarkdown("**bold** _x_"); got != `\*\*bold\*\* \_x\_` {
		t.Fatalf("EscapeMarkdown = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("আমার নাম", 3); got != "আমা" {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("short", 32); got != "short" {
		t.Fatalf("Truncate = %q", got)
	}
}

func TestEmbedColors(t *testing.T) {
	if e := SuccessEmbed("Done", ""); e.Color != ColorSuccess || e.Title != "✅ Done" {
		t.Errorf("SuccessEmbed = %+v", e)
	}
	if e := PermissionDeniedEmbed("nope"); e.Color != ColorError || e.Title != "❌ Permission Denied" || e.Description != "nope" {
		t.Errorf("PermissionDeniedEmbed = %+v", e)
	}
}
