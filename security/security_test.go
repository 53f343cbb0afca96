package security

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestGenerateCodeDigits(t *testing.T) {
	re := regexp.MustCompile(`^[0-9]{6}$`)
	seen := make(map[byte]bool)
	for i := 0; i < 1000; i++ {
		code, err := GenerateCode(DefaultCharset, 6)
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		if !re.MatchString(code) {
			t.Fatalf("code %q does not match %s", code, re)
		}
		for j := 0; j < len(code); j++ {
			seen[code[j]] = true
		}
	}
	if len(seen) != len(DefaultCharset) {
		t.Fatalf("only saw %d distinct digits over 6000 draws", len(seen))
	}
}

func TestGenerateCodeCustomCharset(t *testing.T) {
	code, err := GenerateCode("AB", 12)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if len(code) != 12 {
		t.Fatalf("len = %d, want 12", len(code))
	}
	if strings.Trim(code, "AB") != "" {
		t.Fatalf("code %q contains characters outside the charset", code)
	}
}

func TestGenerateCodeRejectsEmptyShape(t *testing.T) {
	if _, err := GenerateCode("", 6); !errors.Is(err, ErrInvalidCodeShape) {
		t.Fatalf("empty charset: got %v", err)
	}
	if _, err := GenerateCode(DefaultCharset, 0); !errors.Is(err, ErrInvalidCodeShape) {
		t.Fatalf("zero length: got %v", err)
	}
}
