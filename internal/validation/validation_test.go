package validation

import (
	"strings"
	"testing"
)

func TestValidateKeywordSource(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{"simple word", "colour", true},
		{"phrase", "travelling salesman", true},
		{"unicode", "café", true},
		{"empty", "", false},
		{"blank", "   ", false},
		{"control character", "foo\x00bar", false},
		{"newline", "foo\nbar", false},
		{"max length", strings.Repeat("é", MaxSourceLength), true},
		{"too long", strings.Repeat("a", MaxSourceLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := ValidateKeywordSource(tt.source); got != tt.want {
				t.Errorf("ValidateKeywordSource(%q) = %v, want %v", tt.source, got, tt.want)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    bool
		wantMsg string
	}{
		{"valid https", "https://example.com/keywords.json", true, ""},
		{"valid http", "http://example.com", true, ""},
		{"valid with port", "https://example.com:8080/path", true, ""},
		{"empty", "", false, "URL is required"},
		{"javascript scheme", "javascript:alert(1)", false, "URL must use http:// or https:// scheme"},
		{"data scheme", "data:text/html,<script>alert(1)</script>", false, "URL must use http:// or https:// scheme"},
		{"file scheme", "file:///etc/passwd", false, "URL must use http:// or https:// scheme"},
		{"no scheme", "example.com", false, "URL must use http:// or https:// scheme"},
		{"no host", "https://", false, "URL must have a valid host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := ValidateURL(tt.url)
			if got != tt.want {
				t.Errorf("ValidateURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
			if msg != tt.wantMsg {
				t.Errorf("ValidateURL(%q) msg = %q, want %q", tt.url, msg, tt.wantMsg)
			}
		})
	}
}

func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"", "", true},
		{"https://Example.com/path?q=1", "https://example.com", true},
		{"http://example.com:8080", "http://example.com:8080", true},
		{"ftp://example.com", "", false},
		{"not a url", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeOrigin(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizeOrigin(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
