package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "abc", "path", "/api/mirror/apply"})
	if len(out) != 4 {
		t.Fatalf("len: want=4 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key: want redacted got=%v", out[1])
	}
	if out[3] != "/api/mirror/apply" {
		t.Fatalf("path: want passthrough got=%v", out[3])
	}
}

func TestSanitizeKVsHashesClientKey(t *testing.T) {
	out := sanitizeKVs([]interface{}{"client_key", "acme"})
	got, _ := out[1].(string)
	if !strings.HasPrefix(got, "hash:") || len(got) != len("hash:")+12 {
		t.Fatalf("client_key: want hash:<12 hex> got=%q", got)
	}
	again := sanitizeKVs([]interface{}{"client_key", "acme"})
	if again[1] != out[1] {
		t.Fatalf("hash not stable: %v vs %v", out[1], again[1])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"id", "t1", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %#v", out)
	}
}
