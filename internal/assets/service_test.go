package assets

import (
	"strings"
	"testing"
)

func TestObjectKeyKeepsExtension(t *testing.T) {
	key := objectKey("screenshot.PNG")
	if !strings.HasSuffix(key, ".png") {
		t.Fatalf("expected .png suffix, got %q", key)
	}
	if strings.Count(key, "/") != 2 {
		t.Fatalf("expected yyyy/mm/ prefix, got %q", key)
	}
}

func TestObjectKeyDropsOversizedExtension(t *testing.T) {
	key := objectKey("weird." + strings.Repeat("x", 20))
	if strings.Contains(key, "xxx") {
		t.Fatalf("oversized extension kept: %q", key)
	}
}

func TestObjectKeysAreUnique(t *testing.T) {
	a := objectKey("a.jpg")
	b := objectKey("a.jpg")
	if a == b {
		t.Fatalf("expected unique keys, got %q twice", a)
	}
}
