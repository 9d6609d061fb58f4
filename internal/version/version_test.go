package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestDefaultVersion(t *testing.T) {
	if Version == "" {
		t.Fatal("Version should have a default value")
	}
}

func TestColoredKeepsText(t *testing.T) {
	prevNoColor, prevVersion := color.NoColor, Version
	t.Cleanup(func() { color.NoColor, Version = prevNoColor, prevVersion })
	color.NoColor = true

	tests := []string{
		"0.1.0-dev",
		"1.2.3",
		"1.2.3-rc.1+build.123",
		"dev",
		"1.2",
	}
	for _, v := range tests {
		Version = v
		if got := Colored(); got != v {
			t.Errorf("Colored() with %q = %q", v, got)
		}
	}
}

func TestColoredAddsEscapes(t *testing.T) {
	prevNoColor, prevVersion := color.NoColor, Version
	t.Cleanup(func() { color.NoColor, Version = prevNoColor, prevVersion })
	color.NoColor = false
	Version = "1.2.3"

	if got := Colored(); got == Version || len(got) <= len(Version) {
		t.Fatalf("expected ANSI escapes around the components, got %q", got)
	}
}
