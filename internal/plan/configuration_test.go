package plan_test

import (
	"strings"
	"testing"

	"stagehand/internal/plan"
)

func TestParseConfigurationCaseInsensitive(t *testing.T) {
	cases := map[string]plan.Configuration{
		"debug":          plan.Debug,
		"Release":        plan.Release,
		"RELEASE":        plan.Release,
		" minsizerel ":   plan.MinSizeRel,
		"relwithdebinfo": plan.RelWithDebInfo,
	}
	for input, want := range cases {
		got, ok := plan.ParseConfiguration(input)
		if !ok {
			t.Fatalf("expected %q to parse", input)
		}
		if got != want {
			t.Fatalf("parse %q: got %q want %q", input, got, want)
		}
	}

	if _, ok := plan.ParseConfiguration("Optimized"); ok {
		t.Fatal("expected unknown configuration to fail")
	}
	if _, ok := plan.ParseConfiguration(""); ok {
		t.Fatal("expected empty configuration to fail")
	}
}

func TestSelectConfiguration(t *testing.T) {
	got, err := plan.SelectConfiguration("debug", "Release")
	if err != nil {
		t.Fatalf("SelectConfiguration returned error: %v", err)
	}
	if got != plan.Debug {
		t.Fatalf("expected explicit request to win, got %q", got)
	}

	got, err = plan.SelectConfiguration("", "minsizerel")
	if err != nil {
		t.Fatalf("SelectConfiguration returned error: %v", err)
	}
	if got != plan.MinSizeRel {
		t.Fatalf("expected plan default, got %q", got)
	}

	got, err = plan.SelectConfiguration("", "")
	if err != nil {
		t.Fatalf("SelectConfiguration returned error: %v", err)
	}
	if got != plan.Release {
		t.Fatalf("expected Release fallback, got %q", got)
	}

	_, err = plan.SelectConfiguration("Optimized", "")
	if err == nil {
		t.Fatal("expected error for unknown configuration")
	}
	if !strings.Contains(err.Error(), "Release") {
		t.Fatalf("expected error to list known names, got %q", err)
	}
}

func TestExpandPlaceholders(t *testing.T) {
	got := plan.ExpandPlaceholders("OpusTargets-@CONFIG@.cmake", plan.MinSizeRel)
	if got != "OpusTargets-minsizerel.cmake" {
		t.Fatalf("unexpected expansion: %q", got)
	}
	got = plan.ExpandPlaceholders("libopus.a", plan.Release)
	if got != "libopus.a" {
		t.Fatalf("expected plain name unchanged, got %q", got)
	}
}
