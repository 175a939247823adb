package main

import (
	"testing"

	"github.com/lorehq/loreboot"
)

func TestStripSentinels(t *testing.T) {
	args := []string{"pytest", loreboot.FlagEnvLaunched, "-x", loreboot.FlagEnvChecked}
	got := stripSentinels(args)

	if len(got) != 2 {
		t.Fatalf("Expected 2 args, got %v", got)
	}
	if got[0] != "pytest" || got[1] != "-x" {
		t.Errorf("Expected sentinels removed, got %v", got)
	}
}

func TestStripSentinelsNoop(t *testing.T) {
	args := []string{"python", "manage.py"}
	got := stripSentinels(args)
	if len(got) != 2 || got[0] != "python" || got[1] != "manage.py" {
		t.Errorf("Expected args unchanged, got %v", got)
	}
}
