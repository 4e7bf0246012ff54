package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/HerbHall/peeringmanager/internal/version"
)

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), version.Short()) {
		t.Errorf("output %q lacks version %q", out.String(), version.Short())
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"serve", "migrate", "render", "diff", "candidates", "backup", "restore", "version"} {
		if c, _, err := cmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %s not found: %v", name, err)
		}
	}
}

func TestRenderCmd_RequiresExchange(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"render"})
	if err := cmd.Execute(); err == nil {
		t.Error("render without an exchange succeeded")
	}
}

func TestPrintDiff_Plain(t *testing.T) {
	var out bytes.Buffer
	printDiff(&out, "--- running\n+++ candidate\n context\n-old\n+new\n", false)
	want := "--- running\n+++ candidate\n context\n-old\n+new\n"
	if out.String() != want {
		t.Errorf("printDiff = %q, want %q", out.String(), want)
	}
}
