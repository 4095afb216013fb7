package rules

import (
	"errors"
	"fmt"
	"testing"
)

func TestHasAnyFlag(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		flags []string
		want  bool
	}{
		// Exact match.
		{"exact short", []string{"-f"}, []string{"-f"}, true},
		{"exact long", []string{"--force"}, []string{"--force"}, true},
		{"no match", []string{"-v"}, []string{"-f"}, false},

		// Combined short flags.
		{"combined rf matches r", []string{"-rf"}, []string{"-r"}, true},
		{"combined rf matches f", []string{"-rf"}, []string{"-f"}, true},
		{"combined rf no match x", []string{"-rf"}, []string{"-x"}, false},

		// Short flag with value (e.g., -j4).
		{"j4 matches j", []string{"-j4"}, []string{"-j"}, true},
		{"j8 matches j", []string{"-j8"}, []string{"-j"}, true},
		{"j matches j", []string{"-j"}, []string{"-j"}, true},
		{"j4 no match k", []string{"-j4"}, []string{"-k"}, false},

		// Long flag with =.
		{"force=yes matches force", []string{"--force=yes"}, []string{"--force"}, true},
		{"initial-branch=master", []string{"--initial-branch=master"}, []string{"--initial-branch"}, true},
		{"force no equals", []string{"--force"}, []string{"--force"}, true},
		{"no match long", []string{"--verbose"}, []string{"--force"}, false},

		// Non-flag args should be skipped.
		{"non-flag path", []string{"/tmp/file"}, []string{"-f"}, false},
		{"non-flag word", []string{"hello"}, []string{"-f"}, false},
		{"empty arg", []string{""}, []string{"-f"}, false},

		// Mixed args.
		{"mixed", []string{"file.txt", "-r", "dir/"}, []string{"-r"}, true},
		{"mixed no match", []string{"file.txt", "-r", "dir/"}, []string{"-f"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hasAnyFlag(tt.args, tt.flags...)
			if got != tt.want {
				t.Errorf("hasAnyFlag(%v, %v) = %v, want %v",
					tt.args, tt.flags, got, tt.want)
			}
		})
	}
}

func stages(argv ...string) Command {
	return Command{Kind: "execution", Line: "", Stages: [][]string{argv}}
}

func TestRuleSetCheck(t *testing.T) {
	errHardcoded := fmt.Errorf("hardcoded block")
	errConfig := fmt.Errorf("config block")

	t.Run("hardcoded fires first", func(t *testing.T) {
		rs := NewRuleSet(func(name string, args []string) error {
			if name == "rm" {
				return errHardcoded
			}
			return nil
		})
		rs.AddConfig(func(name string, args []string) error {
			if name == "rm" {
				return errConfig
			}
			return nil
		})

		err := rs.Check(stages("rm", "-rf", "/"))
		var deny *DenyError
		if !errors.As(err, &deny) {
			t.Fatalf("expected DenyError, got %v", err)
		}
		if deny.Rule != "hardcoded" || deny.Reason != errHardcoded.Error() {
			t.Errorf("unexpected denial %+v", deny)
		}
	})

	t.Run("config fires when hardcoded passes", func(t *testing.T) {
		rs := NewRuleSet(func(name string, args []string) error {
			return nil // hardcoded passes
		})
		rs.AddConfig(func(name string, args []string) error {
			if name == "make" {
				return errConfig
			}
			return nil
		})

		err := rs.Check(stages("make", "-j4"))
		var deny *DenyError
		if !errors.As(err, &deny) || deny.Rule != "config" {
			t.Errorf("expected config denial, got %v", err)
		}
	})

	t.Run("all pass", func(t *testing.T) {
		rs := NewRuleSet(func(name string, args []string) error { return nil })
		rs.AddConfig(func(name string, args []string) error { return nil })

		if err := rs.Check(stages("grep", "-r", "TODO")); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("empty ruleset", func(t *testing.T) {
		rs := NewRuleSet()
		if err := rs.Check(stages("grep", "-r", "TODO")); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("every stage is checked", func(t *testing.T) {
		rs := NewRuleSet(Hardcoded()...)
		cmd := Command{
			Kind:   "piping",
			Line:   "echo hi | rm -rf /",
			Stages: [][]string{{"echo", "hi"}, {"rm", "-rf", "/"}},
		}
		if err := rs.Check(cmd); err == nil {
			t.Error("expected second stage to be denied")
		}
	})

	t.Run("program path is reduced to its base name", func(t *testing.T) {
		rs := NewRuleSet(Hardcoded()...)
		if err := rs.Check(stages("/bin/rm", "-r", ".")); err == nil {
			t.Error("expected /bin/rm to be treated as rm")
		}
	})

	t.Run("empty stages are skipped", func(t *testing.T) {
		rs := NewRuleSet(Hardcoded()...)
		cmd := Command{Kind: "piping", Stages: [][]string{{}, {"cat"}}}
		if err := rs.Check(cmd); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}
