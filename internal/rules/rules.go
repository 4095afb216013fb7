// Package rules decides whether a command line may run. Hardcoded rules
// protect against catastrophic operations, config rules reject specific
// flags, and an optional Starlark script can veto anything.
package rules

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CheckFunc validates one stage: name is the program (argv[0] without its
// directory) and args are the remaining words. Returns a non-nil error to
// block execution.
type CheckFunc func(name string, args []string) error

// DenyError is returned when a rule refuses a command.
type DenyError struct {
	Rule   string // "hardcoded", "config", or "script"
	Reason string
}

func (e *DenyError) Error() string {
	return fmt.Sprintf("denied by %s rule: %s", e.Rule, e.Reason)
}

// Command is what the guard sees for one dispatch.
type Command struct {
	Kind   string     // classification slug, e.g. "piping"
	Line   string     // raw command text
	Stages [][]string // best-effort argument vectors; may be empty
}

// RuleSet holds an ordered list of validation rules. Hardcoded rules run first
// and cannot be removed. Config rules are appended after, and the script (if
// any) runs last.
type RuleSet struct {
	hardcoded []CheckFunc
	config    []CheckFunc
	script    *Script
}

// NewRuleSet creates a RuleSet with the given hardcoded rules.
func NewRuleSet(hardcoded ...CheckFunc) *RuleSet {
	return &RuleSet{hardcoded: hardcoded}
}

// AddConfig appends a config-driven rule.
func (rs *RuleSet) AddConfig(fn CheckFunc) {
	rs.config = append(rs.config, fn)
}

// SetScript installs a Starlark guard consulted after every stage passes.
func (rs *RuleSet) SetScript(s *Script) {
	rs.script = s
}

// Check runs every rule against every stage of cmd, then the script.
// A refusal is a *DenyError; any other error means the guard itself broke.
func (rs *RuleSet) Check(cmd Command) error {
	for _, argv := range cmd.Stages {
		if len(argv) == 0 {
			continue
		}
		name := filepath.Base(argv[0])
		args := argv[1:]
		for _, fn := range rs.hardcoded {
			if err := fn(name, args); err != nil {
				return deny("hardcoded", err)
			}
		}
		for _, fn := range rs.config {
			if err := fn(name, args); err != nil {
				return deny("config", err)
			}
		}
	}
	if rs.script != nil {
		return rs.script.Check(cmd)
	}
	return nil
}

func deny(rule string, err error) error {
	if _, ok := err.(*DenyError); ok {
		return err
	}
	return &DenyError{Rule: rule, Reason: err.Error()}
}

// hasAnyFlag checks whether any element in args matches one of the given flags.
// It handles:
//   - Exact match: "-f" matches "-f"
//   - Combined short flags: "-rf" matches "-r" and "-f"
//   - Short flag with value: "-j4" matches "-j"
//   - Long flag with =: "--flag=value" matches "--flag"
func hasAnyFlag(args []string, flags ...string) bool {
	for _, arg := range args {
		if arg == "" || arg[0] != '-' {
			continue
		}
		for _, flag := range flags {
			if arg == flag {
				return true
			}
			if len(flag) == 2 && flag[0] == '-' && flag[1] != '-' &&
				len(arg) > 2 && arg[1] != '-' {
				if strings.ContainsRune(arg[1:], rune(flag[1])) {
					return true
				}
			}
			if len(flag) > 2 && flag[:2] == "--" && strings.HasPrefix(arg, flag+"=") {
				return true
			}
		}
	}
	return false
}
