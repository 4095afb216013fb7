package rules

import (
	"fmt"
	"sort"
)

// CommandRule represents one program's rules from YAML config.
type CommandRule struct {
	RejectFlags []string           `yaml:"reject_flags"`
	Subcommands map[string]SubRule `yaml:"subcommands"`
}

// SubRule represents rules for a specific subcommand.
type SubRule struct {
	RejectFlags []string `yaml:"reject_flags"`
}

// CompileCommandRule turns a single program's config into CheckFuncs.
func CompileCommandRule(name string, cfg CommandRule) []CheckFunc {
	var fns []CheckFunc

	if len(cfg.RejectFlags) > 0 {
		flags := cfg.RejectFlags
		fns = append(fns, func(n string, args []string) error {
			if n != name {
				return nil
			}
			if hasAnyFlag(args, flags...) {
				return fmt.Errorf("%s: rejected flag", name)
			}
			return nil
		})
	}

	subs := make([]string, 0, len(cfg.Subcommands))
	for sub := range cfg.Subcommands {
		subs = append(subs, sub)
	}
	sort.Strings(subs)
	for _, sub := range subs {
		flags := cfg.Subcommands[sub].RejectFlags
		if len(flags) == 0 {
			continue
		}
		fns = append(fns, func(n string, args []string) error {
			if n != name || len(args) == 0 || args[0] != sub {
				return nil
			}
			if hasAnyFlag(args[1:], flags...) {
				return fmt.Errorf("%s %s: rejected flag", name, sub)
			}
			return nil
		})
	}

	return fns
}

// Compile builds a RuleSet from hardcoded rules plus the given config rules,
// applied in name order so denials are deterministic.
func Compile(cfg map[string]CommandRule) *RuleSet {
	rs := NewRuleSet(Hardcoded()...)
	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, fn := range CompileCommandRule(name, cfg[name]) {
			rs.AddConfig(fn)
		}
	}
	return rs
}
