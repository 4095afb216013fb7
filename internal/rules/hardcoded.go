package rules

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Hardcoded returns the built-in safety rules that are always enforced
// regardless of configuration.
func Hardcoded() []CheckFunc {
	return []CheckFunc{
		checkRmCatastrophic,
	}
}

// checkRmCatastrophic blocks recursive removal of root, home, or current directory.
func checkRmCatastrophic(name string, args []string) error {
	if name != "rm" {
		return nil
	}
	if !hasAnyFlag(args, "-r", "-R", "--recursive") {
		return nil
	}
	for _, arg := range args {
		if arg == "" || arg[0] == '-' {
			continue
		}
		cleaned := filepath.Clean(arg)
		if cleaned == "/" || cleaned == "." || cleaned == ".." ||
			arg == "~" || strings.HasPrefix(arg, "~/") && filepath.Clean(arg[2:]) == "." {
			return fmt.Errorf("refusing to recursively remove %q", arg)
		}
	}
	return nil
}
