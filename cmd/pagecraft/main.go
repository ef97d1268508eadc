package main

import (
	"os"
	"strings"

	"pagecraft/internal/cli"
)

// isFamilyID matches "<kind>:<name>" family ids such as menu:main or page:home.
func isFamilyID(s string) bool {
	s = strings.TrimSpace(s)
	i := strings.IndexByte(s, ':')
	return i > 0 && i < len(s)-1 && !strings.ContainsAny(s, " /")
}

// rewriteFamilyShortcutArgs turns `pagecraft <family>` into `pagecraft items tree
// <family>`. Cobra treats the first positional token as a subcommand, so argv is
// rewritten before parsing; persistent flags may come first.
func rewriteFamilyShortcutArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--config":    true,
		"--store":     true,
		"--dir":       true,
		"--dsn":       true,
		"--format":    true,
		"--log-level": true,
	}
	boolFlags := map[string]bool{
		"--pretty": true,
	}

	insert := func(at int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:at]...)
		out = append(out, "items", "tree")
		return append(out, argv[at:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isFamilyID(argv[i+1]) {
				return insert(i + 1)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++
			}
			continue
		}
		if isFamilyID(a) {
			return insert(i)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteFamilyShortcutArgs(os.Args)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
