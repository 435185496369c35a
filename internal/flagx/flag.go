// Package flagx lets several loaders share one command line. Each loader
// filters the arguments down to the flags it owns before parsing, so an
// unknown flag meant for another loader never aborts it.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// name returns the flag name of arg without leading dashes and any
// "=value" suffix, or "" when arg is not a flag.
func name(arg string) string {
	if len(arg) < 2 || arg[0] != '-' || arg == "--" {
		return ""
	}
	n := strings.TrimLeft(arg, "-")
	n, _, _ = strings.Cut(n, "=")
	return n
}

// FilterArgs keeps the flags listed in allowed together with their values.
// Names may be given with or without dashes; "-c" and "--c" are treated
// alike, as the flag package does. A value is taken from "-c=x" or from the
// following argument when that does not look like a flag. Arguments after
// "--" are ignored.
func FilterArgs(args []string, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		set[strings.TrimLeft(f, "-")] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		n := name(arg)
		if _, ok := set[n]; !ok || n == "" {
			continue
		}
		filtered = append(filtered, arg)
		if strings.Contains(arg, "=") {
			continue
		}
		if i+1 < len(args) && name(args[i+1]) == "" && args[i+1] != "--" {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// ConfigPath returns the value of -c / -config in args, the last one
// winning, or "" when neither is present.
func ConfigPath(args []string) string {
	var path string
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"c", "config"}))
	return path
}
