// Package flagx contains helpers for reading a subset of command-line flags
// without clashing with flag sets owned by other components.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the flags listed in allowedFlags, together with
// their values. Both "-f value" and "-f=value" forms are recognised; a token
// starting with "-" is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// stringFlag parses os.Args for a single string option registered under
// every name in names. The last occurrence wins.
func stringFlag(set string, names []string, def, usage string) string {
	allowed := make([]string, 0, len(names))
	for _, n := range names {
		allowed = append(allowed, "-"+n)
	}
	args := FilterArgs(os.Args[1:], allowed)

	var v string
	fs := flag.NewFlagSet(set, flag.ContinueOnError)
	for _, n := range names {
		fs.StringVar(&v, n, def, usage)
	}
	_ = fs.Parse(args)

	return v
}

// JsonConfigFlags returns the path given with -c or -config, or "".
func JsonConfigFlags() string {
	return stringFlag("json", []string{"c", "config"}, "", "path to JSON config file")
}

// EnvFileFlag returns the path given with -env, or def.
func EnvFileFlag(def string) string {
	return stringFlag("env", []string{"env"}, def, "path to .env file")
}
