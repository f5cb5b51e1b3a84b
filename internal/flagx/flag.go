// Package flagx lets several configuration layers share os.Args: each layer
// picks out only the flags it owns and parses them with its own FlagSet.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the subset of args that belongs to allowedFlags,
// keeping values that follow a flag as a separate argument.
//
// Recognised shapes:
//
//	-c conf.json
//	--config=conf.json
//
// The result is never nil.
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

// lookupString parses a single string flag (with an optional short alias)
// out of os.Args, ignoring everything else.
func lookupString(long, short string) string {
	var v string
	args := FilterArgs(os.Args[1:], []string{"-" + short, "-" + long, "--" + long})

	fs := flag.NewFlagSet(long, flag.ContinueOnError)
	fs.StringVar(&v, long, "", "")
	if short != long {
		fs.StringVar(&v, short, "", "")
	}
	_ = fs.Parse(args)

	return v
}

// JsonConfigFlags returns the JSON config path given with -c or -config,
// or an empty string when neither is present.
func JsonConfigFlags() string {
	return lookupString("config", "c")
}

// EnvFileFlags returns the dotenv path given with -env, or an empty string.
func EnvFileFlags() string {
	return lookupString("env", "env")
}
