package cli

import "strings"

// legacyFlags are the single-dash spellings accepted by the classic
// multi-threaded reprojection test program. Matching ignores case.
var legacyFlags = []string{"threads", "iter", "createctinthread"}

// NormalizeLegacyArgs rewrites "-threads 4", "-iter=100" and
// "-createctinthread" to their lowercase double-dash forms so pflag does
// not read them as bundles of shorthand flags. Everything after "--" is left alone.
func NormalizeLegacyArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i, arg := range out {
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			continue
		}
		name, value, hasValue := strings.Cut(arg[1:], "=")
		for _, flag := range legacyFlags {
			if !strings.EqualFold(name, flag) {
				continue
			}
			out[i] = "--" + flag
			if hasValue {
				out[i] += "=" + value
			}
			break
		}
	}
	return out
}
