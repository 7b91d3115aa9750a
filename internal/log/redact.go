package log

import (
	"regexp"
	"sort"
	"strings"
)

// Redacted replaces secret values in log output.
const Redacted = "[redacted]"

var (
	templateVarPattern = regexp.MustCompile(`\$\{[^}]+\}`)
	secretNamePattern  = regexp.MustCompile(`(?i)(PASSWORD|PASSWD|SECRET|TOKEN|API_?KEY|ACCESS_?KEY|PRIVATE_?KEY|CREDENTIAL)`)
	secretKeyPattern   = regexp.MustCompile(`(?i)\b([A-Z0-9_]*(?:PASSWORD|SECRET|TOKEN|API_KEY|ACCESS_KEY)[A-Z0-9_]*)\b(\s*[:=]\s*)(["']?)([^"'\s]+)(["']?)`)
)

// IsSecretKey reports whether an environment variable name looks like it
// carries a credential.
func IsSecretKey(key string) bool {
	return secretNamePattern.MatchString(key)
}

// RedactEnv renders env overrides as sorted KEY=VALUE pairs with secret
// values masked.
func RedactEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		value := env[k]
		if IsSecretKey(k) {
			value = Redacted
		}
		out = append(out, k+"="+value)
	}
	return out
}

// RedactSecrets masks ${VAR} template references and KEY=value assignments
// whose key looks secret.
func RedactSecrets(message string) string {
	if message == "" {
		return message
	}
	redacted := templateVarPattern.ReplaceAllStringFunc(message, func(string) string {
		return "${" + Redacted + "}"
	})
	return secretKeyPattern.ReplaceAllString(redacted, "$1$2$3"+Redacted+"$5")
}

// RedactArgs applies RedactSecrets to every argument and joins them for
// display.
func RedactArgs(args []string) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = RedactSecrets(arg)
	}
	return strings.Join(parts, " ")
}
