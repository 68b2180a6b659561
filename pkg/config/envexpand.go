package config

import "os"

// ExpandEnv expands ${VAR} / $VAR references inside a raw config value
// using the standard library's shell-style expansion. Missing variables
// expand to empty string; Validator is responsible for catching
// required fields that end up empty.
func ExpandEnv(raw string) string {
	return os.ExpandEnv(raw)
}
