package config

import "os"

// ExpandEnv expands ${VAR} and $VAR references in YAML content before
// parsing. Missing variables expand to empty string; validation is
// responsible for catching fields that end up empty as a result.
func ExpandEnv(data []byte) []byte {
	return []byte(os.Expand(string(data), os.Getenv))
}
