package tools

import "fmt"

// stringArg extracts a required string argument. Empty strings are allowed only
// when allowEmpty is set.
func stringArg(args map[string]any, key string, allowEmpty bool) (string, error) {
	v, exists := args[key]
	if !exists {
		return "", fmt.Errorf("%s is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	if s == "" && !allowEmpty {
		return "", fmt.Errorf("%s cannot be empty", key)
	}
	return s, nil
}
