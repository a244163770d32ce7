package config

import (
	"strings"

	"github.com/spf13/viper"
)

// envBool reads a feature flag.
//
// Accepted truthy values: 1, true, yes, y (case-insensitive).
func envBool(v *viper.Viper, key string) bool {
	return truthy(v.GetString(key))
}

func truthy(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	return s == "1" || s == "true" || s == "yes" || s == "y"
}
