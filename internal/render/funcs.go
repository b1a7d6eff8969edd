package render

import (
	"os"
	"strings"
	"text/template"
)

// FuncMap returns helpers available to config-time expressions.
func FuncMap(tracker *EnvTracker) template.FuncMap {
	return template.FuncMap{
		"env": func(key string) string {
			tracker.markUsed(key)
			value, ok := os.LookupEnv(key)
			if !ok {
				tracker.markMissing(key)
			}
			return value
		},
		"envOr": func(key, def string) string {
			tracker.markUsed(key)
			if value, ok := os.LookupEnv(key); ok {
				return value
			}
			return def
		},
		"default": func(def, value string) string {
			if value == "" {
				return def
			}
			return value
		},
		"lower":   strings.ToLower,
		"upper":   strings.ToUpper,
		"replace": strings.ReplaceAll,
	}
}
