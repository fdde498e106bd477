package script

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"es2023": api.ES2023,
	"es2024": api.ES2024,
	"esnext": api.ESNext,
}

// ParseTarget maps a language level such as "es2017" to an esbuild target.
func ParseTarget(raw string) (api.Target, bool) {
	t, ok := targets[strings.ToLower(strings.TrimSpace(raw))]
	return t, ok
}
