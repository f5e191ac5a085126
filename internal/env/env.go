// Package env overlays process environment variables for the duration
// of a run and puts the previous values back afterwards.
package env

import (
	"os"
	"slices"
)

// Ambient lists the variables restored after every run even when the
// overlay does not touch them. Scanner tools are known to read them.
var Ambient = []string{
	"VERACODE_API_KEY_ID",
	"VERACODE_API_KEY_SECRET",
	"veracode_api_key_id",
	"veracode_api_key_secret",
	"http_proxy",
	"HTTP_PROXY",
	"https_proxy",
	"HTTPS_PROXY",
}

type saved struct {
	value string
	ok    bool
}

// Acquire applies the overlay to the process environment and returns the
// function restoring the previous state. Keys absent before are unset.
// Empty overlay values are skipped.
//
//	restore, err := env.Acquire(overlay)
//	defer restore()
func Acquire(overlay map[string]string) (restore func(), err error) {
	keys := slices.Clone(Ambient)
	for k := range overlay {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}

	prev := make(map[string]saved, len(keys))
	for _, k := range keys {
		v, ok := os.LookupEnv(k)
		prev[k] = saved{value: v, ok: ok}
	}

	restore = func() {
		for k, s := range prev {
			if s.ok {
				_ = os.Setenv(k, s.value)
			} else {
				_ = os.Unsetenv(k)
			}
		}
	}

	for k, v := range overlay {
		if v == "" {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			restore()
			return func() {}, err
		}
	}
	return restore, nil
}
