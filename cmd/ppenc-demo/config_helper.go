package main

import "github.com/flickpp/ppenc/internal/config"

// loadConfig loads configuration from path, falling back to defaults when
// path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
