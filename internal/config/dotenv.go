package config

import (
	"os"

	"github.com/joho/godotenv"
)

// dotEnvFiles lists candidates from most to least specific
func dotEnvFiles(env string) []string {
	files := []string{}
	if env != "" {
		files = append(files, ".env."+env+".local")
	}
	files = append(files, ".env.local")
	if env != "" {
		files = append(files, ".env."+env)
	}
	return append(files, ".env")
}

// LoadDotEnv loads whichever .env files exist for APP_ENV. godotenv never
// overrides a variable that is already set, so the process environment wins
// and earlier files win over later ones. Returns the files loaded.
func LoadDotEnv() []string {
	var loaded []string
	for _, f := range dotEnvFiles(os.Getenv("APP_ENV")) {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}
