// Package cli holds flag helpers shared by the clipper subcommands.
package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// envOverrideVars are checked before the --env flag. They let wrappers and
// unit files point every subcommand at one env file without rewriting flags.
var envOverrideVars = []string{"CLIPPER_ENV_FILE", "HORSE_ENV_FILE"}

// EnvLoader resolves which .env file to load for a subcommand. Values from
// the file override the inherited environment, matching godotenv.Overload.
type EnvLoader struct {
	flagValue   *string
	defaultPath string
}

// AddEnvFlag registers the --env flag on fs and returns the loader tied to it.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}

	return &EnvLoader{
		flagValue:   fs.String("env", defaultPath, description),
		defaultPath: defaultPath,
	}
}

// Load tries the override variables first, then the flag value, then the
// flag value's basename in the working directory, then the default path. The
// first file that loads wins and its path is returned. When nothing loads an
// error is returned; callers treat that as a warning since production
// deployments often configure through real environment variables instead.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	for _, envVar := range envOverrideVars {
		custom := strings.TrimSpace(os.Getenv(envVar))
		if custom == "" {
			continue
		}
		if err := godotenv.Overload(custom); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load %s=%s\n", envVar, custom)
			continue
		}
		return custom, nil
	}

	requested := l.defaultPath
	if l.flagValue != nil && strings.TrimSpace(*l.flagValue) != "" {
		requested = strings.TrimSpace(*l.flagValue)
	}

	candidates := []string{requested}
	if base := filepath.Base(requested); base != "" && base != requested {
		candidates = append(candidates, base)
	}
	if requested != l.defaultPath {
		candidates = append(candidates, l.defaultPath)
	}

	for _, candidate := range candidates {
		if err := godotenv.Overload(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("failed to load env file from %s", requested)
}
