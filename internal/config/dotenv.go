package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DotEnvPath returns the project's dotenv file (<project>/.grape/.env).
func DotEnvPath(project string) string {
	return filepath.Join(GrapeDir(project), ".env")
}

// LoadDotEnv reads <project>/.grape/.env and returns key/value pairs.
//
// Lines are KEY=VALUE. Blank lines and lines starting with '#' are ignored,
// whitespace around KEY is trimmed and VALUE is taken as-is.
func LoadDotEnv(project string) (map[string]string, error) {
	p := DotEnvPath(project)
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("cannot open dotenv file %s: %w", p, err)
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read dotenv file %s: %w", p, err)
	}
	return out, nil
}

// GetConfigValue returns the effective value for key: the process
// environment first, then the project's dotenv file.
func GetConfigValue(project, key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	dotenv, err := LoadDotEnv(project)
	if err != nil {
		return "", err
	}
	return dotenv[key], nil
}

// EnsureDotEnvTemplate creates <project>/.grape/.env if it does not exist,
// listing the override keys with empty values.
func EnsureDotEnvTemplate(project string) error {
	p := DotEnvPath(project)
	if _, err := os.Stat(p); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("cannot stat dotenv file %s: %w", p, err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(p), err)
	}

	body := "" +
		EnvIndex + "=\n" +
		EnvLogLevel + "=\n" +
		EnvLockTimeout + "=\n"

	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		return fmt.Errorf("cannot write dotenv template %s: %w", p, err)
	}
	return nil
}
