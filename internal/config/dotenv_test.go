package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDotEnv(t *testing.T, project, body string) string {
	t.Helper()
	if err := os.MkdirAll(GrapeDir(project), 0o755); err != nil {
		t.Fatal(err)
	}
	p := DotEnvPath(project)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDotEnv_NotExist(t *testing.T) {
	m, err := LoadDotEnv(t.TempDir())
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty map, got %v", m)
	}
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	project := t.TempDir()
	writeDotEnv(t, project, "# comment\nA=1\n B =two=2\nnoequals\n=x\n")

	m, err := LoadDotEnv(project)
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if m["A"] != "1" || m["B"] != "two=2" || len(m) != 2 {
		t.Fatalf("unexpected map: %v", m)
	}
}

func TestGetConfigValue_EnvOverridesDotEnv(t *testing.T) {
	project := t.TempDir()
	writeDotEnv(t, project, "GRAPE_TEST_K=fromdotenv\n")

	v, err := GetConfigValue(project, "GRAPE_TEST_K")
	if err != nil {
		t.Fatalf("GetConfigValue: %v", err)
	}
	if v != "fromdotenv" {
		t.Fatalf("expected dotenv value, got %q", v)
	}

	t.Setenv("GRAPE_TEST_K", "fromenv")
	v, err = GetConfigValue(project, "GRAPE_TEST_K")
	if err != nil {
		t.Fatalf("GetConfigValue: %v", err)
	}
	if v != "fromenv" {
		t.Fatalf("expected env override, got %q", v)
	}
}

func TestEnsureDotEnvTemplate_DoesNotOverwrite(t *testing.T) {
	project := t.TempDir()
	p := writeDotEnv(t, project, "GRAPE_INDEX=keep\n")

	if err := EnsureDotEnvTemplate(project); err != nil {
		t.Fatalf("EnsureDotEnvTemplate: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "GRAPE_INDEX=keep\n" {
		t.Fatalf("template overwrote existing file: %q", string(b))
	}
}

func TestEnsureDotEnvTemplate_CreatesWhenMissing(t *testing.T) {
	project := t.TempDir()
	if err := EnsureDotEnvTemplate(project); err != nil {
		t.Fatalf("EnsureDotEnvTemplate: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(project, ".grape", ".env"))
	if err != nil {
		t.Fatal(err)
	}
	if len(b) == 0 {
		t.Fatalf("expected non-empty template")
	}
}
