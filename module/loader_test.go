package module

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeRegistry(t *testing.T, packages ...string) string {
	t.Helper()
	var reg Registry
	for _, name := range packages {
		reg.Packages = append(reg.Packages, Package{Name: name, Version: "1.0.0"})
	}
	data, err := json.Marshal(reg)
	if err != nil {
		t.Fatalf("marshal registry: %s", err)
	}
	path := filepath.Join(t.TempDir(), "registry.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write registry: %s", err)
	}
	return path
}

func TestLoadAndResolveInstalledPackage(t *testing.T) {
	path := writeRegistry(t, "collections", "strings")
	loader, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if loader.Resolve("collections") != Installed {
		t.Error("expected collections to resolve as Installed")
	}
	if loader.Resolve("nope") != NotInstalled {
		t.Error("expected an unregistered path to resolve as NotInstalled")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json")); err == nil {
		t.Fatal("expected an error loading a missing registry file, got nil")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %s", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error loading malformed JSON, got nil")
	}
}

// TestNilLoaderResolvesNothing covers the documented fallback for when no
// registry is configured at all.
func TestNilLoaderResolvesNothing(t *testing.T) {
	var loader *Loader
	if loader.Resolve("anything") != NotInstalled {
		t.Error("expected a nil Loader to resolve everything as NotInstalled")
	}
}

func TestResolveAllReturnsFirstMissingPath(t *testing.T) {
	path := writeRegistry(t, "collections")
	loader, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	missing, err := loader.ResolveAll(context.Background(), []string{"collections", "nope", "also-nope"})
	if err != nil {
		t.Fatalf("ResolveAll: %s", err)
	}
	if missing == "" {
		t.Fatal("expected a missing path, got none")
	}
	if missing != "nope" && missing != "also-nope" {
		t.Errorf("expected one of the unregistered paths, got %q", missing)
	}
}

func TestResolveAllReturnsEmptyWhenAllInstalled(t *testing.T) {
	path := writeRegistry(t, "collections", "strings")
	loader, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	missing, err := loader.ResolveAll(context.Background(), []string{"collections", "strings"})
	if err != nil {
		t.Fatalf("ResolveAll: %s", err)
	}
	if missing != "" {
		t.Errorf("expected no missing paths, got %q", missing)
	}
}
