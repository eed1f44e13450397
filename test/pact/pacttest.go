//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	ProviderName = "refdata-api"
	ConsumerName = "refdata-portal"

	StateAssetsBaseline = "assets baseline"
	StateAssetExists    = "asset with id 1 exists"
	StateAssetMissing   = "no asset with id 404"
)

const (
	ExistingAssetID int64 = 1
	MissingAssetID  int64 = 404
)

const (
	exampleAssetName   = "Apple Inc."
	exampleAssetSymbol = "AAPL"
)

// PactDir returns the workspace-level directory for generated pact files.
func PactDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "pacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact dir: %v", err)
	}
	return dir
}

// PactFile returns the canonical pact file path for the portal consumer.
func PactFile(t testing.TB) string {
	t.Helper()
	return filepath.Join(PactDir(t), ConsumerName+"-"+ProviderName+".json")
}

// LogDir returns the log output directory for pact-go.
func LogDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "bin", "pact-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact log dir: %v", err)
	}
	return dir
}

// ExampleAssetPayload provides stable test data for pact interactions.
func ExampleAssetPayload() map[string]any {
	return map[string]any{
		"name":        exampleAssetName,
		"description": "Common stock",
		"attributes":  map[string]string{"symbol": exampleAssetSymbol},
	}
}

// projectRoot walks up from this file to the workspace root.
func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
