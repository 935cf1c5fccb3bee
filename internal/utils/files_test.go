package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/studydeck-cli/internal/utils"
)

func TestWriteJSONThenReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	in := map[string]int{"a": 1, "b": 2}
	if err := utils.WriteJSON(path, in); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	var out map[string]int
	found, err := utils.ReadJSON(path, &out)
	if err != nil || !found {
		t.Fatalf("ReadJSON: found=%v err=%v", found, err)
	}
	if out["a"] != 1 || out["b"] != 2 {
		t.Fatalf("unexpected content: %v", out)
	}
}

func TestReadJSONMissing(t *testing.T) {
	var out map[string]int
	found, err := utils.ReadJSON(filepath.Join(t.TempDir(), "nope.json"), &out)
	if err != nil || found {
		t.Fatalf("expected not found without error, got found=%v err=%v", found, err)
	}
}
