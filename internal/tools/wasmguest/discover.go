package wasmguest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Discover finds guest modules under extensionsDir in either of the
// two layouts the spec documents: flat `<dir>/<name>.wasm` files, or
// the cargo sub-workspace layout
// `<dir>/tools-src/<crate>/target/wasm32-wasip1/release/*.wasm`.
// workspace is pre-opened as every discovered guest's filesystem root.
// A missing extensionsDir is not an error: it simply yields no guests.
func Discover(extensionsDir, workspace string) ([]*Guest, error) {
	var guests []*Guest

	flat, err := readWasmFiles(extensionsDir)
	if err != nil {
		return nil, err
	}
	for _, path := range flat {
		name := strings.TrimSuffix(filepath.Base(path), ".wasm")
		guests = append(guests, NewGuest(name, path, workspace))
	}

	srcRoot := filepath.Join(extensionsDir, "tools-src")
	crates, err := os.ReadDir(srcRoot)
	if errors.Is(err, os.ErrNotExist) {
		return guests, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", srcRoot, err)
	}
	for _, crate := range crates {
		if !crate.IsDir() {
			continue
		}
		releaseDir := filepath.Join(srcRoot, crate.Name(), "target", "wasm32-wasip1", "release")
		built, err := readWasmFiles(releaseDir)
		if err != nil {
			return nil, err
		}
		for _, path := range built {
			name := strings.TrimSuffix(filepath.Base(path), ".wasm")
			guests = append(guests, NewGuest(name, path, workspace))
		}
	}
	return guests, nil
}

func readWasmFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wasm") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}
