package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"vgsales/encoder"
	"vgsales/ml"
)

// Resolve returns the directory current points at.
func Resolve(root string) (string, error) {
	dir, err := filepath.EvalSymlinks(filepath.Join(root, CurrentLink))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: no current bundle under %s", ErrArtifactMissing, root)
		}
		return "", fmt.Errorf("%w: %v", ErrArtifactMissing, err)
	}
	return dir, nil
}

// Exists reports whether root has a published bundle.
func Exists(root string) bool {
	_, err := Resolve(root)
	return err == nil
}

// Load reads the current bundle. current is resolved once so every file comes
// from the same bundle directory.
func Load(root string) (*Bundle, error) {
	dir, err := Resolve(root)
	if err != nil {
		return nil, err
	}
	return LoadDir(dir)
}

// LoadDir reads a bundle from dir, verifying the manifest checksums.
func LoadDir(dir string) (*Bundle, error) {
	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	if err := verify(dir, manifest); err != nil {
		return nil, err
	}

	encoders, err := encoder.Load(dir)
	if err != nil {
		if isArtifactMissing(err) {
			return nil, fmt.Errorf("%w: %v", ErrArtifactMissing, err)
		}
		return nil, err
	}
	linear, err := ml.LoadModel(ml.TypeLinearRegression, filepath.Join(dir, LinearModelFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactMissing, LinearModelFile, err)
	}
	forest, err := ml.LoadModel(ml.TypeRandomForest, filepath.Join(dir, ForestModelFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactMissing, ForestModelFile, err)
	}
	return &Bundle{
		Encoders: encoders,
		Models: ml.Pair{
			Linear: linear.(*ml.LinearRegression),
			Forest: forest.(*ml.RandomForest),
		},
		Manifest: manifest,
	}, nil
}

func readManifest(dir string) (Manifest, error) {
	var manifest Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return manifest, fmt.Errorf("%w: %s: %v", ErrArtifactMissing, ManifestFile, err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("%w: %s: %v", ErrArtifactMissing, ManifestFile, err)
	}
	if manifest.Format != FormatVersion {
		return manifest, fmt.Errorf("%w: unsupported bundle format %d", ErrArtifactMissing, manifest.Format)
	}
	return manifest, nil
}

func verify(dir string, manifest Manifest) error {
	for _, name := range ArtifactFiles() {
		want, ok := manifest.Checksums[name]
		if !ok {
			return fmt.Errorf("%w: manifest has no checksum for %s", ErrArtifactMissing, name)
		}
		got, err := checksum(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrArtifactMissing, name, err)
		}
		if got != want {
			return fmt.Errorf("%w: %s checksum mismatch", ErrArtifactMissing, name)
		}
	}
	return nil
}

// Versions lists published bundle versions, oldest first.
func Versions(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, BundlesDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// Prune removes all but the newest keep bundles and never the current one.
// Staging directories left by dead runs are removed when no publish holds
// the lock.
func Prune(root string, keep int) ([]string, error) {
	versions, err := Versions(root)
	if err != nil {
		return nil, err
	}
	current := ""
	if dir, err := Resolve(root); err == nil {
		current = filepath.Base(dir)
	}

	var removed []string
	if keep < 1 {
		keep = 1
	}
	for i := 0; i < len(versions)-keep; i++ {
		if versions[i] == current {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, BundlesDir, versions[i])); err != nil {
			return removed, err
		}
		removed = append(removed, versions[i])
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return removed, err
	}
	if _, err := os.Stat(filepath.Join(root, lockFile)); err == nil {
		return removed, nil
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), stagingPrefix) {
			if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
				return removed, err
			}
		}
	}
	return removed, nil
}
