package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publish writes b under root and makes it the current bundle. Files are
// staged in a private directory, synced, checksummed into the manifest and
// renamed into bundles/ before the current link is swapped. On any failure
// the staging directory is removed and current is left as it was.
func Publish(ctx context.Context, root string, b *Bundle, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if b == nil || b.Encoders == nil || b.Models.Linear == nil || b.Models.Forest == nil {
		return "", ErrIncompleteBundle
	}
	if err := os.MkdirAll(filepath.Join(root, BundlesDir), 0o755); err != nil {
		return "", fmt.Errorf("create bundle dir: %w", err)
	}

	unlock, err := acquireLock(root)
	if err != nil {
		return "", err
	}
	defer unlock()

	staging := filepath.Join(root, stagingPrefix+uuid.NewString())
	if err := os.Mkdir(staging, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	published := false
	defer func() {
		if !published {
			if err := os.RemoveAll(staging); err != nil {
				logger.Warn("remove staging dir", zap.String("dir", staging), zap.Error(err))
			}
		}
	}()

	steps := []struct {
		name string
		save func(string) error
	}{
		{LinearModelFile, b.Models.Linear.Save},
		{ForestModelFile, b.Models.Forest.Save},
		{"encoders", func(string) error { return b.Encoders.Save(staging) }},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := step.save(filepath.Join(staging, step.name)); err != nil {
			return "", fmt.Errorf("write %s: %w", step.name, err)
		}
	}

	manifest := b.Manifest
	manifest.Checksums = make(map[string]string, len(ArtifactFiles()))
	for _, name := range ArtifactFiles() {
		path := filepath.Join(staging, name)
		if err := syncFile(path); err != nil {
			return "", err
		}
		sum, err := checksum(path)
		if err != nil {
			return "", err
		}
		manifest.Checksums[name] = sum
	}
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", err
	}
	manifestPath := filepath.Join(staging, ManifestFile)
	if err := os.WriteFile(manifestPath, payload, 0o600); err != nil {
		return "", err
	}
	if err := syncFile(manifestPath); err != nil {
		return "", err
	}
	if err := syncDir(staging); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	final := filepath.Join(root, BundlesDir, manifest.Version)
	if err := os.Rename(staging, final); err != nil {
		return "", fmt.Errorf("move bundle into place: %w", err)
	}
	published = true

	if err := swapCurrent(root, manifest.Version); err != nil {
		return "", err
	}
	b.Manifest = manifest
	logger.Info("bundle published",
		zap.String("version", manifest.Version),
		zap.String("dir", final),
	)
	return final, nil
}

// swapCurrent points root/current at bundles/<version> with a rename, which
// replaces the old link in one step.
func swapCurrent(root, version string) error {
	tmp := filepath.Join(root, ".current-"+uuid.NewString())
	if err := os.Symlink(filepath.Join(BundlesDir, version), tmp); err != nil {
		return fmt.Errorf("create current link: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(root, CurrentLink)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("swap current link: %w", err)
	}
	return syncDir(root)
}

func acquireLock(root string) (func(), error) {
	path := filepath.Join(root, lockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: remove %s if no training run is active", ErrPublishInProgress, path)
		}
		return nil, fmt.Errorf("acquire publish lock: %w", err)
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	_ = f.Close()
	return func() { _ = os.Remove(path) }, nil
}

func checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

func syncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}
