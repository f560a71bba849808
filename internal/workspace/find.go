// Package workspace provides campaign root discovery and the per-sample
// workspace layout.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gekflow/gek/internal/config"
)

// ErrNotFound indicates no campaign root was found.
var ErrNotFound = errors.New("not in a gek campaign (no " + config.FileName + " found)")

// RootEnv names the environment variable consulted when the working
// directory cannot be resolved (e.g. it was removed by a relaunch).
const RootEnv = "GEK_CAMPAIGN_ROOT"

// Find locates the campaign root by walking up from the given directory.
// The nearest directory holding campaign.toml wins.
// Does not resolve symlinks to stay consistent with os.Getwd().
func Find(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	current := absDir
	for {
		if info, err := os.Stat(filepath.Join(current, config.FileName)); err == nil && !info.IsDir() {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", nil
		}
		current = parent
	}
}

// FindOrError is like Find but returns ErrNotFound if no root exists.
func FindOrError(startDir string) (string, error) {
	root, err := Find(startDir)
	if err != nil {
		return "", err
	}
	if root == "" {
		return "", ErrNotFound
	}
	return root, nil
}

// FindFromCwdOrError locates the campaign root from the current directory.
// If getcwd fails, falls back to GEK_CAMPAIGN_ROOT.
func FindFromCwdOrError() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		if root := os.Getenv(RootEnv); root != "" {
			if ok, _ := IsCampaignRoot(root); ok {
				return root, nil
			}
		}
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return FindOrError(cwd)
}

// IsCampaignRoot checks if dir holds a campaign.toml.
func IsCampaignRoot(dir string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(filepath.Join(absDir, config.FileName))
	if err == nil && !info.IsDir() {
		return true, nil
	}
	return false, nil
}

// LoadCampaign finds the campaign root above startDir (or from the
// working directory when startDir is empty) and loads its config.
func LoadCampaign(startDir string) (*config.Campaign, error) {
	var (
		root string
		err  error
	)
	if startDir == "" {
		root, err = FindFromCwdOrError()
	} else {
		root, err = FindOrError(startDir)
	}
	if err != nil {
		return nil, err
	}
	return config.LoadCampaign(filepath.Join(root, config.FileName))
}
