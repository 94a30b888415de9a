// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// Global is the configuration loaded by Load.
	Global  NodetreeConfig
	once    sync.Once
	loadErr error

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultPath returns ~/.nodetree/nodetree.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".nodetree", "nodetree.yaml"), nil
}

// Load reads the configuration at path into Global, once. An empty path
// means DefaultPath.
func Load(path string) error {
	once.Do(func() {
		if path == "" {
			path, loadErr = DefaultPath()
			if loadErr != nil {
				return
			}
		}
		Global, loadErr = LoadFrom(path)
	})
	return loadErr
}

// LoadFrom reads, overrides and validates the configuration at path.
//
// Description:
//
//	A missing file is created from DefaultConfig. Keys absent from the
//	file keep their defaults. NODETREE_* environment variables are applied
//	last, then "~" in paths is expanded.
//
// Outputs:
//
//	NodetreeConfig - The effective configuration.
//	error - File, decode, override or ErrInvalidConfig failures.
func LoadFrom(path string) (NodetreeConfig, error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		slog.Info("first run, writing default configuration", slog.String("path", path))
		if err := createDefault(path); err != nil {
			return NodetreeConfig{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return NodetreeConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return NodetreeConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document over the defaults, applies the
// environment and validates the result.
func Parse(data []byte) (NodetreeConfig, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return NodetreeConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return NodetreeConfig{}, err
	}
	cfg.Storage.Path = expandPath(cfg.Storage.Path)
	cfg.Storage.Fixture = expandPath(cfg.Storage.Fixture)
	cfg.NodeTypes.Path = expandPath(cfg.NodeTypes.Path)
	if err := cfg.Validate(); err != nil {
		return NodetreeConfig{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags of the configuration.
func (c *NodetreeConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides configuration fields from the environment.
//
//	NODETREE_ADDR             server.addr
//	NODETREE_RATE_LIMIT_RPS   server.rate_limit.requests_per_second
//	NODETREE_STORAGE_PATH     storage.path
//	NODETREE_IN_MEMORY        storage.in_memory
//	NODETREE_REPOSITORY       storage.repository_id
//	NODETREE_FIXTURE          storage.fixture
//	NODETREE_NODE_TYPES       node_types.path
//	NODETREE_PREVIEW_BASE_URL presentation.preview_base_url
//	NODETREE_LOG_LEVEL        logging.level
//	NODETREE_LOG_DIR          logging.dir
func applyEnv(cfg *NodetreeConfig, lookup lookupFunc) error {
	strs := map[string]*string{
		"NODETREE_ADDR":             &cfg.Server.Addr,
		"NODETREE_STORAGE_PATH":     &cfg.Storage.Path,
		"NODETREE_REPOSITORY":       &cfg.Storage.RepositoryID,
		"NODETREE_FIXTURE":          &cfg.Storage.Fixture,
		"NODETREE_NODE_TYPES":       &cfg.NodeTypes.Path,
		"NODETREE_PREVIEW_BASE_URL": &cfg.Presentation.PreviewBaseURL,
		"NODETREE_LOG_LEVEL":        &cfg.Logging.Level,
		"NODETREE_LOG_DIR":          &cfg.Logging.Dir,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("NODETREE_IN_MEMORY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NODETREE_IN_MEMORY: %w", err)
		}
		cfg.Storage.InMemory = b
	}
	if v, ok := lookup("NODETREE_RATE_LIMIT_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("NODETREE_RATE_LIMIT_RPS: %w", err)
		}
		cfg.Server.RateLimit.RequestsPerSecond = f
	}
	return nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0640)
}

func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
