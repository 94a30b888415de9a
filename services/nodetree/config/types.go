// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the nodetree service configuration.
//
// The configuration is a YAML file, by default ~/.nodetree/nodetree.yaml,
// created with DefaultConfig on first run. NODETREE_* environment
// variables override individual fields after the file is read.
package config

import (
	"time"

	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/privilege"
	"github.com/AleutianAI/nodetree/services/nodetree/telemetry"
)

// CurrentConfigVersion is written into new configuration files.
const CurrentConfigVersion = "1"

// NodetreeConfig is the root of the configuration file.
type NodetreeConfig struct {
	Meta         MetaConfig             `yaml:"meta"`
	Server       ServerConfig           `yaml:"server"`
	Storage      StorageConfig          `yaml:"storage"`
	NodeTypes    NodeTypesConfig        `yaml:"node_types"`
	Roles        graph.Roles            `yaml:"roles"`
	Privilege    privilege.StaticConfig `yaml:"privilege"`
	Presentation PresentationConfig     `yaml:"presentation"`
	Logging      LoggingConfig          `yaml:"logging"`
	Telemetry    telemetry.Config       `yaml:"telemetry"`
}

type MetaConfig struct {
	Version string `yaml:"version"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string          `yaml:"addr" validate:"required,hostname_port"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" validate:"gte=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds the request rate of the API. A zero
// RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

// StorageConfig configures the badger projection store.
type StorageConfig struct {
	Path         string `yaml:"path" validate:"required_unless=InMemory true"`
	InMemory     bool   `yaml:"in_memory"`
	RepositoryID string `yaml:"repository_id" validate:"required"`

	// CacheSize bounds the node read cache. 0 uses the store default.
	CacheSize int `yaml:"cache_size" validate:"gte=0"`

	// Fixture is seeded on startup when set.
	Fixture string `yaml:"fixture"`
}

// NodeTypesConfig locates the node type definitions. Without a path the
// built-in hierarchy is used.
type NodeTypesConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// PresentationConfig configures preview links. An empty base omits them.
type PresentationConfig struct {
	PreviewBaseURL string `yaml:"preview_base_url" validate:"omitempty,url"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() NodetreeConfig {
	return NodetreeConfig{
		Meta: MetaConfig{Version: CurrentConfigVersion},
		Server: ServerConfig{
			Addr:            "127.0.0.1:12310",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 200,
				Burst:             400,
			},
		},
		Storage: StorageConfig{
			Path:         "~/.nodetree/data",
			RepositoryID: "default",
		},
		Roles: graph.DefaultRoles(),
		Privilege: privilege.StaticConfig{
			Publishers: map[string][]string{},
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.nodetree/logs",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}
