// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the tiercache
// binaries.
//
// Configuration is layered: built-in defaults from [Default], then an
// optional YAML file named by the TIERCACHE_CONFIG environment
// variable (via [Load]) or a --config flag (via [LoadFile]), then the
// TIERCACHE_* environment overrides applied by [Config.ApplyEnv].
// Fields the file omits keep their defaults.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded.
//
// [Config.Validate] reports every problem at once rather than
// stopping at the first.
package config
