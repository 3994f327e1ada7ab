// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

/*
Package config loads and validates Vitalis configuration.

Configuration is layered with Koanf v2. Later layers override earlier ones:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file, found via CONFIG_PATH or DefaultConfigPaths
 3. Whitelisted environment variables (envMappings)

Example config.yaml:

	server:
	  port: 8085
	ranking:
	  weights:
	    similarity: 0.7
	    graph: 0.3
	  request_timeout: 3s
	  degraded:
	    graph_optional: true
	ledger:
	  path: /data/ledger

The loaded Config is treated as immutable for the life of the process.
*/
package config
