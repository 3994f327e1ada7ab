// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

/*
Package main is the entry point for the Vitalis recommendation server.

The server ranks health recommendations (nutrition, workout, sleep, ...) by
blending embedding similarity with a relationship graph seeded from what the
user has already implemented, and serves food and exercise autocomplete
suggestions that put previously used items first.

# Application Architecture

	RootSupervisor ("vitalis")
	├── DataSupervisor ("data-layer")
	│   └── LedgerGCService (persistent ledger only)
	├── CatalogSupervisor ("catalog-layer")
	│   └── CatalogService (snapshot refresh, on-demand reload)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (chi router)

Component initialization order:

 1. Configuration: Koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, JSON or console
 3. Catalog store: DuckDB (items, edges, foods, exercises)
 4. Interaction ledger: BadgerDB, or in memory
 5. Catalog snapshot store and recommendation engine
 6. Supervisor tree and HTTP server

# Configuration

Core environment variables:

	HTTP_PORT=8080
	DUCKDB_PATH=/data/vitalis.duckdb
	LEDGER_PATH=/data/ledger
	LEDGER_IN_MEMORY=false
	RANKING_DIMENSION=1536
	RANKING_SIMILARITY_WEIGHT=0.7
	RANKING_GRAPH_WEIGHT=0.3
	CATALOG_REFRESH_INTERVAL=5m
	CATALOG_RELOAD_MIN_INTERVAL=10s
	LOG_LEVEL=info
	LOG_FORMAT=json

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree: the HTTP server drains
in-flight requests, the refresh loop stops, and the ledger and catalog
database are closed.
*/
//
// @title Vitalis API
// @version 1.0
// @description Hybrid recommendation and autocomplete API for personal health tracking.
// @description
// @description Error responses use the standard envelope with `status` set to `error`
// @description and a machine-readable `error.code`.
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
//
// @tag.name Health
// @tag.description Liveness and readiness checks
//
// @tag.name Recommendations
// @tag.description Hybrid similarity and graph ranking
//
// @tag.name Suggestions
// @tag.description Food and exercise autocomplete
//
// @tag.name Interactions
// @tag.description Usage, feedback and search history
//
// @tag.name Catalog
// @tag.description Catalog curation and graph queries
//
//go:generate swag init --dir ../../ --generalInfo cmd/server/doc.go --output ../../docs --parseInternal
package main
