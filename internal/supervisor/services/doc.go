// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

/*
Package services provides suture.Service wrappers for Vitalis components.

Each wrapper translates a component's lifecycle into suture's context-aware
Serve pattern and implements fmt.Stringer so supervisor events name it.

HTTPServerService:
  - Wraps *http.Server; cancelling the context drains connections
  - Bind failures are returned so the supervisor restarts the server

CatalogService:
  - Loads the first catalog snapshot on startup, retrying with backoff
  - Rebuilds the snapshot every RefreshInterval; failures keep the old one
  - Implements api.Reloader for POST /api/v1/catalog/reload, throttled by a
    token bucket (golang.org/x/time/rate)

LedgerGCService:
  - Runs BadgerDB value log GC on an interval (persistent ledger only)

# Usage

	catalogSvc := services.NewCatalogService(store, services.CatalogServiceConfigFrom(cfg.Catalog), logger)
	handler, _ := api.NewHandler(api.HandlerDeps{..., Reloader: catalogSvc})

	tree.Add(supervisor.LayerCatalog, catalogSvc)
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, cfg.Server.Timeout, logger))
*/
package services
