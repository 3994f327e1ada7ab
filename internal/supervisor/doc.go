// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

/*
Package supervisor provides process supervision for Vitalis using suture v4.

Long-running services are arranged in a small tree so that a crash in one
layer restarts only that layer:

	RootSupervisor ("vitalis")
	├── DataSupervisor ("data-layer")
	│   └── LedgerGCService (BadgerDB ledger only)
	├── CatalogSupervisor ("catalog-layer")
	│   └── CatalogService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Supervisor events (service panics, restarts, backoff) are logged through
sutureslog, which takes a *slog.Logger. Use logging.NewSlogLogger to bridge
it to the process's zerolog output.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logger), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.Add(supervisor.LayerCatalog, catalogSvc)
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, 10*time.Second, logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

See package services for the individual wrappers.
*/
package supervisor
