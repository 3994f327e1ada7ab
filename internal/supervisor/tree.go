// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer names one branch of the tree. A service that keeps failing backs off
// within its layer; the other layers keep running.
type Layer string

const (
	// LayerData holds ledger maintenance.
	LayerData Layer = "data-layer"
	// LayerCatalog holds the snapshot refresh loop.
	LayerCatalog Layer = "catalog-layer"
	// LayerAPI holds the HTTP server.
	LayerAPI Layer = "api-layer"
)

// layers is the start order.
var layers = []Layer{LayerData, LayerCatalog, LayerAPI}

// TreeConfig tunes restart behaviour. Zero fields take DefaultTreeConfig values.
type TreeConfig struct {
	// FailureThreshold is the decayed failure count that triggers backoff.
	FailureThreshold float64
	// FailureDecay is the failure half-life in seconds.
	FailureDecay    float64
	FailureBackoff  time.Duration
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig matches suture's defaults with a 10s shutdown timeout.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

func (c TreeConfig) spec() suture.Spec {
	return suture.Spec{
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// SupervisorTree is the root "vitalis" supervisor with one child per Layer.
// While the catalog layer restarts, requests keep ranking against the last
// published snapshot.
type SupervisorTree struct {
	root     *suture.Supervisor
	branches map[Layer]*suture.Supervisor
	config   TreeConfig
}

// NewSupervisorTree builds the tree. Supervisor events are logged through
// sutureslog.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	if logger == nil {
		return nil, errors.New("supervisor: logger is required")
	}
	config = config.withDefaults()

	rootSpec := config.spec()
	rootSpec.EventHook = (&sutureslog.Handler{Logger: logger}).MustHook()

	tree := &SupervisorTree{
		root:     suture.New("vitalis", rootSpec),
		branches: make(map[Layer]*suture.Supervisor, len(layers)),
		config:   config,
	}
	// Children inherit the root's event hook.
	for _, layer := range layers {
		branch := suture.New(string(layer), config.spec())
		tree.root.Add(branch)
		tree.branches[layer] = branch
	}
	return tree, nil
}

// Add starts svc under layer once the tree is serving. It panics on an
// unknown layer.
func (t *SupervisorTree) Add(layer Layer, svc suture.Service) suture.ServiceToken {
	branch, ok := t.branches[layer]
	if !ok {
		panic("supervisor: unknown layer " + string(layer))
	}
	return branch.Add(svc)
}

// Serve blocks until ctx is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground serves in a goroutine; the channel receives the result.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that outlived the shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
