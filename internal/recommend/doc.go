// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

/*
Package recommend is the hybrid retrieval and ranking engine.

It serves two read paths over an immutable catalog snapshot and the
per-user interaction ledger:

  - Recommend blends embedding similarity (s) with a one-hop graph score (g)
    seeded by the items the user has implemented:

    score = w_s*s + w_g*g   (defaults 0.7 and 0.3)

  - Suggest merges the user's most used items with trigram name matches for
    a search-as-you-type box, usage first.

Both paths fan out their sub-fetches with errgroup, join, then merge,
deduplicate, and rank with a deterministic total order ending in the item
ID. Every sub-fetch is wrapped by a per-upstream guard: bounded retries with
exponential backoff (cenkalti/backoff) inside a circuit breaker
(sony/gobreaker).

# Errors

Calls fail with one of four sentinel kinds, matched with errors.Is:

  - ErrInvalidInput: the request was rejected before any fetch
  - ErrNotFound: an explicitly requested item does not exist
  - ErrUpstreamUnavailable: a source failed after retries or its breaker is open
  - ErrTimeout: the deadline passed or the caller cancelled

An empty catalog category is not an error; it yields an empty ranking. A
failed sub-fetch fails the whole call unless Config.GraphOptional is set, in
which case seed or graph failures degrade to g = 0 and the response is
marked Degraded.

# Subpackages

  - vectorindex: exact and IVF cosine nearest-neighbour search
  - graph: weighted relationship graph with one-hop propagation
  - fuzzy: pg_trgm compatible trigram similarity and name index
*/
package recommend
