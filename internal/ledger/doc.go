// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

/*
Package ledger stores per-user interactions: which recommendations a user
implemented, how often they selected searchable items, and what they
searched for.

The read side implements recommend.Interactions:

  - ImplementedItems feeds the graph seed set
  - UsageHistory feeds history-based suggestions, ordered by use count desc,
    last used desc, item ID

Every write carries an event ID. A write whose event ID was already applied
within the retention window is a no-op and reports Applied=false, so a
redelivered "select this item" event increments a counter exactly once.

Two implementations exist:

  - BadgerStore: persistent, backed by BadgerDB. The idempotency marker and
    the state change commit in one transaction.
  - MemoryStore: a mutex-guarded map for tests and ephemeral deployments.

# Key Layout (BadgerStore)

	event:{kind}:{event_id}                  idempotency marker (TTL)
	state:{user}:{item}                      RecommendationState
	impl:{user}:{category}:{item}            implemented index
	usage:{user}:{item_type}:{item}          UsageRecord
	search:{user}:{inverted_nanos}:{event}   SearchEntry, newest first

IDs may not contain ':'.
*/
package ledger
