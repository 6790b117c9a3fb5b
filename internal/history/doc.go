// Package history persists observed device state transitions to SQLite.
//
// The recorder subscribes to the dashboard cache's change events and writes
// one row per transition. It is the service's audit trail: the live cache
// answers "what is", this table answers "what happened". The table is
// bounded; the oldest rows are pruned opportunistically as new ones arrive.
package history
