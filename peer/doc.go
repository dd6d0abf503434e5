// Package peer defines the policy a gate consults for every remote peer.
//
// A Handler receives outcome notifications for outgoing transactions,
// delivery of complete inbound units, admission decisions for fragments and
// the partial data of records evicted before completion. FloodGuard is a
// ready-made admission policy bounding the incomplete transactions a single
// source may hold open; Callbacks adapts plain functions to a Handler.
package peer
