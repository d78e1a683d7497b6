// Package remind contains the reminder decision logic.
//
// Given "now" and the set of schedulable entities (calendar blocks and
// tasks), MatchDue computes which reminder instances must fire on this tick.
// The functions here are pure: persistence, dedup and delivery are handled
// by the ledger and the delivery pipeline.
package remind
