// Package recurrence is the shared occurrence engine.
//
// It expands a declarative repetition rule into concrete calendar dates and
// resolves deletion scopes ("this one", "the next N", "all") into the exact
// instances a mutation applies to. Both calendar rendering and the reminder
// matcher consume the same Expand, so the dates a user sees and the dates the
// notifier fires on can never diverge.
//
// All values here are date-only. Time-of-day handling lives with the
// entities that carry it (package remind).
package recurrence
