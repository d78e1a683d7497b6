package remind

import "remindd/internal/recurrence"

// ApplyDeletion applies a deletion scope to an entity's recurrence state and
// returns the updated copy. removed is true when the caller must delete the
// entity itself (ScopeAll); the returned entity is then the zero value.
//
// Individual instance deletions become exceptions, so the same expansion
// that renders the calendar also stops matching them; the mutation can
// never disagree with what the matcher later computes.
func ApplyDeletion(e Entity, target recurrence.Date, scope recurrence.Scope, n int) (updated Entity, removed bool) {
	res := recurrence.ResolveDeletion(e.Rule, e.Anchor, target, e.Exceptions, scope, n)
	if res.EntityWide {
		return Entity{}, true
	}

	cp := e
	cp.Exceptions = e.Exceptions.Clone()
	for _, d := range res.Dates {
		cp.Exceptions.Add(d)
	}
	return cp, false
}

// TruncateFrom ends an entity's recurrence just before target ("delete this
// and all future"), leaving past instances intact.
func TruncateFrom(e Entity, target recurrence.Date) Entity {
	cp := e
	cp.Rule.Until = target.AddDays(-1)
	return cp
}
