package recurrence

// Expand returns, in ascending order, every concrete occurrence date of the
// rule inside [from, to] (both inclusive), anchored at anchor and with the
// exception set removed.
//
// Semantics:
//   - Kind None yields exactly the anchor date when it lies in range and is
//     not excepted; Until and Count are ignored.
//   - Daily/Custom match dates whose day distance from the anchor is a
//     multiple of the interval.
//   - Weekly matches dates whose weekday is in the rule's weekday set
//     (defaulting to the anchor's weekday when empty) and whose elapsed-week
//     count from the anchor is a multiple of the interval. Weeks are counted
//     as elapsed days / 7 from the anchor, not from calendar week starts.
//   - Excepted dates do not count toward Count.
//
// Expand never fails: malformed intervals are coerced, inverted ranges yield
// an empty result. Results contain no duplicates.
func Expand(r Rule, anchor Date, from, to Date, exceptions DateSet) []Date {
	out := []Date{}
	if anchor.IsZero() || to.Before(from) {
		return out
	}

	start := from
	if anchor.After(start) {
		start = anchor
	}

	step := r.step()
	allowed := r.Weekdays
	if r.Kind == Weekly && allowed.Empty() {
		allowed = Weekdays(anchor.Weekday())
	}

	matched := 0
	for d := start; !d.After(to); d = d.AddDays(1) {
		if r.Kind == None {
			if d == anchor && !exceptions.Has(d) {
				out = append(out, d)
			}
			if !d.Before(anchor) {
				break
			}
			continue
		}

		if !r.Until.IsZero() && d.After(r.Until) {
			break
		}

		diff := DaysBetween(anchor, d)
		if diff < 0 {
			continue
		}

		match := false
		switch r.Kind {
		case Daily, Custom:
			match = diff%step == 0
		case Weekly:
			match = allowed.Has(d.Weekday()) && (diff/7)%step == 0
		}
		if !match || exceptions.Has(d) {
			continue
		}

		out = append(out, d)
		matched++
		if r.Count > 0 && matched >= r.Count {
			break
		}
	}
	return out
}
