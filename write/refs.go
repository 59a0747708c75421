package write

import "github.com/yenda/formsql/schema/attr"

// removal records a reference detached from its source during the rewrite.
type removal struct {
	source Ident
	a      *attr.Attribute
	target Ref
}

// RewriteRefs rewrites reference changes into paired updates on the
// referenced entities: attachments set the target's back-reference,
// detachments clear it or, under delete-orphan, mark the target deleted.
//
// Additions are processed before removals: a target re-attached elsewhere
// in the same delta is never deleted or cleared by its old parent. Orphan
// deletion is not cascaded; it removes exactly the immediately-orphaned
// entity, and the orphan's own children are the schema's concern.
func RewriteRefs(reg *attr.Registry, delta Delta) (Delta, error) {
	out := delta.clone()
	var (
		removals []removal
		attached = make(map[Ident]struct{})
	)
	for ident, ed := range delta {
		if ed.Delete {
			continue
		}
		for key, ch := range ed.Fields {
			a, err := reg.Get(key)
			if err != nil {
				return nil, err
			}
			if !a.IsRef() {
				continue
			}
			switch a.Cardinality {
			case attr.CardOne:
				before, after, err := normalizePair(ch, a.Target)
				if err != nil {
					return nil, err
				}
				if before == nil && after == nil {
					continue
				}
				if after != nil && (before == nil || before.Ident != after.Ident) {
					attach(out, a, ident, *after)
					attached[after.Ident] = struct{}{}
				}
				if before != nil && (after == nil || before.Ident != after.Ident) {
					removals = append(removals, removal{source: ident, a: a, target: *before})
				}
			case attr.CardMany:
				befores, err := NormalizeRefs(ch.Before, a.Target)
				if err != nil {
					return nil, err
				}
				afters, err := NormalizeRefs(ch.After, a.Target)
				if err != nil {
					return nil, err
				}
				beforeSet := make(map[Ident]Ref, len(befores))
				for _, r := range befores {
					beforeSet[r.Ident] = r
				}
				afterSet := make(map[Ident]Ref, len(afters))
				for _, r := range afters {
					afterSet[r.Ident] = r
				}
				for id, r := range afterSet {
					// Items present on both sides are left untouched.
					if _, ok := beforeSet[id]; ok {
						continue
					}
					attach(out, a, ident, r)
					attached[id] = struct{}{}
				}
				for id, r := range beforeSet {
					if _, ok := afterSet[id]; ok {
						continue
					}
					removals = append(removals, removal{source: ident, a: a, target: r})
				}
			}
		}
	}
	for _, rm := range removals {
		if _, ok := attached[rm.target.Ident]; ok {
			continue
		}
		switch {
		case rm.a.DeleteOrphan:
			out.ensure(rm.target.Ident).Delete = true
		case rm.a.FkAttr != "":
			setField(out, rm.target.Ident, rm.a.FkAttr, Change{Before: rm.source, After: nil})
		}
		// A detached forward reference without delete-orphan needs no
		// target update: the source row's own column change covers it.
	}
	return out, nil
}

// attach records the back-reference on a newly-attached target. Only
// reverse references carry one; a forward reference is already covered by
// the source row's column.
func attach(out Delta, a *attr.Attribute, source Ident, target Ref) {
	if a.FkAttr == "" {
		return
	}
	setField(out, target.Ident, a.FkAttr, Change{After: source})
}

// setField records an emitted change unless the caller already changed the
// same field explicitly.
func setField(out Delta, ident Ident, key attr.Key, ch Change) {
	ed := out.ensure(ident)
	if _, ok := ed.Fields[key]; ok {
		return
	}
	ed.Fields[key] = ch
}

// normalizePair normalizes the two sides of a to-one reference change.
func normalizePair(ch Change, target attr.Key) (before, after *Ref, err error) {
	if ch.Before != nil {
		r, err := NormalizeRef(ch.Before, target)
		if err != nil {
			return nil, nil, err
		}
		before = &r
	}
	if ch.After != nil {
		r, err := NormalizeRef(ch.After, target)
		if err != nil {
			return nil, nil, err
		}
		after = &r
	}
	return before, after, nil
}
