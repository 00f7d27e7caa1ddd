package fields

// Merge reconciles the fields discovered by a sync with the persisted
// configuration.
//
// A non-empty persisted configuration wins and the template is ignored.
// Otherwise template entries seed the fields that were discovered; template
// entries for undiscovered fields are dropped. Entries are never removed.
// Examples always come from discovered, and so does the type when the
// existing entry has none. Merge does not modify its arguments.
func Merge(discovered, persisted, template Catalogue) Catalogue {
	out := Catalogue{}

	if len(persisted) > 0 {
		for id, e := range persisted {
			out[id] = e
		}
	} else {
		for id, e := range template {
			if _, ok := discovered[id]; ok {
				out[id] = e
			}
		}
	}

	for id, d := range discovered {
		e, ok := out[id]
		if !ok {
			d.ID = id
			out[id] = d
			continue
		}
		e.ID = id
		e.Example = d.Example
		if !e.Type.Valid() {
			e.Type = d.Type
		}
		if !e.Area.Valid() {
			e.Area = AreaUnused
		}
		out[id] = e
	}
	return out.Clone()
}
