// ABOUTME: Memento relation set construction
// ABOUTME: Collapses coinciding first, last, prev, memento and next roles onto shared URIs

package linkrel

import "time"

// Entry is a version in one of the navigational roles
type Entry struct {
	URI      string
	Datetime time.Time
}

func (e *Entry) link(rels ...string) Link {
	return Link{URI: e.URI, Rels: rels, Datetime: e.Datetime}
}

// Build renders the navigational relations for first, last, the selected
// memento and its neighbours. Any role except first may be nil.
//
// Roles are collapsed in a fixed precedence: first absorbs last, then prev
// or memento; last absorbs memento or next. Whatever remains is emitted as
// prev, next and memento, in that order.
func Build(first, last, mem, next, prev *Entry) Set {
	var set Set
	if first == nil {
		return set
	}

	rels := []string{REL_FIRST}
	merged := false
	if last != nil && last.URI == first.URI {
		rels = append(rels, REL_LAST)
		last = nil
	}
	if prev != nil && prev.URI == first.URI {
		rels = append(rels, REL_PREV, REL_PREDECESSOR)
		prev = nil
	} else if mem != nil && mem.URI == first.URI {
		rels = append(rels, REL_MEMENTO)
		merged = true
		mem = nil
	}
	if !merged {
		rels = append(rels, REL_MEMENTO)
	}
	set.Add(first.link(rels...))

	if last != nil {
		rels = []string{REL_LAST}
		merged = false
		if mem != nil && mem.URI == last.URI {
			rels = append(rels, REL_MEMENTO)
			merged = true
			mem = nil
		} else if next != nil && next.URI == last.URI {
			rels = append(rels, REL_NEXT, REL_SUCCESSOR)
			next = nil
		}
		if !merged {
			rels = append(rels, REL_MEMENTO)
		}
		set.Add(last.link(rels...))
	}

	if prev != nil {
		set.Add(prev.link(REL_PREV, REL_PREDECESSOR, REL_MEMENTO))
	}
	if next != nil {
		set.Add(next.link(REL_NEXT, REL_SUCCESSOR, REL_MEMENTO))
	}
	if mem != nil {
		set.Add(mem.link(REL_MEMENTO))
	}

	return set
}

// Original points at the live resource. Extra relation names such as
// timegate are appended after "original latest-version".
func Original(uri string, extra ...string) Link {
	rels := append([]string{REL_ORIGINAL, REL_LATEST}, extra...)
	return Link{URI: uri, Rels: rels}
}

// TimeGate points at the negotiation endpoint
func TimeGate(uri string) Link {
	return Link{URI: uri, Rels: []string{REL_TIMEGATE}}
}

// TimeMap points at the version listing. Zero from and until are omitted.
func TimeMap(uri string, from, until time.Time) Link {
	return Link{URI: uri, Rels: []string{REL_TIMEMAP}, Type: LINK_FORMAT, From: from, Until: until}
}

// DoNotNegotiate marks a resource as excluded from negotiation
func DoNotNegotiate() Link {
	return Link{URI: DO_NOT_NEGOTIATE, Rels: []string{REL_TYPE}}
}
