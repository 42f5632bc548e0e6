package privchat

import "sort"

// ============================================================================
// Presence Tracker
// ============================================================================

// Presence tracks which users are typing and which are online. It is a value:
// mutations return a new Presence and leave the receiver untouched, so a
// snapshot taken from session state stays stable while new events apply.
//
// Both sets have plain set semantics. Adding a present member or removing an
// absent one changes nothing.
type Presence struct {
	typing map[string]struct{}
	online map[string]struct{}
}

// NewPresence returns an empty presence tracker.
func NewPresence() Presence {
	return Presence{
		typing: map[string]struct{}{},
		online: map[string]struct{}{},
	}
}

// WithTyping applies a typing membership change for a user.
func (p Presence) WithTyping(userID string, change Change) Presence {
	next, ok := applyChange(p.typing, userID, change)
	if !ok {
		return p
	}
	p.typing = next
	return p
}

// WithOnline applies an online membership change for a user.
func (p Presence) WithOnline(userID string, change Change) Presence {
	next, ok := applyChange(p.online, userID, change)
	if !ok {
		return p
	}
	p.online = next
	return p
}

// IsTyping reports whether the user is currently typing.
func (p Presence) IsTyping(userID string) bool {
	_, ok := p.typing[userID]
	return ok
}

// IsOnline reports whether the user is currently online.
func (p Presence) IsOnline(userID string) bool {
	_, ok := p.online[userID]
	return ok
}

// TypingIDs returns the typing set sorted for stable rendering.
func (p Presence) TypingIDs() []string {
	return sortedKeys(p.typing)
}

// OnlineIDs returns the online set sorted for stable rendering.
func (p Presence) OnlineIDs() []string {
	return sortedKeys(p.online)
}

// applyChange returns a modified copy of the set, or ok=false when the change
// is a no-op and the original may be kept as is.
func applyChange(set map[string]struct{}, id string, change Change) (map[string]struct{}, bool) {
	_, present := set[id]
	switch change {
	case ChangeAdded:
		if present {
			return nil, false
		}
	case ChangeRemoved:
		if !present {
			return nil, false
		}
	default:
		return nil, false
	}

	next := make(map[string]struct{}, len(set)+1)
	for k := range set {
		next[k] = struct{}{}
	}
	if change == ChangeAdded {
		next[id] = struct{}{}
	} else {
		delete(next, id)
	}
	return next, true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
