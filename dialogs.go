package privchat

import (
	"sort"
	"strings"
)

// ============================================================================
// Dialog Directory
// ============================================================================

// Directory holds the session's dialog lists: the confirmed dialogs the user
// participates in, and the candidate users shown by the new chat picker.
//
// Directory is a value; every mutation returns a new Directory. The confirmed
// list never shrinks within a session. A filtered view over the confirmed
// list is kept materialized and is recomputed whenever the list or the filter
// query changes.
type Directory struct {
	dialogs    []Dialog // insertion order
	index      map[string]int
	candidates []Dialog
	query      string
	filtered   []Dialog
	loading    bool
	gen        uint64
}

// NewDirectory returns an empty directory.
func NewDirectory() Directory {
	return Directory{index: map[string]int{}}
}

// Dialogs returns the confirmed dialogs in insertion order.
func (d Directory) Dialogs() []Dialog {
	return append([]Dialog(nil), d.dialogs...)
}

// Candidates returns the current new chat candidates.
func (d Directory) Candidates() []Dialog {
	return append([]Dialog(nil), d.candidates...)
}

// Filtered returns the dialogs matching the current query, most recent
// activity first. Ties keep the dialogs' insertion order.
func (d Directory) Filtered() []Dialog {
	return append([]Dialog(nil), d.filtered...)
}

// Query returns the active filter input.
func (d Directory) Query() string {
	return d.query
}

// Loading reports whether a directory fetch is in flight.
func (d Directory) Loading() bool {
	return d.loading
}

// Gen returns the current fetch generation. Only responses stamped with this
// generation are applied.
func (d Directory) Gen() uint64 {
	return d.gen
}

// Get looks up a confirmed dialog by id.
func (d Directory) Get(id string) (Dialog, bool) {
	pos, ok := d.index[id]
	if !ok {
		return Dialog{}, false
	}
	return d.dialogs[pos], true
}

// Len returns the number of confirmed dialogs.
func (d Directory) Len() int {
	return len(d.dialogs)
}

// Filter sets the query and recomputes the filtered view. Matching is a
// case-insensitive substring test over dialog titles.
func (d Directory) Filter(query string) Directory {
	nd := d.clone()
	nd.query = query
	nd.refilter()
	return nd
}

// Observe folds a message into the directory: the owning dialog is created if
// unknown, and its activity and preview advance when the message is newer.
func (d Directory) Observe(m Message) Directory {
	nd := d.clone()
	pos := nd.ensure(m.DialogID, dialogTitleFor(m))
	dlg := &nd.dialogs[pos]
	if !m.SentAt.Before(dlg.LastActivity) {
		dlg.LastActivity = m.SentAt
		dlg.LastMessage = previewFor(m)
	}
	if dlg.Title == dlg.ID && !m.Out && m.SenderName != "" {
		dlg.Title = m.SenderName
	}
	nd.refilter()
	return nd
}

// Select makes sure the dialog is in the confirmed list and zeroes its unread
// counter. Candidates picked from the new chat popup enter the list here.
func (d Directory) Select(dlg Dialog) Directory {
	nd := d.clone()
	pos := nd.ensure(dlg.ID, dlg.Title)
	if dlg.Title != "" {
		nd.dialogs[pos].Title = dlg.Title
	}
	nd.dialogs[pos].UnreadCount = 0
	nd.refilter()
	return nd
}

// SetUnread overwrites the dialog's unread counter with an authoritative
// value. Later local increments build on it.
func (d Directory) SetUnread(id string, n int) Directory {
	nd := d.clone()
	pos := nd.ensure(id, "")
	nd.dialogs[pos].UnreadCount = n
	return nd
}

// AddUnread bumps the dialog's unread counter.
func (d Directory) AddUnread(id string, delta int) Directory {
	nd := d.clone()
	pos := nd.ensure(id, "")
	nd.dialogs[pos].UnreadCount += delta
	return nd
}

// Unread returns the dialog's unread counter, zero for unknown dialogs.
func (d Directory) Unread(id string) int {
	if pos, ok := d.index[id]; ok {
		return d.dialogs[pos].UnreadCount
	}
	return 0
}

// BeginLoad advances the fetch generation and marks the directory loading.
// The returned generation stamps the fetch, so a superseded response can be
// told apart from the latest one.
func (d Directory) BeginLoad() (Directory, uint64) {
	nd := d.clone()
	nd.gen++
	nd.loading = true
	return nd, nd.gen
}

// WithCandidates replaces the candidate list wholesale and clears the loading
// flag.
func (d Directory) WithCandidates(list []Dialog) Directory {
	nd := d.clone()
	nd.candidates = append([]Dialog(nil), list...)
	nd.loading = false
	return nd
}

// ClearLoading drops the loading flag, leaving candidates untouched. Used
// when a fetch fails.
func (d Directory) ClearLoading() Directory {
	nd := d.clone()
	nd.loading = false
	return nd
}

// ── internals ────────────────────────────────────────────

func (d Directory) clone() Directory {
	nd := d
	nd.dialogs = append([]Dialog(nil), d.dialogs...)
	nd.index = make(map[string]int, len(d.index)+1)
	for k, v := range d.index {
		nd.index[k] = v
	}
	return nd
}

// ensure returns the position of the dialog, appending a new entry when the
// id is unknown. Confirmed entries are never removed.
func (d *Directory) ensure(id, title string) int {
	if pos, ok := d.index[id]; ok {
		return pos
	}
	if title == "" {
		title = id
	}
	d.dialogs = append(d.dialogs, Dialog{ID: id, Title: title})
	pos := len(d.dialogs) - 1
	d.index[id] = pos
	return pos
}

func (d *Directory) refilter() {
	q := strings.ToLower(d.query)
	matched := make([]Dialog, 0, len(d.dialogs))
	for _, dlg := range d.dialogs {
		if q == "" || strings.Contains(strings.ToLower(dlg.Title), q) {
			matched = append(matched, dlg)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].LastActivity.After(matched[j].LastActivity)
	})
	d.filtered = matched
}

func dialogTitleFor(m Message) string {
	if !m.Out && m.SenderName != "" {
		return m.SenderName
	}
	return m.DialogID
}

func previewFor(m Message) string {
	if m.File != nil {
		return m.File.Name
	}
	return m.Text
}
