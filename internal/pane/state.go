package pane

import (
	"github.com/nhle/notification-tray/internal/model"
)

// Status is the fetch status of the notification collection.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
)

// State is everything the pane decides on. It is a plain value so the
// transition function can be exercised without a terminal.
type State struct {
	View    model.ViewSelection
	Status  Status
	Visible bool

	// Seq is the sequence number of the latest collection request. Results
	// carrying any other number are stale and dropped.
	Seq uint64

	Records []model.Notification

	// Err is the last request failure, cleared by the next success.
	Err error
}

// Event is an input to Next.
type Event interface{ isEvent() }

type (
	// SelectUnread is the "view unread" tab. It always re-fetches.
	SelectUnread struct{}
	// SelectAll is the "view all" tab.
	SelectAll struct{}
	// Hydrate re-fetches the current view after out-of-band changes.
	Hydrate struct{}
	// Fetched delivers a collection for request Seq.
	Fetched struct {
		Seq     uint64
		Records []model.Notification
	}
	// FetchFailed reports a failed collection request.
	FetchFailed struct {
		Seq uint64
		Err error
	}
	// MarkAllRead is the "mark as read" action.
	MarkAllRead struct{}
	// MarkedAllRead reports the outcome of the mark-all POST.
	MarkedAllRead struct{ Err error }
	// Visit opens one notification.
	Visit struct{ Record model.Notification }
	// MarkedRead reports the outcome of the mark-one POST.
	MarkedRead struct {
		Record model.Notification
		Err    error
	}
	// ClickInside is a click on the pane body.
	ClickInside struct{}
	// ClickOutside is a click anywhere else while the pane is open.
	ClickOutside struct{}
	// Show opens the pane.
	Show struct{}
	// Hide closes the pane.
	Hide struct{}
	// Toggle is the tray icon click.
	Toggle struct{}
)

func (SelectUnread) isEvent()  {}
func (SelectAll) isEvent()     {}
func (Hydrate) isEvent()       {}
func (Fetched) isEvent()       {}
func (FetchFailed) isEvent()   {}
func (MarkAllRead) isEvent()   {}
func (MarkedAllRead) isEvent() {}
func (Visit) isEvent()         {}
func (MarkedRead) isEvent()    {}
func (ClickInside) isEvent()   {}
func (ClickOutside) isEvent()  {}
func (Show) isEvent()          {}
func (Hide) isEvent()          {}
func (Toggle) isEvent()        {}

// EffectKind names a side effect requested by a transition.
type EffectKind int

const (
	EffectFetch EffectKind = iota
	EffectPostMarkAllRead
	EffectPostMarkRead
	EffectNavigate
	EffectRefreshCounter
)

// Effect is work the caller must perform after a transition.
type Effect struct {
	Kind   EffectKind
	View   model.ViewSelection
	Seq    uint64
	Record model.Notification
	URL    string
}

// NewState returns the initial state: unread view, loading, visible.
func NewState() State {
	return State{View: model.ViewUnread, Status: StatusLoading, Visible: true}
}

// Next applies e to s. It never performs I/O; requested work is returned
// as effects in the order it should be started.
func Next(s State, e Event) (State, []Effect) {
	switch e := e.(type) {
	case SelectAll:
		if s.View == model.ViewAll {
			return s, nil
		}
		return switchView(s, model.ViewAll)

	case SelectUnread:
		return switchView(s, model.ViewUnread)

	case Hydrate:
		return fetch(s)

	case Fetched:
		if e.Seq != s.Seq {
			return s, nil
		}
		s.Records = e.Records
		s.Status = StatusReady
		s.Err = nil
		return s, nil

	case FetchFailed:
		if e.Seq != s.Seq {
			return s, nil
		}
		s.Status = StatusReady
		s.Err = e.Err
		return s, nil

	case MarkAllRead:
		return s, []Effect{{Kind: EffectPostMarkAllRead}}

	case MarkedAllRead:
		if e.Err != nil {
			s.Err = e.Err
			return s, nil
		}
		var effects []Effect
		s, effects = switchView(s, model.ViewUnread)
		return s, append(effects, Effect{Kind: EffectRefreshCounter})

	case Visit:
		if s.View == model.ViewUnread {
			return s, []Effect{{Kind: EffectPostMarkRead, Record: e.Record}}
		}
		if e.Record.HasClickLink() {
			return s, []Effect{{Kind: EffectNavigate, URL: e.Record.ClickLink}}
		}
		return s, nil

	case MarkedRead:
		if e.Err != nil {
			s.Err = e.Err
			return s, nil
		}
		if e.Record.HasClickLink() {
			return s, []Effect{{Kind: EffectNavigate, URL: e.Record.ClickLink}}
		}
		var effects []Effect
		s, effects = switchView(s, model.ViewUnread)
		return s, append(effects, Effect{Kind: EffectRefreshCounter})

	case ClickInside:
		return s, nil

	case ClickOutside:
		if s.Visible {
			s.Visible = false
		}
		return s, nil

	case Show:
		s.Visible = true
		return s, nil

	case Hide:
		s.Visible = false
		return s, nil

	case Toggle:
		s.Visible = !s.Visible
		return s, nil
	}

	return s, nil
}

// switchView clears the collection and fetches view. Records of the
// previous view are never shown under the new tab.
func switchView(s State, view model.ViewSelection) (State, []Effect) {
	s.View = view
	s.Records = nil
	return fetch(s)
}

// fetch starts a new collection request for the current view. The current
// records stay on screen until the answer arrives.
func fetch(s State) (State, []Effect) {
	s.Seq++
	s.Status = StatusLoading
	return s, []Effect{{Kind: EffectFetch, View: s.View, Seq: s.Seq}}
}
