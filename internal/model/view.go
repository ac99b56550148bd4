package model

// ViewSelection is the notification list the pane is showing.
type ViewSelection int

const (
	ViewUnread ViewSelection = iota
	ViewAll
)

// String returns the name templates and the status bar use for the view.
func (v ViewSelection) String() string {
	switch v {
	case ViewAll:
		return "all"
	default:
		return "unread"
	}
}
