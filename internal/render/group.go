package render

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/notification-tray/internal/model"
)

// DateGroupLayout formats the group titles of the "all" view.
const DateGroupLayout = "January 02, 2006"

// Template data keys injected next to the payload fields.
const (
	FieldSelectedView = "selectedView"
	FieldCreated      = "created"
)

// Message is a notification together with its rendered body.
type Message struct {
	model.Notification
	Body string
}

// Group is a titled run of messages, newest first.
type Group struct {
	Title    string
	Messages []Message
}

// GroupOptions tunes GroupNotifications.
type GroupOptions struct {
	// Location is the zone used for date titles. Defaults to time.Local.
	Location *time.Location

	Logger *zap.Logger
}

// GroupNotifications projects records into display groups.
//
// The unread view groups by type family, the all view by calendar date.
// Groups appear in the order their first record appears in records;
// messages within a group are stably sorted newest first. Records whose
// renderer is missing or fails are left out and logged; they never affect
// the other messages. Groups left empty are dropped.
func GroupNotifications(
	records []model.Notification,
	view model.ViewSelection,
	reg *Registry,
	opts GroupOptions,
) []Group {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var (
		order   []string
		buckets = make(map[string][]model.Notification)
	)
	for _, n := range records {
		key := groupKey(n, view, loc)
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], n)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		members := buckets[key]
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].CreatedAt.After(members[j].CreatedAt)
		})

		g := Group{Title: key}
		for _, n := range members {
			if !reg.Has(n.RendererKey) {
				log.Warn("no renderer for notification",
					zap.Int64("id", n.ID),
					zap.String("renderer", n.RendererKey),
				)
				continue
			}
			body, err := renderOne(reg, n, view)
			if err != nil {
				log.Warn("notification render failed",
					zap.Int64("id", n.ID),
					zap.String("renderer", n.RendererKey),
					zap.Error(err),
				)
				continue
			}
			g.Messages = append(g.Messages, Message{Notification: n, Body: body})
		}
		if len(g.Messages) > 0 {
			groups = append(groups, g)
		}
	}

	return groups
}

// Flatten returns the messages of groups in display order.
func Flatten(groups []Group) []Message {
	var out []Message
	for _, g := range groups {
		out = append(out, g.Messages...)
	}
	return out
}

func groupKey(n model.Notification, view model.ViewSelection, loc *time.Location) string {
	if view == model.ViewAll {
		return n.CreatedAt.In(loc).Format(DateGroupLayout)
	}
	return n.Family()
}

// renderOne renders a single notification, converting a template panic
// into an error so one bad payload cannot take down the batch.
func renderOne(reg *Registry, n model.Notification, view model.ViewSelection) (body string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()

	data := make(map[string]any, len(n.Payload)+2)
	for k, v := range n.Payload {
		data[k] = v
	}
	data[FieldSelectedView] = view.String()
	data[FieldCreated] = n.CreatedAt.Format(time.RFC3339Nano)

	return reg.Render(n.RendererKey, data)
}
