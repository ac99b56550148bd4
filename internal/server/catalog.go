package server

import (
	"fmt"
	"maps"
	"sort"

	"github.com/nhle/notification-tray/internal/store"
)

// Renderer keys served by the built-in template endpoint.
const (
	RendererBasic        = "basic"
	RendererDiscussion   = "discussion"
	RendererAnnouncement = "announcement"
)

// Templates holds the built-in renderer template bodies, keyed by renderer.
// Bodies are Go text/template sources executed against the message payload.
var Templates = map[string]string{
	RendererBasic:        `{{default "Notification" .subject}}{{if .body}}: {{truncate 80 .body}}{{end}}`,
	RendererDiscussion:   `{{default "someone" .action_username}} {{.verb}} "{{truncate 60 .thread_title}}"`,
	RendererAnnouncement: `New announcement: {{.title}}{{if .excerpt}} ({{truncate 40 .excerpt}}){{end}}`,
}

type cannedMessage struct {
	renderer string
	payload  map[string]any
}

var canned = map[string]cannedMessage{
	"testserver.type1": {
		renderer: RendererBasic,
		payload: map[string]any{
			"_schema_version": 1,
			"subject":         "Test Notification",
			"body":            "Here is test notification that has a simple subject and body",
		},
	},
	"testserver.msg-with-resolved-click-link": {
		renderer: RendererBasic,
		payload: map[string]any{
			"_schema_version": 1,
			"_click_link":     "/courses/demo/?param1=param_val1&param2=param_val2",
			"subject":         "Clickable Notification",
			"body":            "You should be able to click and redirect on this Notification",
		},
	},
	"open-edx.lms.discussions.reply-to-thread": {
		renderer: RendererDiscussion,
		payload: map[string]any{
			"_schema_version":    1,
			"_click_link":        "/courses/demo/discussion",
			"original_poster_id": 1,
			"action_username":    "testuser",
			"verb":               "replied to",
			"thread_title":       "A demo posting to the discussion forums",
		},
	},
	"open-edx.lms.discussions.thread-followed": {
		renderer: RendererDiscussion,
		payload: map[string]any{
			"_schema_version":    1,
			"_click_link":        "/courses/demo/discussion",
			"original_poster_id": 1,
			"action_username":    "testuser",
			"verb":               "followed",
			"thread_title":       "A demo posting to the discussion forums",
			"num_followers":      3,
		},
	},
	"open-edx.lms.discussions.post-upvoted": {
		renderer: RendererDiscussion,
		payload: map[string]any{
			"_schema_version":    1,
			"_click_link":        "/courses/demo/discussion",
			"original_poster_id": 1,
			"action_username":    "testuser",
			"verb":               "upvoted",
			"thread_title":       "A demo posting to the discussion forums",
			"num_upvotes":        5,
		},
	},
	"open-edx.studio.announcements.new-announcement": {
		renderer: RendererAnnouncement,
		payload: map[string]any{
			"_schema_version": 1,
			"_click_link":     "/courses/demo/announcements",
			"title":           "Gettysburg Address",
			"excerpt":         "Four score and seven years ago our fathers brought forth on this continent, a new nation.",
		},
	},
}

// CannedTypes lists the message types CannedMessage knows, sorted.
func CannedTypes() []string {
	names := make([]string, 0, len(canned))
	for name := range canned {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CannedMessage returns a ready-to-publish test message of the given type.
func CannedMessage(typeName, namespace string) (store.Message, error) {
	c, ok := canned[typeName]
	if !ok {
		return store.Message{}, fmt.Errorf("unknown message type %q", typeName)
	}
	return store.Message{
		Namespace: namespace,
		Type:      store.MessageType{Name: typeName, Renderer: c.renderer},
		Payload:   maps.Clone(c.payload),
	}, nil
}
