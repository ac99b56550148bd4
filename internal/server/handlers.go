package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nhle/notification-tray/internal/api"
	"github.com/nhle/notification-tray/internal/model"
	"github.com/nhle/notification-tray/internal/store"
)

var (
	trueStrings  = []string{"True", "true", "1", "yes"}
	falseStrings = []string{"False", "false", "0", "no"}
)

func parseBool(s string) (bool, error) {
	for _, t := range trueStrings {
		if s == t {
			return true, nil
		}
	}
	for _, f := range falseStrings {
		if s == f {
			return false, nil
		}
	}
	return false, fmt.Errorf("%q is not a boolean", s)
}

// parseFilter reads read, unread, namespace, msg_type, offset and limit
// from the query string. Omitted read flags default to true.
func parseFilter(c *gin.Context) (store.NotificationFilter, error) {
	f := store.AllNotifications()

	if v, ok := c.GetQuery("read"); ok {
		b, err := parseBool(v)
		if err != nil {
			return f, fmt.Errorf("read: %w", err)
		}
		f.Read = b
	}
	if v, ok := c.GetQuery("unread"); ok {
		b, err := parseBool(v)
		if err != nil {
			return f, fmt.Errorf("unread: %w", err)
		}
		f.Unread = b
	}
	if v, ok := c.GetQuery("namespace"); ok {
		f.Namespace = &v
	}
	if v, ok := c.GetQuery("msg_type"); ok {
		f.TypeName = &v
	}
	for name, dst := range map[string]*int{"offset": &f.Offset, "limit": &f.Limit} {
		v, ok := c.GetQuery(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%s: %q is not a non-negative integer", name, v)
		}
		*dst = n
	}
	return f, nil
}

func (s *Server) countHandler(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid query", err.Error())
		return
	}

	n, err := s.store.CountNotifications(c.Request.Context(), userID(c), filter)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.CountResponse{Count: n})
}

func (s *Server) listHandler(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid query", err.Error())
		return
	}

	ns, err := s.store.Notifications(c.Request.Context(), userID(c), filter)
	if err != nil {
		s.storeError(c, err)
		return
	}

	out := make([]api.UserNotification, 0, len(ns))
	for _, n := range ns {
		out = append(out, toWire(n))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) detailHandler(c *gin.Context) {
	id, ok := msgID(c)
	if !ok {
		return
	}

	n, err := s.store.Notification(c.Request.Context(), userID(c), id)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toWire(*n))
}

type markRequest struct {
	MarkAs string `json:"mark_as" form:"mark_as"`
}

func (s *Server) markOneHandler(c *gin.Context) {
	id, ok := msgID(c)
	if !ok {
		return
	}

	var req markRequest
	if err := c.ShouldBind(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid body", err.Error())
		return
	}

	switch req.MarkAs {
	case "":
	case "read", "unread":
		if err := s.store.SetRead(c.Request.Context(), userID(c), id, req.MarkAs == "read"); err != nil {
			s.storeError(c, err)
			return
		}
	default:
		abort(c, http.StatusBadRequest, "invalid body", fmt.Sprintf("mark_as must be read or unread, got %q", req.MarkAs))
		return
	}
	c.JSON(http.StatusOK, []any{})
}

func (s *Server) markAllHandler(c *gin.Context) {
	var namespace *string
	if v, ok := c.GetPostForm("namespace"); ok {
		namespace = &v
	}

	changed, err := s.store.MarkAllRead(c.Request.Context(), userID(c), namespace)
	if err != nil {
		s.storeError(c, err)
		return
	}
	s.log.Debug("marked all read",
		zap.Int64("user_id", userID(c)),
		zap.Int64("changed", changed),
	)
	c.JSON(http.StatusOK, []any{})
}

func (s *Server) templatesHandler(c *gin.Context) {
	index := make(map[string]string, len(Templates))
	for k := range Templates {
		index[k] = model.APIPrefix + "/renderers/templates/" + k
	}
	c.JSON(http.StatusOK, index)
}

func (s *Server) templateHandler(c *gin.Context) {
	body, ok := Templates[c.Param("key")]
	if !ok {
		abort(c, http.StatusNotFound, "renderer not found", c.Param("key"))
		return
	}
	c.String(http.StatusOK, body)
}

func msgID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid notification id", c.Param("id"))
		return 0, false
	}
	return id, true
}

func (s *Server) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		abort(c, http.StatusNotFound, "notification not found", "")
	case errors.Is(err, store.ErrInvalidFilter):
		abort(c, http.StatusBadRequest, "invalid query", err.Error())
	default:
		s.log.Error("store failure",
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.Error(err),
		)
		abort(c, http.StatusInternalServerError, "internal server error", "")
	}
}

func toWire(n store.UserNotification) api.UserNotification {
	return api.UserNotification{
		ID:      n.ID,
		UserID:  n.UserID,
		ReadAt:  n.ReadAt,
		Created: n.Created,
		Msg: api.Message{
			ID:        n.Message.ID,
			Namespace: n.Message.Namespace,
			Created:   n.Message.Created,
			Payload:   n.Message.Payload,
			MsgType: api.MessageType{
				Name:     n.Message.Type.Name,
				Renderer: n.Message.Type.Renderer,
			},
		},
	}
}
