package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/graphmail/graphmail/internal/auth"
	"github.com/graphmail/graphmail/internal/graph"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps domain errors onto HTTP statuses: authentication failures
// are 401, upstream API errors keep their status, everything else is 500.
func writeError(c *gin.Context, err error) {
	var authErr *auth.AuthenticationError
	if errors.As(err, &authErr) {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: authErr.Error(), Code: authErr.Code})
		return
	}
	var apiErr *graph.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		c.JSON(status, errorResponse{Error: apiErr.Error(), Code: apiErr.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func (s *Server) handleAuthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.authn.AuthStatus())
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := s.mailbox.Me(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleToken(c *gin.Context) {
	token, err := s.authn.GetValidToken(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.authn.Logout(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// listQuery builds ListOptions from the common listing query parameters.
func (s *Server) listQuery(c *gin.Context) graph.ListOptions {
	opts := graph.ListOptions{
		Top:            s.cfg.PageSize,
		ExcludeSenders: s.cfg.ExcludeSenders,
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		opts.Top = v
	}
	if v, err := strconv.Atoi(c.Query("days")); err == nil && v > 0 {
		opts.Since = time.Now().AddDate(0, 0, -v)
	}
	if c.Query("unread") == "true" {
		opts.UnreadOnly = true
	}
	return opts
}

func (s *Server) handleFolder(folder string) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := s.mailbox.ListMessages(c.Request.Context(), folder, s.listQuery(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"folder": folder, "count": len(msgs), "messages": msgs})
	}
}

func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "missing query parameter q"})
		return
	}
	opts := s.listQuery(c)
	opts.Search = query

	msgs, err := s.mailbox.ListMessages(c.Request.Context(), "inbox", opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "count": len(msgs), "messages": msgs})
}

func (s *Server) handleDelta(c *gin.Context) {
	folder := c.Param("folder")
	result, err := s.syncer.FetchChanges(c.Request.Context(), folder)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetMessage(c *gin.Context) {
	msg, err := s.mailbox.GetMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

type sendRequest struct {
	To         []string `json:"to" binding:"required,min=1"`
	Cc         []string `json:"cc"`
	Bcc        []string `json:"bcc"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	HTML       bool     `json:"html"`
	Importance string   `json:"importance" binding:"omitempty,oneof=low normal high"`
}

func (s *Server) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	out := &graph.OutgoingMessage{
		To:         req.To,
		Cc:         req.Cc,
		Bcc:        req.Bcc,
		Subject:    req.Subject,
		Body:       req.Body,
		HTML:       req.HTML,
		Importance: req.Importance,
	}
	if err := s.mailbox.SendMessage(c.Request.Context(), out); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	id := c.Param("id")
	if err := s.mailbox.MarkAsRead(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_read": true})
}
