// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielhkuo/wqt-backend/auth"
	"github.com/danielhkuo/wqt-backend/cliparse"
	"github.com/danielhkuo/wqt-backend/db"
	"github.com/danielhkuo/wqt-backend/middleware"
	"github.com/danielhkuo/wqt-backend/models"
)

const maxMessageLen = 2000

type MessageHandler struct {
	db  *db.Pool
	cfg cliparse.Config
}

func NewMessageHandler(db *db.Pool, cfg cliparse.Config) *MessageHandler {
	return &MessageHandler{db: db, cfg: cfg}
}

// CreateMessage handles POST /api/admin/messages
// An empty recipient_id broadcasts to everyone.
func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceMessage, auth.ActionWrite) {
		return
	}

	var req models.CreateMessageRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	body := strings.TrimSpace(req.Body)
	if body == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Message body is required")
		return
	}
	if utf8.RuneCountInString(body) > maxMessageLen {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Message body too long")
		return
	}

	msg := models.AdminMessage{
		ID:        auth.NewID(),
		SenderID:  claims.UserID(),
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	if id := strings.TrimSpace(req.RecipientID); id != "" {
		var exists string
		err := h.db.QueryRowContext(r.Context(), "SELECT id FROM users WHERE id = ?", id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			middleware.ErrorResponse(w, http.StatusNotFound, "Recipient not found")
			return
		}
		if err != nil {
			slog.Error("failed to query recipient", "error", err)
			middleware.InternalError(w, r)
			return
		}
		msg.RecipientID = &id
	}

	_, err := h.db.ExecContext(r.Context(), `
		INSERT INTO admin_messages (id, sender_id, recipient_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.SenderID, msg.RecipientID, msg.Body, msg.CreatedAt)
	if err != nil {
		slog.Error("failed to insert message", "error", err)
		middleware.InternalError(w, r)
		return
	}

	slog.Info("message sent", "message_id", msg.ID, "sender_id", msg.SenderID, "broadcast", msg.RecipientID == nil)
	middleware.JSONResponse(w, http.StatusCreated, msg)
}

// ListMessages handles GET /api/messages?limit=
// Returns messages addressed to the caller plus broadcasts, newest first.
// Unread counts direct messages only; broadcasts carry no per-user read state.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceMessage, auth.ActionRead) {
		return
	}

	messages := []models.AdminMessage{}
	err := h.db.SelectContext(r.Context(), &messages, `
		SELECT id, sender_id, recipient_id, body, created_at, read_at
		FROM admin_messages
		WHERE recipient_id = ? OR recipient_id IS NULL
		ORDER BY created_at DESC
		LIMIT ?
	`, claims.UserID(), parseLimit(r, 50, 200))
	if err != nil {
		slog.Error("failed to query messages", "error", err)
		middleware.InternalError(w, r)
		return
	}

	var unread int
	err = h.db.QueryRowContext(r.Context(), `
		SELECT COUNT(*) FROM admin_messages WHERE recipient_id = ? AND read_at IS NULL
	`, claims.UserID()).Scan(&unread)
	if err != nil {
		slog.Error("failed to count unread messages", "error", err)
		middleware.InternalError(w, r)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MessagesResponse{Messages: messages, Unread: unread})
}

// MarkRead handles POST /api/messages/{id}/read
// Only the recipient may mark a direct message. Marking a broadcast is a no-op.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceMessage, auth.ActionRead) {
		return
	}

	var msg models.AdminMessage
	err := h.db.GetContext(r.Context(), &msg, `
		SELECT id, sender_id, recipient_id, body, created_at, read_at
		FROM admin_messages
		WHERE id = ?
	`, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Message not found")
		return
	}
	if err != nil {
		slog.Error("failed to query message", "error", err)
		middleware.InternalError(w, r)
		return
	}

	if msg.RecipientID == nil {
		middleware.JSONResponse(w, http.StatusOK, msg)
		return
	}
	if *msg.RecipientID != claims.UserID() {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not your message")
		return
	}

	if msg.ReadAt == nil {
		now := time.Now().UTC()
		_, err = h.db.ExecContext(r.Context(), `
			UPDATE admin_messages SET read_at = ? WHERE id = ? AND read_at IS NULL
		`, now, msg.ID)
		if err != nil {
			slog.Error("failed to mark message read", "error", err)
			middleware.InternalError(w, r)
			return
		}
		msg.ReadAt = &now
	}

	middleware.JSONResponse(w, http.StatusOK, msg)
}
