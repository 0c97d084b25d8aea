// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/danielhkuo/wqt-backend/auth"
	"github.com/danielhkuo/wqt-backend/db"
)

// logUsageEvent appends to the usage log. Failures are logged and
// swallowed so the request that triggered the event still succeeds.
func logUsageEvent(ctx context.Context, pool *db.Pool, category string, detail map[string]any, ipHash string) {
	if detail == nil {
		detail = map[string]any{}
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		slog.Error("failed to encode usage event", "category", category, "error", err)
		return
	}

	_, err = pool.ExecContext(ctx, `
		INSERT INTO usage_events (id, created_at, category, detail, ip_hash)
		VALUES (?, ?, ?, ?, ?)
	`, auth.NewID(), time.Now().UTC(), category, string(raw), ipHash)
	if err != nil {
		slog.Error("failed to log usage event", "category", category, "error", err)
	}
}
