package handler

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cuongbtq/booking-be/internal/booking/domain"
)

// DecodeHistoryCursor parses an opaque history cursor. An empty string is the first page.
func DecodeHistoryCursor(cursorStr string) (*domain.HistoryCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var cursor domain.HistoryCursor
	if _, err := fmt.Sscanf(parts[0], "%d", &cursor.Due); err != nil {
		return nil, fmt.Errorf("invalid due in cursor: %w", err)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &cursor.JobID); err != nil {
		return nil, fmt.Errorf("invalid job id in cursor: %w", err)
	}

	return &cursor, nil
}

// EncodeHistoryCursor renders a cursor for the next_cursor response field
func EncodeHistoryCursor(cursor *domain.HistoryCursor) string {
	if cursor == nil {
		return ""
	}
	cs := fmt.Sprintf("%d|%d", cursor.Due, cursor.JobID)
	return base64.RawURLEncoding.EncodeToString([]byte(cs))
}
