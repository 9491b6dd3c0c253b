package fusion

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
)

var taskIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

var unsafeFileNameChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

type TaskOutput struct {
	ID           string    `json:"id"`
	FileName     string    `json:"file_name"`
	FileType     string    `json:"file_type"`
	Status       string    `json:"status"`
	ExtractCount int       `json:"extract_count"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatorID    string    `json:"creator_id,omitempty"`
	CreatorName  string    `json:"creator_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toTaskOutput(task domain.ImportTask) TaskOutput {
	out := TaskOutput{
		ID:           task.ID,
		FileName:     task.FileName,
		FileType:     string(task.FileType),
		Status:       string(task.Status),
		ExtractCount: task.ExtractCount,
		ErrorMessage: task.ErrorMessage,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
	}
	if task.Creator != nil {
		out.CreatorID = task.Creator.UserID
		out.CreatorName = task.Creator.Username
	}
	return out
}

// SanitizeFileName keeps the base name and replaces anything outside letters, digits, '.', '-' and '_'.
func SanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	base = unsafeFileNameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, ".")
	if base == "" {
		return "upload"
	}
	return base
}

func truncateReason(reason string) string {
	const maxLen = 1000
	reason = strings.TrimSpace(reason)
	if len(reason) <= maxLen {
		return reason
	}
	cut := maxLen
	for cut > 0 && !isRuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
