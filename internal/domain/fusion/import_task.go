package fusion

import (
	"path/filepath"
	"strings"
	"time"
)

type FileType string

const (
	FileTypeSpreadsheet FileType = "xlsx"
	FileTypeDelimited   FileType = "csv"
	FileTypeWord        FileType = "docx"
	FileTypePDF         FileType = "pdf"
	FileTypeUnknown     FileType = "unknown"
)

// DetectFileType maps an uploaded file name to the parser family that handles it.
func DetectFileType(fileName string) FileType {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(fileName))) {
	case ".xlsx", ".xlsm":
		return FileTypeSpreadsheet
	case ".csv", ".tsv", ".txt":
		return FileTypeDelimited
	case ".docx":
		return FileTypeWord
	case ".pdf":
		return FileTypePDF
	default:
		return FileTypeUnknown
	}
}

func (t FileType) IsTabular() bool {
	return t == FileTypeSpreadsheet || t == FileTypeDelimited
}

func (t FileType) IsDocument() bool {
	return t == FileTypeWord || t == FileTypePDF
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusExtracting TaskStatus = "EXTRACTING"
	TaskStatusMatching   TaskStatus = "MATCHING"
	TaskStatusSuccess    TaskStatus = "SUCCESS"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// predecessors lists, for each target status, the statuses a task may leave to reach it.
// EXTRACTING lists itself so a worker resuming after a crash can re-enter the stage.
var predecessors = map[TaskStatus][]TaskStatus{
	TaskStatusExtracting: {TaskStatusPending, TaskStatusExtracting},
	TaskStatusMatching:   {TaskStatusExtracting},
	TaskStatusSuccess:    {TaskStatusMatching},
	TaskStatusFailed:     {TaskStatusPending, TaskStatusExtracting, TaskStatusMatching},
}

// AllowedPredecessors returns the statuses from which next may be entered.
func AllowedPredecessors(next TaskStatus) []TaskStatus {
	from := predecessors[next]
	out := make([]TaskStatus, len(from))
	copy(out, from)
	return out
}

func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, from := range predecessors[next] {
		if from == s {
			return true
		}
	}
	return false
}

func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailed
}

// AcceptsProcessing reports whether a worker may pick the task up.
func (s TaskStatus) AcceptsProcessing() bool {
	return s == TaskStatusPending || s == TaskStatusExtracting
}

type Creator struct {
	UserID   string
	Username string
}

type ImportTask struct {
	ID           string
	FileName     string
	FileType     FileType
	StoragePath  string
	Status       TaskStatus
	Creator      *Creator
	ExtractCount int
	OriginalText string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (t ImportTask) CreatorID() string {
	if t.Creator == nil {
		return ""
	}
	return t.Creator.UserID
}

type TaskPage struct {
	Items []ImportTask
	Total int64
	Page  int
	Size  int
}
