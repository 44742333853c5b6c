// internal/models/session.go
package models

import "time"

// Session 一次创作会话，拥有脚本段落和当前的图片编辑尝试
// 只存在于内存中
type Session struct {
	ID               string            `json:"id"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Topic            string            `json:"topic,omitempty"`
	Language         string            `json:"language,omitempty"`
	ScriptInProgress bool              `json:"script_in_progress"`
	ScriptRuns       int               `json:"-"` // 尚未完成的脚本请求数
	Segments         []ScriptSegment   `json:"segments"`
	ImageEdit        *ImageEditAttempt `json:"image_edit,omitempty"`
}

// ImageEditAttempt 当前的图片编辑尝试，新的尝试整体替换旧的
type ImageEditAttempt struct {
	ID          string       `json:"id"`
	Instruction string       `json:"instruction"`
	Source      ImageHandle  `json:"source"`
	Result      *ImageHandle `json:"result,omitempty"`
	InProgress  bool         `json:"in_progress"`
	Error       string       `json:"error,omitempty"`
}

// Clone 深拷贝会话
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Segments = make([]ScriptSegment, len(s.Segments))
	for i, seg := range s.Segments {
		out.Segments[i] = seg.Clone()
	}
	if s.ImageEdit != nil {
		edit := *s.ImageEdit
		out.ImageEdit = &edit
	}
	return &out
}

// FindSegment 按 ID 查找段落下标，找不到返回 -1
func (s *Session) FindSegment(segmentID string) int {
	for i := range s.Segments {
		if s.Segments[i].ID == segmentID {
			return i
		}
	}
	return -1
}

// 会话事件类型
const (
	EventSessionCreated     = "session_created"
	EventScriptStarted      = "script_started"
	EventScriptReady        = "script_ready"
	EventScriptFailed       = "script_failed"
	EventSegmentImageStart  = "segment_image_started"
	EventSegmentImageReady  = "segment_image_ready"
	EventSegmentImageFailed = "segment_image_failed"
	EventImageEditStarted   = "image_edit_started"
	EventImageEditReady     = "image_edit_ready"
	EventImageEditFailed    = "image_edit_failed"
	EventSessionSnapshot    = "session_snapshot"
)

// SessionEvent 会话状态变化通知，Session 为变化后的快照
type SessionEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	SegmentID string    `json:"segment_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Session   *Session  `json:"session,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
