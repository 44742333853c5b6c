// internal/services/session_service.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/Corphon/ShortsStudio/internal/errors"
	"github.com/Corphon/ShortsStudio/internal/models"
	"github.com/Corphon/ShortsStudio/internal/utils"
)

// 同一会话批量生成图片时的并发上限
const maxParallelImageJobs = 4

// EventPublisher 接收会话状态变化
type EventPublisher interface {
	PublishSessionEvent(event models.SessionEvent)
}

// SessionService 管理内存中的创作会话
// 存储的 *models.Session 视为不可变快照，每次修改都先复制再整体替换
type SessionService struct {
	gateway   *Gateway
	store     *cache.Cache
	locks     *LockManager
	publisher EventPublisher
	metrics   *utils.MetricsCollector
	logger    *utils.Logger
}

// SessionServiceOptions 会话服务配置
type SessionServiceOptions struct {
	TTL       time.Duration
	Publisher EventPublisher
	Metrics   *utils.MetricsCollector
	Logger    *utils.Logger
}

// SegmentImageResult 批量生成中单个段落的结果
type SegmentImageResult struct {
	SegmentID string                `json:"segment_id"`
	Segment   *models.ScriptSegment `json:"segment,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// NewSessionService 创建会话服务
func NewSessionService(gateway *Gateway, opts SessionServiceOptions) *SessionService {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = utils.GetLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = utils.NewMetricsCollector()
	}

	s := &SessionService{
		gateway:   gateway,
		store:     cache.New(opts.TTL, opts.TTL/2),
		locks:     NewLockManager(),
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	s.store.OnEvicted(func(id string, _ interface{}) {
		s.locks.Forget(id)
		s.metrics.AddGauge("sessions_active", -1)
	})
	return s
}

// CreateSession 创建空会话
func (s *SessionService) CreateSession() *models.Session {
	now := time.Now()
	session := &models.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Segments:  []models.ScriptSegment{},
	}
	s.store.SetDefault(session.ID, session)
	s.metrics.IncrementCounter("sessions_created_total")
	s.metrics.AddGauge("sessions_active", 1)
	s.publish(models.EventSessionCreated, session, "", "")
	return session.Clone()
}

// GetSession 返回会话快照
func (s *SessionService) GetSession(id string) (*models.Session, error) {
	session, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// DeleteSession 删除会话，进行中的请求完成后结果被丢弃
func (s *SessionService) DeleteSession(id string) error {
	if _, err := s.load(id); err != nil {
		return err
	}
	s.store.Delete(id)
	return nil
}

// GenerateScript 发起新脚本生成
// 发起时清空现有段落；多个生成并发时以最后完成的为准，
// 全部完成之前 ScriptInProgress 保持为 true
func (s *SessionService) GenerateScript(ctx context.Context, id string, req ScriptRequest) (*models.Session, error) {
	if _, err := s.load(id); err != nil {
		return nil, err
	}
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	started, err := s.update(id, func(session *models.Session) error {
		session.Topic = req.Topic
		session.Language = req.Language
		session.Segments = []models.ScriptSegment{}
		session.ScriptRuns++
		session.ScriptInProgress = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(models.EventScriptStarted, started, "", "")

	segments, genErr := s.gateway.GenerateScript(ctx, req)

	updated, err := s.update(id, func(session *models.Session) error {
		if session.ScriptRuns > 0 {
			session.ScriptRuns--
		}
		session.ScriptInProgress = session.ScriptRuns > 0
		if genErr == nil {
			session.Segments = segments
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Script result discarded, session is gone", map[string]interface{}{"session_id": id})
		return nil, err
	}

	if genErr != nil {
		s.publish(models.EventScriptFailed, updated, "", UserMessage(genErr))
		return nil, genErr
	}
	s.publish(models.EventScriptReady, updated, "", "")
	return updated.Clone(), nil
}

// GenerateSegmentImage 为单个段落生成配图，只替换该段落
func (s *SessionService) GenerateSegmentImage(ctx context.Context, id, segmentID string) (*models.ScriptSegment, error) {
	var visualIdea, label string
	started, err := s.update(id, func(session *models.Session) error {
		idx := session.FindSegment(segmentID)
		if idx < 0 {
			return apperrors.ErrSegmentNotFound
		}
		if session.Segments[idx].ImageGenerationInProgress {
			return apperrors.NewConflictError("image generation already in progress", nil)
		}
		seg := session.Segments[idx].Clone()
		seg.ImageGenerationInProgress = true
		session.Segments[idx] = seg
		visualIdea = seg.VisualIdea
		label = seg.Label
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(models.EventSegmentImageStart, started, segmentID, "")

	image, genErr := s.gateway.GenerateImage(ctx, visualIdea)

	var result models.ScriptSegment
	updated, err := s.update(id, func(session *models.Session) error {
		idx := session.FindSegment(segmentID)
		if idx < 0 {
			return apperrors.ErrSegmentNotFound
		}
		seg := session.Segments[idx].Clone()
		seg.ImageGenerationInProgress = false
		if genErr == nil {
			seg.GeneratedImage = &image
		}
		session.Segments[idx] = seg
		result = seg.Clone()
		return nil
	})
	if err != nil {
		// 脚本已被替换或会话已删除，结果丢弃
		s.logger.Info("Segment image discarded", map[string]interface{}{
			"session_id": id,
			"segment_id": segmentID,
		})
		if genErr != nil {
			return nil, genErr
		}
		return nil, err
	}

	if genErr != nil {
		s.publish(models.EventSegmentImageFailed, updated, segmentID, SegmentImageMessage(label, genErr))
		return nil, genErr
	}
	s.publish(models.EventSegmentImageReady, updated, segmentID, "")
	return &result, nil
}

// GenerateAllImages 为所有还没有配图的段落并发生成
// 单个段落失败不影响其他段落
func (s *SessionService) GenerateAllImages(ctx context.Context, id string) ([]SegmentImageResult, error) {
	session, err := s.load(id)
	if err != nil {
		return nil, err
	}

	var pending []models.ScriptSegment
	for _, seg := range session.Segments {
		if seg.GeneratedImage == nil && !seg.ImageGenerationInProgress {
			pending = append(pending, seg)
		}
	}

	results := make([]SegmentImageResult, len(pending))
	var g errgroup.Group
	g.SetLimit(maxParallelImageJobs)
	for i, pendingSeg := range pending {
		g.Go(func() error {
			seg, err := s.GenerateSegmentImage(ctx, id, pendingSeg.ID)
			results[i] = SegmentImageResult{SegmentID: pendingSeg.ID, Segment: seg}
			if err != nil {
				results[i].Error = SegmentImageMessage(pendingSeg.Label, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// EditImage 记录一次图片编辑尝试，新的尝试替换旧的
func (s *SessionService) EditImage(ctx context.Context, id, instruction string, source []byte, sourceMIME string) (*models.ImageEditAttempt, error) {
	mimeType, err := ValidateEditInput(instruction, source, sourceMIME)
	if err != nil {
		return nil, err
	}

	started, err := s.update(id, func(session *models.Session) error {
		session.ImageEdit = &models.ImageEditAttempt{
			ID:          uuid.NewString(),
			Instruction: instruction,
			Source:      models.NewImageHandle(mimeType, source),
			InProgress:  true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	attemptID := started.ImageEdit.ID
	s.publish(models.EventImageEditStarted, started, "", "")

	image, genErr := s.gateway.EditImage(ctx, instruction, source, mimeType)

	var result models.ImageEditAttempt
	updated, err := s.update(id, func(session *models.Session) error {
		// 期间发起了新的编辑，本次结果作废
		if session.ImageEdit == nil || session.ImageEdit.ID != attemptID {
			return apperrors.NewConflictError("image edit superseded", nil)
		}
		edit := *session.ImageEdit
		edit.InProgress = false
		if genErr != nil {
			edit.Error = UserMessage(genErr)
		} else {
			edit.Result = &image
		}
		session.ImageEdit = &edit
		result = edit
		return nil
	})
	if err != nil {
		if genErr != nil {
			return nil, genErr
		}
		return nil, err
	}

	if genErr != nil {
		s.publish(models.EventImageEditFailed, updated, "", UserMessage(genErr))
		return nil, genErr
	}
	s.publish(models.EventImageEditReady, updated, "", "")
	return &result, nil
}

// load 读取当前存储的会话，不复制
func (s *SessionService) load(id string) (*models.Session, error) {
	v, ok := s.store.Get(id)
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return v.(*models.Session), nil
}

// update 在会话锁下复制、修改并替换会话，同时刷新过期时间
func (s *SessionService) update(id string, mutate func(session *models.Session) error) (*models.Session, error) {
	var next *models.Session
	err := s.locks.ExecuteWithSessionLock(id, func() error {
		current, err := s.load(id)
		if err != nil {
			return err
		}
		candidate := current.Clone()
		if err := mutate(candidate); err != nil {
			return err
		}
		candidate.UpdatedAt = time.Now()
		s.store.SetDefault(id, candidate)
		next = candidate
		return nil
	})
	return next, err
}

func (s *SessionService) publish(eventType string, session *models.Session, segmentID, message string) {
	if s.publisher == nil {
		return
	}
	event := models.SessionEvent{
		Type:      eventType,
		SessionID: session.ID,
		SegmentID: segmentID,
		Error:     message,
		Session:   session.Clone(),
		Timestamp: time.Now(),
	}
	s.publisher.PublishSessionEvent(event)
}
