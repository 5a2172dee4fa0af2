package service

import (
	"context"
	"errors"
	"fmt"
	"roofsite-go/internal/model"
	"roofsite-go/internal/repository"
	"roofsite-go/pkg/kafka"
	"roofsite-go/pkg/log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeadInput 是访客提交的线索内容。
type LeadInput struct {
	SiteID  uint
	Name    string
	Email   string
	Phone   string
	Address string
	Message string
}

// LeadService 定义了线索相关的业务操作，同时作为 Kafka 消费者的处理器。
type LeadService interface {
	kafka.LeadProcessor
	Submit(ctx context.Context, in LeadInput, clientIP string) (*model.Lead, error)
	ListForSite(userID, siteID uint, page, size int) ([]model.Lead, int64, error)
}

type leadService struct {
	leadRepo    repository.LeadRepository
	siteRepo    repository.SiteRepository
	siteService SiteService
	producer    kafka.LeadProducer
}

// NewLeadService 创建一个新的 LeadService 实例。producer 为 nil 时不发布事件。
func NewLeadService(leadRepo repository.LeadRepository, siteRepo repository.SiteRepository, siteService SiteService, producer kafka.LeadProducer) LeadService {
	return &leadService{
		leadRepo:    leadRepo,
		siteRepo:    siteRepo,
		siteService: siteService,
		producer:    producer,
	}
}

// Submit 校验并保存线索，然后发布 LeadSubmitted 事件。事件发布失败只记录日志，线索仍然保存成功。
func (s *leadService) Submit(ctx context.Context, in LeadInput, clientIP string) (*model.Lead, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Email == "" && in.Phone == "" {
		return nil, ErrInvalidLead
	}

	site, err := s.siteRepo.FindByID(in.SiteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, err
	}

	lead := &model.Lead{
		PublicID: uuid.NewString(),
		SiteID:   site.ID,
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		Address:  strings.TrimSpace(in.Address),
		Message:  strings.TrimSpace(in.Message),
		ClientIP: clientIP,
		Status:   model.LeadStatusNew,
	}
	if err := s.leadRepo.Create(lead); err != nil {
		return nil, err
	}

	if s.producer != nil {
		event := model.LeadSubmittedEvent{
			LeadID:      lead.PublicID,
			SiteID:      site.ID,
			OwnerUserID: site.UserID,
			Name:        lead.Name,
			Phone:       lead.Phone,
			Email:       lead.Email,
			SubmittedAt: model.LocalTime(time.Now()),
		}
		if err := s.producer.ProduceLead(ctx, event); err != nil {
			log.Errorf("发布线索事件失败: lead=%s, error: %v", lead.PublicID, err)
		}
	}
	return lead, nil
}

// ProcessLead 处理 Kafka 中的线索事件：通知站点所有者并将线索标记为已通知。
func (s *leadService) ProcessLead(ctx context.Context, event model.LeadSubmittedEvent) error {
	lead, err := s.leadRepo.FindByPublicID(event.LeadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("线索不存在，忽略事件: lead=%s", event.LeadID)
			return nil
		}
		return fmt.Errorf("failed to load lead %s: %w", event.LeadID, err)
	}
	if lead.Status == model.LeadStatusNotified {
		return nil
	}

	log.Infow("新线索通知",
		"owner", event.OwnerUserID,
		"site", event.SiteID,
		"lead", event.LeadID,
		"name", event.Name,
		"phone", event.Phone,
		"email", event.Email,
		"submittedAt", event.SubmittedAt.String(),
	)
	return s.leadRepo.UpdateStatus(event.LeadID, model.LeadStatusNotified)
}

// ListForSite 分页列出站点的线索，仅站点所有者可见。
func (s *leadService) ListForSite(userID, siteID uint, page, size int) ([]model.Lead, int64, error) {
	if _, err := s.siteService.Get(userID, siteID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return s.leadRepo.FindBySiteID(siteID, (page-1)*size, size)
}
