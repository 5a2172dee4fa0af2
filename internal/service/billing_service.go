package service

import (
	"context"
	"fmt"
	"roofsite-go/internal/repository"
	"roofsite-go/pkg/billing"
	"roofsite-go/pkg/log"
)

// BillingService 定义了订阅计费相关的业务操作。
type BillingService interface {
	PortalURL(ctx context.Context, userID uint) (string, error)
}

type billingService struct {
	userRepo repository.UserRepository
	client   billing.Client
}

// NewBillingService 创建一个新的 BillingService 实例。
func NewBillingService(userRepo repository.UserRepository, client billing.Client) BillingService {
	return &billingService{userRepo: userRepo, client: client}
}

// PortalURL 为用户创建客户门户会话。用户还没有关联支付客户时先在支付服务创建并保存。
func (s *billingService) PortalURL(ctx context.Context, userID uint) (string, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return "", err
	}
	if user.BillingCustomerID == "" {
		customerID, err := s.client.CreateCustomer(ctx, user.Username, user.ID)
		if err != nil {
			return "", err
		}
		user.BillingCustomerID = customerID
		if err := s.userRepo.Update(user); err != nil {
			return "", fmt.Errorf("failed to save billing customer: %w", err)
		}
		log.Infof("用户 %d 已关联支付客户 %s", user.ID, customerID)
	}
	return s.client.CreatePortalSession(ctx, user.BillingCustomerID)
}
