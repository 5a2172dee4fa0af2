// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"roofsite-go/internal/config"
	"roofsite-go/internal/model"
	"roofsite-go/pkg/log"
	"time"

	"github.com/segmentio/kafka-go"
)

// maxAttempts 是同一条消息的最大处理次数。
const maxAttempts = 3

// LeadProcessor 处理线索提交事件，使消费者与具体的通知实现解耦。
type LeadProcessor interface {
	ProcessLead(ctx context.Context, event model.LeadSubmittedEvent) error
}

// LeadProducer 发布线索提交事件。
type LeadProducer interface {
	ProduceLead(ctx context.Context, event model.LeadSubmittedEvent) error
}

type producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) LeadProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.LeadTopic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &producer{writer: w}
}

// ProduceLead 发送一个线索事件到 Kafka，以站点 ID 作为 key 保证同一站点有序。
func (p *producer) ProduceLead(ctx context.Context, event model.LeadSubmittedEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal lead event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("site-%d", event.SiteID)),
		Value: value,
	})
}

// StartConsumer 启动一个 Kafka 消费者来处理线索事件，ctx 取消时退出。
// FetchMessage 不会重新投递未提交的消息，因此失败的事件在本进程内重试，结束后再提交 offset。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor LeadProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.LeadTopic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.LeadTopic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}

		if !handleLead(ctx, m.Value, processor, retryBackoff) {
			// 停机中断了重试，不提交，重启或再均衡后重新投递
			return
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

// retryBackoff 返回第 attempt 次失败后的等待时间。
func retryBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * time.Second
}

// handleLead 解析并处理一条线索事件，失败时最多尝试 maxAttempts 次。
// 返回 false 表示 ctx 在处理完成前被取消，消息不应提交。
func handleLead(ctx context.Context, value []byte, processor LeadProcessor, backoff func(int) time.Duration) bool {
	var event model.LeadSubmittedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return true
	}

	for attempt := 1; ; attempt++ {
		err := processor.ProcessLead(ctx, event)
		if err == nil {
			log.Infof("线索事件处理成功: lead=%s", event.LeadID)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		log.Errorf("处理线索事件失败(第 %d 次): lead=%s, error: %v", attempt, event.LeadID, err)
		if attempt >= maxAttempts {
			log.Errorf("线索事件多次失败(>=%d)，提交 offset 放弃: lead=%s", maxAttempts, event.LeadID)
			return true
		}

		timer := time.NewTimer(backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}
