package contracts

import (
	"context"
	"time"
)

// CompletenessChecker reports reading density for a period
// ⭐ SSOT: 데이터 완전성 검증 인터페이스
type CompletenessChecker interface {
	Check(readings []MeterReading, start, end time.Time) *CompletenessReport
}

// EventDetector classifies anomalies into operational incidents
// ⭐ SSOT: 이상 탐지 인터페이스
type EventDetector interface {
	Detect(projectID string, readings []MeterReading) []OperationalEvent
}

// NotificationPublisher announces committed notifications to subscribers
// ⭐ SSOT: 알림 발행 인터페이스
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, n *Notification) error
}

// Evaluator runs one compliance evaluation
// ⭐ SSOT: 평가 실행 인터페이스
type Evaluator interface {
	EvaluatePeriod(ctx context.Context, contractID string, start, end time.Time) *EvaluationResult
}
