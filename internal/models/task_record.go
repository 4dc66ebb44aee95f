package models

import (
	"time"
)

// TaskStatus 定义了任务的几种可能状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// 任务的触发方式。
const (
	TaskKindScheduled = "scheduled"
	TaskKindManual    = "manual"
)

// TaskRecord 代表一次持久化的流水线运行记录。
// 状态机：pending → completed 或 pending → failed；停留在 pending
// 超过 stall 阈值的任务会被回收器强制置为 failed。
type TaskRecord struct {
	ID          string     `bson:"_id" json:"task_id"`         // 任务唯一ID (UUID string)
	Kind        string     `bson:"kind" json:"kind"`           // 触发方式 (scheduled / manual)
	Status      TaskStatus `bson:"status" json:"status"`       // 任务当前状态
	Description string     `bson:"description" json:"description"` // 任务描述
	Error       string     `bson:"error,omitempty" json:"error,omitempty"` // 任务失败时的错误信息
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`           // 任务创建时间
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"` // 任务结束时间
}
