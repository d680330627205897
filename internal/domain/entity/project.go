// Package entity 定义领域实体
package entity

import "time"

// Project 写作项目。由外部子系统维护，本服务只读（存在性校验、余额归属）。
type Project struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}
