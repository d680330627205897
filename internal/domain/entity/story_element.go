// Package entity 定义领域实体
package entity

import "time"

// ElementKind 故事设定元素类型
type ElementKind string

const (
	ElementKindCharacter     ElementKind = "character"
	ElementKindLocation      ElementKind = "location"
	ElementKindWorldbuilding ElementKind = "worldbuilding"
	ElementKindOutline       ElementKind = "outline"
	ElementKindScene         ElementKind = "scene"
	ElementKindItem          ElementKind = "item"
	ElementKindLore          ElementKind = "lore"
)

// ElementVisibility 元素对上下文选择的可见性
type ElementVisibility string

const (
	// VisibilityAlways 总是纳入候选，排序优先
	VisibilityAlways ElementVisibility = "always"
	// VisibilityRelevant 按相关性评分纳入候选
	VisibilityRelevant ElementVisibility = "relevant"
	// VisibilityNever 不参与上下文选择
	VisibilityNever ElementVisibility = "never"
)

// StoryElement 故事设定元素。由设定集子系统维护，本服务只读。
type StoryElement struct {
	ID         string            `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID  string            `json:"project_id" gorm:"type:uuid;index;not null"`
	Kind       ElementKind       `json:"kind" gorm:"type:varchar(32);not null"`
	Name       string            `json:"name" gorm:"type:varchar(255);not null"`
	Text       string            `json:"text" gorm:"type:text;not null"`
	Visibility ElementVisibility `json:"visibility" gorm:"type:varchar(16);not null;default:'relevant'"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (StoryElement) TableName() string {
	return "story_elements"
}
