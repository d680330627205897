// Package credit 提供信用点估价与账务能力
package credit

import (
	"context"
	"sync"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/config"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/repository"
	apperrors "github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/errors"
)

// ModelCatalog 模型能力与计价目录。
// 内存快照 + 带外刷新：请求路径只读快照，Refresh 从仓储重载。
type ModelCatalog struct {
	repo repository.ModelProfileRepository

	mu       sync.RWMutex
	profiles map[string]*entity.ModelProfile
}

// NewModelCatalog 创建模型目录
func NewModelCatalog(repo repository.ModelProfileRepository) *ModelCatalog {
	return &ModelCatalog{
		repo:     repo,
		profiles: make(map[string]*entity.ModelProfile),
	}
}

// Seed 用配置中的提供商档案初始化目录并落库
func (c *ModelCatalog) Seed(ctx context.Context, llm *config.LLMConfig) error {
	for name, p := range llm.Providers {
		profile := &entity.ModelProfile{
			Provider:           name,
			ModelName:          p.Model,
			ContextWindow:      p.ContextWindow,
			CostPerInputToken:  p.CostPerInputToken,
			CostPerOutputToken: p.CostPerOutputToken,
			SupportsStreaming:  p.SupportsStreaming,
			Active:             true,
		}
		if c.repo != nil {
			if err := c.repo.Upsert(ctx, profile); err != nil {
				return err
			}
		}
		c.mu.Lock()
		c.profiles[profile.Key()] = profile
		c.mu.Unlock()
	}
	return nil
}

// Refresh 从仓储重载目录快照
func (c *ModelCatalog) Refresh(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}
	profiles, err := c.repo.List(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]*entity.ModelProfile, len(profiles))
	for _, p := range profiles {
		next[p.Key()] = p
	}
	c.mu.Lock()
	c.profiles = next
	c.mu.Unlock()
	return nil
}

// Lookup 按 provider/model 查找档案；不存在返回 ErrModelNotFound
func (c *ModelCatalog) Lookup(provider, modelName string) (*entity.ModelProfile, error) {
	c.mu.RLock()
	p, ok := c.profiles[provider+"/"+modelName]
	c.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrModelNotFound
	}
	return p, nil
}

// LookupActive 查找档案并要求其处于激活状态
func (c *ModelCatalog) LookupActive(provider, modelName string) (*entity.ModelProfile, error) {
	p, err := c.Lookup(provider, modelName)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, apperrors.ErrModelInactive
	}
	return p, nil
}

// List 返回目录中全部档案
func (c *ModelCatalog) List() []*entity.ModelProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*entity.ModelProfile, 0, len(c.profiles))
	for _, p := range c.profiles {
		out = append(out, p)
	}
	return out
}

// Put 直接放入一条档案（测试与带外刷新用）
func (c *ModelCatalog) Put(p *entity.ModelProfile) {
	c.mu.Lock()
	c.profiles[p.Key()] = p
	c.mu.Unlock()
}
