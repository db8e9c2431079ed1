// internal/services/provider_pool.go
// Provider 輪替池 - 依設定順序選擇目前使用的發送服務

package services

import (
	"strings"

	"bulk-mailer/internal/config"
)

// ProviderPool Provider 輪替池
// 只存在於單次執行中，每次執行都從 index 0 開始
type ProviderPool struct {
	providers []Provider
	exhausted []bool
	active    int
}

// NewProviderPool 建立輪替池
func NewProviderPool(providers []Provider) (*ProviderPool, error) {
	if len(providers) == 0 {
		return nil, config.ErrNoProviders
	}
	return &ProviderPool{
		providers: providers,
		exhausted: make([]bool, len(providers)),
	}, nil
}

// Active 回傳目前使用的 provider
func (p *ProviderPool) Active() Provider {
	return p.providers[p.active]
}

// ExhaustActive 將目前 provider 標記為本次執行不可用，並切換到下一個可用的 provider
// 依原始順序往後尋找 (可繞回開頭)，全部停用時回傳 false
func (p *ProviderPool) ExhaustActive() bool {
	p.exhausted[p.active] = true

	for step := 1; step < len(p.providers); step++ {
		next := (p.active + step) % len(p.providers)
		if !p.exhausted[next] {
			p.active = next
			return true
		}
	}
	return false
}

// ExhaustedNames 回傳已停用的 provider 名稱
func (p *ProviderPool) ExhaustedNames() []string {
	names := make([]string, 0, len(p.providers))
	for i, provider := range p.providers {
		if p.exhausted[i] {
			names = append(names, provider.Name())
		}
	}
	return names
}

// Names 回傳所有 provider 名稱 (依輪替順序)
func (p *ProviderPool) Names() []string {
	names := make([]string, len(p.providers))
	for i, provider := range p.providers {
		names[i] = provider.Name()
	}
	return names
}

// String 用於 logging
func (p *ProviderPool) String() string {
	return strings.Join(p.Names(), ",")
}
