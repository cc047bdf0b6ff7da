package stream

import (
	"sync"
)

// Registry はアクティブなControllerをチャットIDで管理する。
// アップロード中のポーリング一時停止を、送信パイプラインから
// 該当チャットのControllerへ届けるために使う。
type Registry struct {
	mu          sync.Mutex
	controllers map[string]map[*Controller]struct{}
}

// NewRegistry はRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{
		controllers: make(map[string]map[*Controller]struct{}),
	}
}

// Register はControllerを登録し、解除関数を返す。
// 解除関数は複数回呼んでも安全。
func (r *Registry) Register(c *Controller) func() {
	r.mu.Lock()
	set, ok := r.controllers[c.ChatID()]
	if !ok {
		set = make(map[*Controller]struct{})
		r.controllers[c.ChatID()] = set
	}
	set[c] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if set, ok := r.controllers[c.ChatID()]; ok {
				delete(set, c)
				if len(set) == 0 {
					delete(r.controllers, c.ChatID())
				}
			}
		})
	}
}

// PausePolling は指定チャットの全Controllerのポーリングを一時停止し、
// 再開関数を返す。登録がない場合でも再開関数は安全に呼べる。
func (r *Registry) PausePolling(chatID string) func() {
	r.mu.Lock()
	paused := make([]*Controller, 0, len(r.controllers[chatID]))
	for c := range r.controllers[chatID] {
		c.PausePolling()
		paused = append(paused, c)
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, c := range paused {
				c.ResumePolling()
			}
		})
	}
}

// ActiveCount は指定チャットに登録されているController数を返す。
func (r *Registry) ActiveCount(chatID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers[chatID])
}
