// Package realtime はメッセージ挿入イベントの購読と配信を提供する。
// PostgreSQLのLISTEN/NOTIFYを変更フィードとして受信し、
// チャットIDごとの購読者へファンアウトする。
package realtime

import (
	"sync"

	"github.com/ishit08/chat-web/internal/model"
)

// subscriberBuffer は購読チャネルのバッファサイズ。
// 受信が追いつかない場合イベントは破棄される（ポーリングが補完する）。
const subscriberBuffer = 16

// Hub はチャットIDごとの購読者を管理し、イベントを配信する。
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan model.Message]struct{}
}

// NewHub はHubを生成する。
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan model.Message]struct{}),
	}
}

// Subscribe は指定チャットの挿入イベント購読を開始する。
// 返されるキャンセル関数は複数回呼んでも安全で、購読解除後は
// チャネルがクローズされる。
func (h *Hub) Subscribe(chatID string) (<-chan model.Message, func()) {
	ch := make(chan model.Message, subscriberBuffer)

	h.mu.Lock()
	if h.subs[chatID] == nil {
		h.subs[chatID] = make(map[chan model.Message]struct{})
	}
	h.subs[chatID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[chatID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, chatID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// Dispatch はメッセージを該当チャットの全購読者へ配信する。
// 購読者のバッファが満杯の場合はそのイベントを破棄する（ノンブロッキング）。
func (h *Hub) Dispatch(msg model.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[msg.ChatID] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// SubscriberCount は指定チャットの購読者数を返す。
func (h *Hub) SubscriberCount(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[chatID])
}
