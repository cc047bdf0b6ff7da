// Package stream は選択中チャットのメッセージ配信制御を提供する。
// 履歴ロード、変更フィード購読、ポーリングフォールバックを1つの
// メッセージIDキーのマップに合流させ、重複追記を排除する。
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ishit08/chat-web/internal/metrics"
	"github.com/ishit08/chat-web/internal/model"
)

// updatesBuffer は新着メッセージ通知チャネルのバッファサイズ。
const updatesBuffer = 64

// refreshTimeout はポーリング1回あたりの取得タイムアウト。
const refreshTimeout = 5 * time.Second

// HistoryLoader はメッセージ履歴の取得インターフェース。
// 永続化チャットではリポジトリ、デモチャットではインメモリストアが実装する。
type HistoryLoader interface {
	ListByChat(ctx context.Context, chatID string) ([]model.Message, error)
}

// AttachmentLoader は添付ファイルメタデータの一括取得インターフェース。
type AttachmentLoader interface {
	ListByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]model.Attachment, error)
}

// Feed は変更フィードの購読インターフェース。
// realtime.Hub（永続化チャット）とdemo.Store（デモチャット）が実装する。
type Feed interface {
	Subscribe(chatID string) (<-chan model.Message, func())
}

// Config はControllerの構築パラメータ。
type Config struct {
	ChatID string

	History HistoryLoader
	// Attachments がnilの場合、添付ファイル解決をスキップする（デモチャット）。
	Attachments AttachmentLoader
	Feed        Feed
	// PollInterval が0以下の場合、ポーリングフォールバックを無効にする（デモチャット）。
	PollInterval time.Duration

	Logger *slog.Logger
	// Collector がnilの場合、メトリクス記録をスキップする。
	Collector metrics.MetricsCollector
}

// Controller は1つのチャット選択に対するライブメッセージ列を管理する。
//
// 状態遷移: Open時に履歴ロード → 変更フィード購読 → ポーリング開始の順で
// 確立し、Closeで購読とポーリングをちょうど1回ずつ解除する。
// ポーリングとプッシュはどちらもIDキーのマップへの冪等なupsertに合流するため、
// 到着順序に関わらず重複表示は発生しない。
type Controller struct {
	cfg Config

	mu   sync.Mutex
	byID map[string]model.Message
	atts map[string][]model.Attachment

	updates    chan model.Message
	cancelFeed func()
	done       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once

	pauseMu   sync.Mutex
	pauseRefs int
}

// Open は指定チャットのストリームを確立する。
// 履歴ロードの失敗はエラーを返す。添付ファイル解決の失敗はログのみで、
// 直前の良好な状態（添付なし）のまま継続する。
func Open(ctx context.Context, cfg Config) (*Controller, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Controller{
		cfg:     cfg,
		byID:    make(map[string]model.Message),
		atts:    make(map[string][]model.Attachment),
		updates: make(chan model.Message, updatesBuffer),
		done:    make(chan struct{}),
	}

	// 1. 履歴ロード（ロード時点で正とする）
	msgs, err := cfg.History.ListByChat(ctx, cfg.ChatID)
	if err != nil {
		return nil, fmt.Errorf("履歴の取得に失敗しました: %w", err)
	}
	for _, m := range msgs {
		c.byID[m.ID] = m
	}

	// 2. 添付ファイルの一括解決
	c.loadAttachments(ctx, msgs)

	// 3. 変更フィード購読
	if cfg.Feed != nil {
		ch, cancel := cfg.Feed.Subscribe(cfg.ChatID)
		c.cancelFeed = cancel
		c.wg.Add(1)
		go c.consumeFeed(ch)
	}

	// 4. ポーリングフォールバック
	if cfg.PollInterval > 0 {
		c.wg.Add(1)
		go c.pollLoop()
	}

	return c, nil
}

// Snapshot は現在のメッセージ列をcreated_at昇順（同時刻はID順）で返す。
func (c *Controller) Snapshot() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]model.Message, 0, len(c.byID))
	for _, m := range c.byID {
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs
}

// Attachments はメッセージIDごとの添付ファイルマップのコピーを返す。
func (c *Controller) Attachments() map[string][]model.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := make(map[string][]model.Attachment, len(c.atts))
	for id, atts := range c.atts {
		copied[id] = atts
	}
	return copied
}

// Updates は新規に観測されたメッセージの通知チャネルを返す。
// Close時にクローズされる。
func (c *Controller) Updates() <-chan model.Message {
	return c.updates
}

// Close は購読とポーリングをちょうど1回ずつ解除する。
// 複数回呼んでも安全で、戻った時点で以降のコールバックは発火しない。
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		if c.cancelFeed != nil {
			c.cancelFeed()
		}
		close(c.done)
		c.wg.Wait()
		close(c.updates)
	})
}

// PausePolling はポーリングを一時停止する（アップロード実行中に使用）。
// ResumePollingと対で参照カウント方式で動作する。
func (c *Controller) PausePolling() {
	c.pauseMu.Lock()
	c.pauseRefs++
	c.pauseMu.Unlock()
}

// ResumePolling はPausePollingの対応する再開操作。
func (c *Controller) ResumePolling() {
	c.pauseMu.Lock()
	if c.pauseRefs > 0 {
		c.pauseRefs--
	}
	c.pauseMu.Unlock()
}

func (c *Controller) pollingPaused() bool {
	c.pauseMu.Lock()
	defer c.pauseMu.Unlock()
	return c.pauseRefs > 0
}

// ChatID はこのストリームが対象とするチャットIDを返す。
func (c *Controller) ChatID() string {
	return c.cfg.ChatID
}

// consumeFeed は変更フィードからの挿入イベントを取り込む。
func (c *Controller) consumeFeed(ch <-chan model.Message) {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			c.apply(m)
		}
	}
}

// pollLoop は定期的に履歴全体を再取得し、取りこぼしを補完する。
func (c *Controller) pollLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.pollingPaused() {
				continue
			}
			c.refresh()
		}
	}
}

// refresh は履歴を再取得してマップへ合流させる。
// 取得失敗はログのみで、直前の良好な状態を維持する。
func (c *Controller) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if c.cfg.Collector != nil {
		c.cfg.Collector.RecordPollRefresh()
	}

	msgs, err := c.cfg.History.ListByChat(ctx, c.cfg.ChatID)
	if err != nil {
		c.cfg.Logger.Error("ポーリング再取得に失敗しました",
			slog.String("chat_id", c.cfg.ChatID),
			slog.String("error", err.Error()),
		)
		return
	}

	var missingAtts []model.Message
	for _, m := range msgs {
		if c.apply(m) && m.AttachmentState == model.AttachmentStateComplete {
			missingAtts = append(missingAtts, m)
		}
	}

	// 新規観測されたメッセージの添付ファイルを解決する
	c.loadAttachments(ctx, missingAtts)
}

// apply はメッセージをIDキーで冪等にupsertする。
// 新規に観測された場合のみtrueを返し、Updatesへ通知する。
func (c *Controller) apply(m model.Message) bool {
	c.mu.Lock()
	_, exists := c.byID[m.ID]
	c.byID[m.ID] = m
	c.mu.Unlock()

	if exists {
		return false
	}

	select {
	case c.updates <- m:
	default:
		// 受信側が追いついていない場合は通知を破棄する。
		// Snapshotには反映済みのため整合性は保たれる。
	}
	return true
}

// loadAttachments は指定メッセージ群の添付ファイルを一括解決する。
func (c *Controller) loadAttachments(ctx context.Context, msgs []model.Message) {
	if c.cfg.Attachments == nil || len(msgs) == 0 {
		return
	}

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}

	atts, err := c.cfg.Attachments.ListByMessageIDs(ctx, ids)
	if err != nil {
		c.cfg.Logger.Error("添付ファイルの取得に失敗しました",
			slog.String("chat_id", c.cfg.ChatID),
			slog.String("error", err.Error()),
		)
		return
	}

	c.mu.Lock()
	for id, list := range atts {
		c.atts[id] = list
	}
	c.mu.Unlock()
}
