// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やミドルウェアから利用する。
type MetricsCollector interface {
	RecordMessageSent(source string)
	RecordSendFailure(reason string)
	RecordAttachmentUploaded(sizeBytes int64)
	RecordAttachmentFailure()
	RecordPollRefresh()
	RecordStreamOpened()
	RecordStreamClosed()
	RecordHTTPStatus(statusCode int)
	RecordSendLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	messagesSent    *prometheus.CounterVec
	sendFail        *prometheus.CounterVec
	attachmentBytes prometheus.Counter
	attachmentFail  prometheus.Counter
	pollRefresh     prometheus.Counter
	streamsActive   prometheus.Gauge
	httpStatus      *prometheus.CounterVec
	sendLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatweb_messages_sent_total",
			Help: "送信されたメッセージの合計数（チャット種別ラベル付き）",
		}, []string{"source"}),
		sendFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatweb_send_fail_total",
			Help: "メッセージ送信失敗の合計数（原因ラベル付き）",
		}, []string{"reason"}),
		attachmentBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatweb_attachment_upload_bytes_total",
			Help: "アップロードされた添付ファイルの合計バイト数",
		}),
		attachmentFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatweb_attachment_upload_fail_total",
			Help: "添付ファイルアップロード失敗の合計数",
		}),
		pollRefresh: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatweb_poll_refresh_total",
			Help: "ポーリングによる履歴再取得の合計数",
		}),
		streamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatweb_streams_active",
			Help: "アクティブなメッセージストリーム数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatweb_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatweb_send_latency_seconds",
			Help:    "メッセージ送信のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.messagesSent,
		c.sendFail,
		c.attachmentBytes,
		c.attachmentFail,
		c.pollRefresh,
		c.streamsActive,
		c.httpStatus,
		c.sendLatency,
	)

	return c
}

// RecordMessageSent はメッセージ送信成功を記録する。
// sourceは"demo"または"persisted"。
func (c *Collector) RecordMessageSent(source string) {
	c.messagesSent.WithLabelValues(source).Inc()
}

// RecordSendFailure はメッセージ送信失敗を記録する。
func (c *Collector) RecordSendFailure(reason string) {
	c.sendFail.WithLabelValues(reason).Inc()
}

// RecordAttachmentUploaded は添付ファイルアップロード成功を記録する。
func (c *Collector) RecordAttachmentUploaded(sizeBytes int64) {
	c.attachmentBytes.Add(float64(sizeBytes))
}

// RecordAttachmentFailure は添付ファイルアップロード失敗を記録する。
func (c *Collector) RecordAttachmentFailure() {
	c.attachmentFail.Inc()
}

// RecordPollRefresh はポーリングによる履歴再取得を記録する。
func (c *Collector) RecordPollRefresh() {
	c.pollRefresh.Inc()
}

// RecordStreamOpened はストリーム確立を記録する。
func (c *Collector) RecordStreamOpened() {
	c.streamsActive.Inc()
}

// RecordStreamClosed はストリーム解除を記録する。
func (c *Collector) RecordStreamClosed() {
	c.streamsActive.Dec()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSendLatency はメッセージ送信のレイテンシを記録する。
func (c *Collector) RecordSendLatency(duration time.Duration) {
	c.sendLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
