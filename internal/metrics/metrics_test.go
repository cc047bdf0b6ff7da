package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_RegistersMetrics はコレクターが正常に生成・登録されることを検証する。
func TestNewCollector_RegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	if c == nil {
		t.Fatal("expected non-nil collector")
	}

	// 二重登録はpanicする
	defer func() {
		if r := recover(); r == nil {
			t.Error("duplicate registration should panic")
		}
	}()
	NewCollector(reg)
}

// TestCollector_RecordAndGather は記録したメトリクスが収集結果に現れることを検証する。
func TestCollector_RecordAndGather(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMessageSent("demo")
	c.RecordMessageSent("persisted")
	c.RecordSendFailure("validation")
	c.RecordAttachmentUploaded(1024)
	c.RecordAttachmentFailure()
	c.RecordPollRefresh()
	c.RecordStreamOpened()
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)
	c.RecordSendLatency(120 * time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error = %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, want := range []string{
		"chatweb_messages_sent_total",
		"chatweb_send_fail_total",
		"chatweb_attachment_upload_bytes_total",
		"chatweb_attachment_upload_fail_total",
		"chatweb_poll_refresh_total",
		"chatweb_streams_active",
		"chatweb_http_status_total",
		"chatweb_send_latency_seconds",
	} {
		if !names[want] {
			t.Errorf("metric %q not gathered", want)
		}
	}
}

// TestCollector_StreamGauge はストリームゲージの増減を検証する。
func TestCollector_StreamGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStreamOpened()
	c.RecordStreamOpened()
	c.RecordStreamClosed()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == "chatweb_streams_active" {
			if got := f.GetMetric()[0].GetGauge().GetValue(); got != 1 {
				t.Errorf("streams_active = %v, want 1", got)
			}
			return
		}
	}
	t.Fatal("chatweb_streams_active not found")
}

// TestSetupMetricsRoute_ServesMetrics は/metricsパスでメトリクスが返ることを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordMessageSent("demo")

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body error = %v", err)
	}
	if !strings.Contains(string(body), "chatweb_messages_sent_total") {
		t.Error("response should contain chatweb_messages_sent_total")
	}
}
