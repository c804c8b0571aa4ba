package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/sirupsen/logrus"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	path := filepath.Join(t.TempDir(), "modscout.log")
	if err := log.Configure("debug", "text", path, 0); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if got := log.GetLevel().String(); got != "debug" {
		t.Fatalf("level = %s, want debug", got)
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestJSONKeys(t *testing.T) {
	log := Logger()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.WithComponent("matcher").Info("hello")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	for _, key := range []string{"timestamp", "level", "message", "component"} {
		if _, ok := line[key]; !ok {
			t.Errorf("missing key %q in %v", key, line)
		}
	}
}

func TestWarnIsCounted(t *testing.T) {
	log := Logger()
	log.SetOutput(&bytes.Buffer{})
	before := componentStats("counted_component").warns
	log.WithComponent("counted_component").Warn("careful")
	if got := componentStats("counted_component").warns; got != before+1 {
		t.Fatalf("warns = %d, want %d", got, before+1)
	}
}

func TestProviderCounters(t *testing.T) {
	RecordProviderRead("test_provider", 10)
	RecordProviderFailure("test_provider")

	fields := reportFields()
	providers := fields["providers"].(map[string]map[string]int64)
	stats, ok := providers["test_provider"]
	if !ok {
		t.Fatalf("provider missing from report: %v", providers)
	}
	if stats["requests"] < 2 || stats["failures"] < 1 || stats["bytes"] < 10 {
		t.Fatalf("unexpected provider stats: %v", stats)
	}
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []*cloudwatch.PutMetricDataInput
}

func (f *fakePublisher) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestLogMetricPublishesNumericValues(t *testing.T) {
	fake := &fakePublisher{}
	cwMu.Lock()
	prev := cwClient
	cwClient = fake
	cwMu.Unlock()
	defer func() {
		cwMu.Lock()
		cwClient = prev
		cwMu.Unlock()
	}()

	log := Logger()
	log.SetOutput(&bytes.Buffer{})
	log.LogMetric("aggregator", "orderbook_failed", int64(1), "counter", Fields{"mod": "Hornet Strike"})
	log.LogMetric("aggregator", "ignored", "not-a-number", "", nil)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.calls) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fake.calls))
	}
	datum := fake.calls[0].MetricData[0]
	if *datum.MetricName != "orderbook_failed" || *datum.Value != 1 {
		t.Fatalf("unexpected datum: %+v", datum)
	}
	if len(datum.Dimensions) != 2 {
		t.Fatalf("expected component and mod dimensions, got %d", len(datum.Dimensions))
	}
}

type countingHook struct{ fired int }

func (h *countingHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *countingHook) Fire(*logrus.Entry) error {
	h.fired++
	return nil
}

func TestRemoveHook(t *testing.T) {
	log := Logger()
	log.SetOutput(&bytes.Buffer{})
	before := len(log.Hooks[logrus.InfoLevel])

	hook := &countingHook{}
	log.AddHook(hook)
	log.Info("with hook")
	log.RemoveHook(hook)
	log.Info("without hook")

	if hook.fired != 1 {
		t.Fatalf("hook fired %d times, want 1", hook.fired)
	}
	if got := len(log.Hooks[logrus.InfoLevel]); got != before {
		t.Fatalf("hooks after removal = %d, want %d", got, before)
	}
}
