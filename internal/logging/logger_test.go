package logging

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, cats map[string]bool) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core), cats)
	t.Cleanup(func() { SetLogger(zap.NewNop(), nil) })
	return logs
}

func TestCategoryLoggersAreNamed(t *testing.T) {
	logs := observe(t, nil)

	Convert("processed %d lines", 3)
	StoreDebug("flushed batch of %d", 10)
	Get(CategoryTask).Warn("skipping %s", "sqlite")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].LoggerName != "convert" || entries[0].Message != "processed 3 lines" {
		t.Errorf("unexpected first entry: %+v", entries[0].Entry)
	}
	if entries[1].Level != zapcore.DebugLevel || entries[1].LoggerName != "store" {
		t.Errorf("unexpected second entry: %+v", entries[1].Entry)
	}
	if entries[2].Level != zapcore.WarnLevel {
		t.Errorf("expected warn level, got %v", entries[2].Level)
	}
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	logs := observe(t, map[string]bool{"convert": false, "store": true})

	Convert("hidden")
	Store("visible")
	Source("unlisted categories stay enabled")

	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", logs.Len())
	}
	if logs.FilterLoggerName("convert").Len() != 0 {
		t.Errorf("convert category should be disabled")
	}
}

func TestWithAddsContext(t *testing.T) {
	logs := observe(t, nil)

	Get(CategoryConvert).With("file", "Genes.txt").Info("done")

	entries := logs.FilterField(zap.String("file", "Genes.txt")).All()
	if len(entries) != 1 {
		t.Fatalf("expected context field on entry, got %d entries", len(entries))
	}
}

func TestTimer(t *testing.T) {
	logs := observe(t, nil)

	timer := StartTimer(CategoryStore, "flush")
	time.Sleep(time.Millisecond)
	if d := timer.Stop(); d <= 0 {
		t.Errorf("expected positive duration, got %v", d)
	}
	if logs.FilterMessageSnippet("flush completed in").Len() != 1 {
		t.Errorf("expected timer entry")
	}
}

func TestInitializeWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bioconv.log")
	if err := Initialize(Config{Level: "debug", Format: "json", File: path}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { SetLogger(zap.NewNop(), nil) })

	Boot("hello")
	Sync()

	if !L().Core().Enabled(zapcore.DebugLevel) {
		t.Errorf("expected debug level to be enabled")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
