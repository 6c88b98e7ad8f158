package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

// TestSetup_WritesJSON はログがJSON形式で出力されることを検証する。
func TestSetup_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Info("scrape started", slog.String("keyword", "t-shirt"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログ出力がJSONではない: %v", err)
	}
	if entry["msg"] != "scrape started" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["keyword"] != "t-shirt" {
		t.Errorf("keyword = %v", entry["keyword"])
	}
}

// TestSetup_DebugSuppressed はInfoレベル設定でDebugが抑制されることを検証する。
func TestSetup_DebugSuppressed(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Debug("should not appear")

	if buf.Len() != 0 {
		t.Errorf("Debugログは出力されないべき: %s", buf.String())
	}
}
