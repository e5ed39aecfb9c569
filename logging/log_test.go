package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestCustomOutputForApplicationLog(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{ApplicationLogOutput: &buf})
	msg := "Hello, world!"
	log.Infof("%s", msg)
	if !strings.Contains(buf.String(), msg) {
		t.Error("failed to use custom output")
	}
}

func TestCustomPrefixForApplicationLog(t *testing.T) {
	var buf bytes.Buffer
	prefix := "[TEST_PREFIX]"
	Init(Options{
		ApplicationLogOutput: &buf,
		ApplicationLogPrefix: prefix})
	log.Infof("Hello, world!")
	got := buf.String()
	if !strings.HasPrefix(got, "[TEST_PREFIX]") || !strings.Contains(got, "Hello, world!") {
		t.Error("failed to use custom prefix")
	}
}

func TestApplicationLogLevel(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	var buf bytes.Buffer
	Init(Options{
		ApplicationLogOutput: &buf,
		ApplicationLogLevel:  log.WarnLevel})
	log.Infof("quiet")
	log.Warnf("loud")
	got := buf.String()
	if strings.Contains(got, "quiet") || !strings.Contains(got, "loud") {
		t.Errorf("failed to apply the log level, got %q", got)
	}
}

func TestJSONApplicationLog(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{
		ApplicationLogOutput:      &buf,
		ApplicationLogJSONEnabled: true})
	log.Infof("Hello, world!")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse the log entry: %v", err)
	}

	if entry["msg"] != "Hello, world!" {
		t.Errorf("unexpected message: %v", entry["msg"])
	}
}

func TestCustomOutputForAccessLog(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{AccessLogOutput: &buf})
	LogAccess(&AccessEntry{StatusCode: http.StatusTeapot})
	if !strings.Contains(buf.String(), strconv.Itoa(http.StatusTeapot)) {
		t.Error("failed to use custom access log output")
	}
}

func TestDisabledAccessLog(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{AccessLogOutput: &buf, AccessLogDisabled: true})
	LogAccess(&AccessEntry{StatusCode: http.StatusTeapot})
	if buf.Len() != 0 {
		t.Error("failed to disable the access log")
	}
}
