package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type LoggerTest struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func redirect(buf *bytes.Buffer, format, level string) {
	defaultLoggerFactory = &loggerFactory{format: format}
	defaultLogger = slog.New(defaultLoggerFactory.createJSONOrTextHandler(buf, programLevel, ""))
	setLevel(level)
}

func (t *LoggerTest) TestErrorLevelSuppressesInfo() {
	var buf bytes.Buffer
	redirect(&buf, FormatText, "error")

	Infof("should not appear")
	t.Require().Empty(buf.String())

	Errorf("boom")
	t.Require().Regexp(regexp.MustCompile("severity=ERROR"), buf.String())
}

func (t *LoggerTest) TestJSONFormat() {
	var buf bytes.Buffer
	redirect(&buf, FormatJSON, "debug")

	Debugf("hello %s", "world")
	assert.Contains(t.T(), buf.String(), `"severity":"DEBUG"`)
	assert.Contains(t.T(), buf.String(), "hello world")
}

func (t *LoggerTest) TestTraceBelowDebugIsSuppressedAtDebugLevel() {
	var buf bytes.Buffer
	redirect(&buf, FormatText, "debug")

	Tracef("should not appear")
	assert.Empty(t.T(), buf.String())
}

func (t *LoggerTest) TestNamedAddsComponentAttr() {
	var buf bytes.Buffer
	redirect(&buf, FormatJSON, "info")

	Named("store").Info("ready")
	assert.Contains(t.T(), buf.String(), `"component":"store"`)
}
