package logsvc_test

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
	logsvc "github.com/trezcool/campus/services/logger"
)

func newLogger() (*logsvc.RollbarLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logsvc.NewRollbarLogger(log.New(&buf, "", 0), core.NewTestConfig()), &buf
}

func TestRollbarLogger_print(t *testing.T) {
	t.Run("Fields", func(t *testing.T) {
		logger, buf := newLogger()
		logger.Info("jobs: fee reminders sent", map[string]interface{}{"fees": 2, "as_of": "2024-10-01"})
		assert.Equal(t, "[INFO] jobs: fee reminders sent as_of=2024-10-01 fees=2\n", buf.String())
	})

	t.Run("User", func(t *testing.T) {
		logger, buf := newLogger()
		logger.Warn("realtime: queue full, event dropped", user.User{ID: 7, Name: "Ada"})
		assert.Equal(t, "[WARN] realtime: queue full, event dropped user=7\n", buf.String())
	})

	t.Run("Error with stack", func(t *testing.T) {
		logger, buf := newLogger()
		logger.Error("sending mail", errors.New("connection refused"))

		lines := strings.Split(buf.String(), "\n")
		assert.Equal(t, `[ERROR] sending mail err="connection refused"`, lines[0])
		assert.Equal(t, "connection refused", lines[1])
		assert.Contains(t, buf.String(), "TestRollbarLogger_print", "the stack trace is printed")
	})

	t.Run("No stack below error level", func(t *testing.T) {
		logger, buf := newLogger()
		logger.Debug("retrying", errors.New("timeout"))
		assert.Equal(t, "[DEBUG] retrying err=\"timeout\"\n", buf.String())
	})
}
