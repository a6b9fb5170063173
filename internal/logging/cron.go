package logging

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// cronLogger adapts Logger to cron.Logger. Cron's own info chatter
// (schedule, wake, run) is demoted to debug.
type cronLogger struct {
	logger *Logger
}

// CronLogger returns a cron.Logger writing through l
func CronLogger(l *Logger) cron.Logger {
	return cronLogger{logger: l.WithField("component", "cron")}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if !c.logger.Enabled(LevelDebug) {
		return
	}
	c.logger.WithFields(pairs(keysAndValues)).Debug(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.WithFields(pairs(keysAndValues)).WithError(err).Error(msg)
}

func pairs(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
