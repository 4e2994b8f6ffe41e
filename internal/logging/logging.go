// Package logging routes the go-logs loggers of a command to syslog.
package logging

import (
	"log"
	"log/syslog"

	"github.com/dumacp/go-logs/pkg/logs"
)

func newLog(logger *logs.Logger, tag string, flags int, priority syslog.Priority) error {
	logg, err := syslog.NewLogger(priority|syslog.LOG_DAEMON, flags)
	if err != nil {
		return err
	}
	logg.SetPrefix(tag)
	logger.SetLogError(logg)
	return nil
}

//Init sends every level to syslog unless logStd is set, and disables the
//build level unless debug is set.
func Init(debug, logStd bool) {
	defer func() {
		if !debug {
			logs.LogBuild.Disable()
		}
	}()
	if logStd {
		return
	}
	for _, l := range []struct {
		logger   *logs.Logger
		tag      string
		priority syslog.Priority
	}{
		{logs.LogInfo, "[ info ] ", syslog.LOG_INFO},
		{logs.LogWarn, "[ warn ] ", syslog.LOG_WARNING},
		{logs.LogError, "[ error ] ", syslog.LOG_ERR},
		{logs.LogBuild, "[ build ] ", syslog.LOG_DEBUG},
	} {
		if err := newLog(l.logger, l.tag, log.LstdFlags, l.priority); err != nil {
			logs.LogWarn.Printf("syslog unavailable, logging to stderr: %s", err)
			return
		}
	}
}
