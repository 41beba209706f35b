package blockstore

import (
	syslog "github.com/RackSec/srslog"
	"github.com/sirupsen/logrus"
)

// SyslogHook is a logrus hook that forwards log entries to syslog.
type SyslogHook struct {
	writer *syslog.Writer
	levels []logrus.Level
}

var _ logrus.Hook = &SyslogHook{}

type SyslogOptions struct {
	// "udp", "tcp", "unix". Defaults to the local syslog server if blank.
	Network string

	// Remote address, defaults to local syslog server
	Address string

	// Syslog tag
	Tag string

	// Lowest level that is forwarded. Defaults to info.
	Level logrus.Level
}

// NewSyslogHook connects to syslog and returns a hook ready to be added to a
// logrus logger.
func NewSyslogHook(opt SyslogOptions) (*SyslogHook, error) {
	if opt.Level == logrus.PanicLevel {
		opt.Level = logrus.InfoLevel
	}
	writer, err := syslog.Dial(opt.Network, opt.Address, syslog.LOG_INFO|syslog.LOG_DAEMON, opt.Tag)
	if err != nil {
		return nil, err
	}
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= opt.Level {
			levels = append(levels, l)
		}
	}
	return &SyslogHook{writer: writer, levels: levels}, nil
}

func (h *SyslogHook) Levels() []logrus.Level {
	return h.levels
}

// Fire sends the formatted entry with a syslog severity matching its level.
func (h *SyslogHook) Fire(e *logrus.Entry) error {
	line, err := e.String()
	if err != nil {
		return err
	}
	switch e.Level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return h.writer.Crit(line)
	case logrus.ErrorLevel:
		return h.writer.Err(line)
	case logrus.WarnLevel:
		return h.writer.Warning(line)
	case logrus.InfoLevel:
		return h.writer.Info(line)
	default:
		return h.writer.Debug(line)
	}
}
