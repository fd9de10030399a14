package logsvc

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/trezcool/roster/core"
)

type Config struct {
	Level  string // debug, info, warn, error; info when unknown
	Pretty bool   // console output; forced on when Output is a terminal
	Output io.Writer
}

// ZeroLogger writes structured logs with zerolog.
type ZeroLogger struct {
	zl zerolog.Logger
}

var _ core.Logger = (*ZeroLogger)(nil)

func NewZeroLogger(conf Config) *ZeroLogger {
	if conf.Output == nil {
		conf.Output = os.Stdout
	}
	level, err := zerolog.ParseLevel(conf.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	writer := conf.Output
	tty := isTerminal(conf.Output)
	if conf.Pretty || tty {
		writer = zerolog.ConsoleWriter{Out: conf.Output, TimeFormat: time.RFC3339, NoColor: !tty}
	}
	zl := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return &ZeroLogger{zl: zl}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// fields adds key/value args to the event. A trailing key without a value is logged under "extra".
func fields(ev *zerolog.Event, args []interface{}) *zerolog.Event {
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return ev.Interface("extra", args[i])
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		switch v := args[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case string:
			ev = ev.Str(key, v)
		case int:
			ev = ev.Int(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	return ev
}

func (l *ZeroLogger) Debug(msg string, args ...interface{}) {
	fields(l.zl.Debug(), args).Msg(msg)
}

func (l *ZeroLogger) Info(msg string, args ...interface{}) {
	fields(l.zl.Info(), args).Msg(msg)
}

func (l *ZeroLogger) Warn(msg string, args ...interface{}) {
	fields(l.zl.Warn(), args).Msg(msg)
}

func (l *ZeroLogger) Error(msg string, args ...interface{}) {
	fields(l.zl.Error(), args).Msg(msg)
}

// Fatal logs then exits with status 1.
func (l *ZeroLogger) Fatal(msg string, args ...interface{}) {
	fields(l.zl.Fatal(), args).Msg(msg)
}
