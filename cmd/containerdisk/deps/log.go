package deps

import (
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"containerdisk.run/cmd/containerdisk/rootcmd"
)

func ProvideLogFactory(streams rootcmd.IOStreams, opts *rootcmd.GlobalOptions) LogFactory {
	return &ZapLogFactory{
		out:  streams.ErrOut,
		opts: opts,
	}
}

type LogFactory interface {
	Logger() logr.Logger
}

// ZapLogFactory creates development loggers once flags are parsed.
type ZapLogFactory struct {
	out  io.Writer
	opts *rootcmd.GlobalOptions
}

func (f *ZapLogFactory) Logger() logr.Logger {
	// logr verbosity V(n) maps to zap level -n.
	level := zap.NewAtomicLevelAt(zapcore.Level(-f.opts.Verbosity))
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(f.out),
		level,
	)

	return zapr.NewLogger(zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel)))
}
