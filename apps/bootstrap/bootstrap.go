// Package bootstrap builds the roster service and its collaborators from a core.Config.
package bootstrap

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/roster"
	emailsvc "github.com/trezcool/roster/services/email"
	logsvc "github.com/trezcool/roster/services/logger"
	"github.com/trezcool/roster/storage/database"
	inmemdb "github.com/trezcool/roster/storage/database/inmem"
	"github.com/trezcool/roster/storage/database/sqldb"
	"github.com/trezcool/roster/storage/file/jsonfile"
)

// App is everything an entry point needs.
type App struct {
	Conf   *core.Config
	Logger core.Logger
	Roster *roster.Service
	Mailer core.EmailService

	closers []func() error
	flush   func() // sends queued error reports; runs last
}

// New wires the app. out receives logs and console e-mails; nil means stdout.
func New(ctx context.Context, conf *core.Config, out io.Writer) (*App, error) {
	app := &App{Conf: conf}
	app.Logger = NewLogger(conf, out)
	if rl, ok := app.Logger.(*logsvc.RollbarLogger); ok {
		app.flush = rl.Close
	}
	app.Mailer = NewMailer(conf, app.Logger, out)

	svc, closer, err := OpenRoster(ctx, conf, app.Logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Roster = svc
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	return app, nil
}

// Close releases the storage, logging failures, then flushes the error reporter.
// It returns the first storage error.
func (app *App) Close() error {
	var firstErr error
	for _, closer := range app.closers {
		if err := closer(); err != nil {
			app.Logger.Error("closing storage", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if app.flush != nil {
		app.flush()
	}
	return firstErr
}

func NewLogger(conf *core.Config, out io.Writer) core.Logger {
	var l core.Logger = logsvc.NewZeroLogger(logsvc.Config{Level: conf.Log.Level, Pretty: conf.Log.Pretty, Output: out})
	if conf.RollbarToken != "" {
		l = logsvc.NewRollbarLogger(l, conf)
	}
	return l
}

// NewMailer sends through SendGrid when a key is configured outside debug mode,
// and prints to out otherwise.
func NewMailer(conf *core.Config, logger core.Logger, out io.Writer) core.EmailService {
	if conf.Mail.SendgridKey != "" && !conf.Debug {
		return emailsvc.NewSendgridService(conf, logger)
	}
	return emailsvc.NewConsoleService(conf, out)
}

// OpenRoster builds the Roster Store for the configured storage driver.
// The returned closer, when not nil, must be called on shutdown.
func OpenRoster(ctx context.Context, conf *core.Config, logger core.Logger) (*roster.Service, func() error, error) {
	switch conf.Storage.Driver {
	case core.StorageMemory:
		db, err := inmemdb.Open()
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening in-memory database")
		}
		return roster.NewService(inmemdb.NewRosterRepository(db), roster.WithLogger(logger)), nil, nil

	case core.StorageJSONFile:
		db, err := inmemdb.Open()
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening in-memory database")
		}
		file := jsonfile.New(conf.Storage.Path)
		svc := roster.NewService(
			inmemdb.NewRosterRepository(db),
			roster.WithLogger(logger),
			roster.WithAutoSave(file),
		)
		if err = svc.LoadFrom(ctx, file); err != nil {
			return nil, nil, errors.Wrapf(err, "loading %s", conf.Storage.Path)
		}
		logger.Debug("roster loaded", "path", conf.Storage.Path)
		return svc, nil, nil

	case core.StorageSQLite, core.StoragePostgres:
		db, err := database.Open(ctx, conf.Storage)
		if err != nil {
			return nil, nil, err
		}
		svc := roster.NewService(sqldb.NewRosterRepository(db), roster.WithLogger(logger))
		return svc, db.Close, nil
	}
	return nil, nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
}
