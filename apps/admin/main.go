package main

import (
	"context"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	dig_container "github.com/trezcool/campus/apps/api/di/dig"
	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/services/jobs"
	logsvc "github.com/trezcool/campus/services/logger"
	"github.com/trezcool/campus/storage/database"
	sqlxrepos "github.com/trezcool/campus/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger = logsvc.NewRollbarLogger(stdLogger, conf)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		db:         db.DB,
		usrRepo:    sqlxrepos.NewUserRepository(db),
		remindFees: containerFeeReminder,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin: "+os.Args[1], err)
		}
		os.Exit(1)
	}
}

// containerFeeReminder builds the fee reminder with its dependencies and runs it.
func containerFeeReminder(ctx context.Context, asOf core.Date) (int, error) {
	var n int
	err := dig_container.New().Invoke(func(conf *core.Config, jobLogger core.Logger, db *sqlx.DB, reminder *jobs.FeeReminder) error {
		defer func() { _ = db.Close() }()
		core.ParseEmailTemplates(conf, jobLogger)

		var err error
		n, err = reminder.Run(ctx, asOf)
		return err
	})
	return n, err
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
