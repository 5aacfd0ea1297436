package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

const remindFeesTimeout = 10 * time.Minute

func (cli *commandLine) runFeeReminders(asOf core.Date) error {
	ctx, cancel := context.WithTimeout(context.Background(), remindFeesTimeout)
	defer cancel()

	n, err := cli.remindFees(ctx, asOf)
	if err != nil {
		return errors.Wrap(err, "reminding fees")
	}
	cli.printf("%d overdue fee(s) reminded as of %s\n", n, asOf)
	return nil
}
