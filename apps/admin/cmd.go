package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable

	errHelp = errors.New("help provided")
)

// feeReminderFunc runs the overdue fee reminders once.
type feeReminderFunc func(ctx context.Context, asOf core.Date) (int, error)

type commandLine struct {
	db         *sql.DB
	usrRepo    user.Repository
	remindFees feeReminderFunc
	out        func(format string, args ...interface{})
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	if cli.out != nil {
		cli.out(format, args...)
		return
	}
	fmt.Printf(format, args...)
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  adduser -email EMAIL [-name NAME] [-role ROLE] - create or update a user; the password is prompted\n")
	cli.printf("  resetpassword -email EMAIL - reset user's password; the password is prompted\n")
	cli.printf("  migrate COMMAND [ARGS] - run a migration command (up, down, status, version, redo, reset, up-to, down-to)\n")
	cli.printf("  remindfees [-date YYYY-MM-DD] - notify the guardians of overdue fees\n")
}

func (cli *commandLine) promptPassword(usage func()) (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name. Defaults to the email.")
	addUserRole := addUserCmd.String("role", string(user.RoleSuperAdmin), "The user's role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	remindFeesCmd := flag.NewFlagSet("remindfees", flag.ContinueOnError)
	remindFeesDate := remindFeesCmd.String("date", "", "Remind fees overdue as of this date. Defaults to today.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		role := user.Role(core.CleanString(*addUserRole, true /* lower */))
		if !role.IsValid() {
			return fmt.Errorf("%q: no such role", *addUserRole)
		}
		pwd, err := cli.promptPassword(addUserCmd.Usage)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserEmail, pwd, role)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "remindfees":
		if err := remindFeesCmd.Parse(args[2:]); err != nil {
			return err
		}
		asOf := core.Today()
		if *remindFeesDate != "" {
			var err error
			if asOf, err = core.ParseDate(*remindFeesDate); err != nil {
				return err
			}
		}
		return cli.runFeeReminders(asOf)

	default:
		cli.printUsage()
		return errHelp
	}
}
