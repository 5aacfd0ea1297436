package main

import (
	"context"
	"time"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, email, pwd string, role user.Role) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	if name = core.CleanString(name); name == "" {
		name = email
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	created := err != nil
	if created {
		if !core.IsNotFound(err) {
			return err
		}
		usr = user.User{Email: email, CreatedAt: time.Now().UTC()}
	}

	usr.Name = name
	usr.Role = role
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if created {
		if usr, err = cli.usrRepo.CreateUser(ctx, usr); err != nil {
			return err
		}
		cli.printf("user %d (%s) created\n", usr.ID, usr.Email)
		return nil
	}
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	cli.printf("user %d (%s) updated\n", usr.ID, usr.Email)
	return nil
}
