package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/course"
	"github.com/wwu-chemlab/chemlab/core/user"
)

type addUserOpts struct {
	username   string
	email      string
	firstName  string
	lastName   string
	admin      bool
	instructor bool
	wwuid      string
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var opts addUserOpts
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update an active user; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.username == "" || opts.email == "" || (opts.instructor && opts.wwuid == "") {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.addUser(opts, pwd)
		},
	}
	cmd.Flags().StringVar(&opts.username, "username", "", "username")
	cmd.Flags().StringVar(&opts.email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&opts.lastName, "last-name", "", "last name")
	cmd.Flags().BoolVar(&opts.admin, "admin", false, "grant all roles")
	cmd.Flags().BoolVar(&opts.instructor, "instructor", false, "create an instructor profile (requires --wwuid)")
	cmd.Flags().StringVar(&opts.wwuid, "wwuid", "", "WWU ID of the instructor")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(opts addUserOpts, pwd string) error {
	ctx := context.Background()
	uname := core.CleanString(opts.username, true /* lower */)
	email := core.CleanString(opts.email, true /* lower */)
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if errors.Is(err, user.ErrNotFound) {
		usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	}
	exists := err == nil
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return err
		}
		usr = user.User{Roles: []string{}, CreatedAt: now}
	}

	usr.Username = uname
	usr.Email = email
	if opts.firstName != "" {
		usr.FirstName = opts.firstName
	}
	if opts.lastName != "" {
		usr.LastName = opts.lastName
	}
	if opts.admin {
		for _, role := range user.AllRoles {
			usr.AddRole(role)
		}
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}

	if exists {
		if err = cli.usrRepo.CheckUniqueness(ctx, uname, email, []user.User{usr}); err != nil {
			return err
		}
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		usr, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	if err != nil {
		return err
	}
	action := "created"
	if exists {
		action = "updated"
	}
	cli.printf("user %q %s\n", usr.Username, action)

	if opts.instructor {
		return cli.addInstructor(ctx, usr, opts.wwuid)
	}
	return nil
}

func (cli *commandLine) addInstructor(ctx context.Context, usr user.User, wwuid string) error {
	if _, err := cli.crsSvc.GetInstructorByUser(ctx, usr.ID); err == nil {
		return nil
	} else if !errors.Is(err, course.ErrInstructorNotFound) {
		return err
	}

	data := course.InstructorData{User: usr.ID, WWUID: wwuid}
	if err := data.Validate(ctx, cli.validate, cli.crsSvc); err != nil {
		return err
	}
	ins, err := cli.crsSvc.CreateInstructor(ctx, data)
	if err != nil {
		return err
	}
	cli.printf("instructor profile %d created\n", ins.ID)
	return nil
}
