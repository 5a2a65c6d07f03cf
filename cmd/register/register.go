package register

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/classroll/rollcall/internal/app"
	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/datastore"
	"github.com/classroll/rollcall/internal/match"
	"github.com/classroll/rollcall/internal/terminal"
)

// details holds the person fields that can be given as flags. Missing
// fields are asked for at the console.
type details struct {
	id          string
	firstName   string
	lastName    string
	gender      string
	dateOfBirth string
	email       string
	phone       string
}

// Command creates the register command with teacher and student subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a teacher or student with a reference face",
	}

	cmd.AddCommand(
		roleCommand(settings, match.RoleTeacher, "Register a teacher"),
		roleCommand(settings, match.RoleStudent, "Register a student"),
	)
	return cmd
}

func roleCommand(settings *conf.Settings, role match.Role, short string) *cobra.Command {
	var d details

	cmd := &cobra.Command{
		Use:   string(role),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := d.person(role, time.Now())
			if err != nil {
				return err
			}
			return run(cmd, settings, p)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&d.id, "id", "", "Teacher id or enrollment id (digits)")
	flags.StringVar(&d.firstName, "first-name", "", "First name")
	flags.StringVar(&d.lastName, "last-name", "", "Last name")
	flags.StringVar(&d.gender, "gender", "", "male, female or other")
	flags.StringVar(&d.dateOfBirth, "dob", "", "Date of birth, YYYY-MM-DD")
	flags.StringVar(&d.email, "email", "", "E-mail address, unique per role")
	flags.StringVar(&d.phone, "phone", "", "Phone number")

	return cmd
}

func (d details) person(role match.Role, now time.Time) (*datastore.Person, error) {
	p := &datastore.Person{
		Role:      role,
		ID:        d.id,
		FirstName: d.firstName,
		LastName:  d.lastName,
		Gender:    d.gender,
		Email:     d.email,
		Phone:     d.phone,
	}
	if d.dateOfBirth != "" {
		dob, err := datastore.ParseDateOfBirth(d.dateOfBirth, now)
		if err != nil {
			return nil, err
		}
		p.DateOfBirth = dob
	}
	return p, nil
}

func run(cmd *cobra.Command, settings *conf.Settings, p *datastore.Person) error {
	ctx := cmd.Context()
	console := terminal.New(os.Stdin, cmd.OutOrStdout())

	rt, err := app.Start(ctx, settings, console)
	if err != nil {
		return err
	}
	defer rt.Close()

	pipeline, closeModels, err := rt.LoadPipeline()
	if err != nil {
		return err
	}
	defer closeModels()

	return rt.Serve(ctx, func(ctx context.Context) error {
		return rt.Register(ctx, pipeline, p)
	})
}
