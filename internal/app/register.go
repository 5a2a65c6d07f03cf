package app

import (
	"context"

	"github.com/classroll/rollcall/internal/datastore"
	"github.com/classroll/rollcall/internal/registration"
)

// Register collects missing details at the console, captures the face and
// stores the person. The candidate pool for the person's role is refreshed.
func (rt *Runtime) Register(ctx context.Context, capturer registration.Capturer, p *datastore.Person) error {
	if err := rt.Console.FillPerson(p); err != nil {
		return err
	}

	enroller := registration.New(capturer, rt.Store, &rt.Settings.Capture,
		registration.WithInvalidator(rt.Pool))
	if err := enroller.Enroll(ctx, p); err != nil {
		return err
	}

	rt.Console.Notify("Registered " + string(p.Role) + " " + p.ID + ".")
	return nil
}
