package report

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/classroll/rollcall/internal/app"
	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/datastore"
	"github.com/classroll/rollcall/internal/terminal"
)

// Command creates the report command, which prints one session's attendance.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "report SESSION_ID",
		Short: "Show the attendance recorded in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 0)
			if err != nil {
				return fmt.Errorf("session id %q: %w", args[0], err)
			}

			store, err := app.OpenStore(settings)
			if err != nil {
				return err
			}
			defer store.Close()

			out, err := Render(cmd.Context(), store, uint(id))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

// Render loads a session with its class and marks and renders the summary.
func Render(ctx context.Context, store datastore.Interface, sessionID uint) (string, error) {
	s, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	records, err := store.ListAttendance(ctx, sessionID)
	if err != nil {
		return "", err
	}

	ref := datastore.ClassRef{ClassID: s.ClassID}
	classes, err := store.ListOfferedClasses(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range classes {
		if c.ClassID == s.ClassID {
			ref = c.Ref()
			break
		}
	}

	return terminal.RenderSummary(s, ref, records), nil
}
