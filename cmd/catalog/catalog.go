// Package catalog holds the commands that manage subjects, sections,
// offered classes and excuse reasons.
package catalog

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classroll/rollcall/internal/app"
	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/datastore"
	"github.com/classroll/rollcall/internal/terminal"
)

// Command creates the catalog command tree.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage subjects, sections, classes and excuse reasons",
	}

	cmd.AddCommand(
		subjectCommand(settings),
		sectionCommand(settings),
		offerCommand(settings),
		classesCommand(settings),
		excuseCommand(settings),
	)
	return cmd
}

func subjectCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "subject CODE NAME",
		Short: "Add a subject",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, settings, func(ctx context.Context, store datastore.Interface) error {
				s, err := store.AddSubject(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Subject %s (%s) saved.\n", s.SubjectCode, s.SubjectName)
				return nil
			})
		},
	}
}

func sectionCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "section NAME",
		Short: "Add a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, settings, func(ctx context.Context, store datastore.Interface) error {
				s, err := store.AddSection(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Section %s saved.\n", s.SectionName)
				return nil
			})
		},
	}
}

func offerCommand(settings *conf.Settings) *cobra.Command {
	var teacherID string

	cmd := &cobra.Command{
		Use:   "offer SUBJECT_CODE SECTION",
		Short: "Offer a subject to a section so sessions can be held for it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var teacher *string
			if teacherID != "" {
				teacher = &teacherID
			}
			return withStore(cmd, settings, func(ctx context.Context, store datastore.Interface) error {
				class, err := store.OfferClass(ctx, args[0], args[1], teacher)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Class %d offered: %s for section %s.\n",
					class.ID, class.Subject.SubjectCode, class.Section.SectionName)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&teacherID, "teacher", "", "Teacher id assigned to the class")
	return cmd
}

func classesCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List offered classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, settings, func(ctx context.Context, store datastore.Interface) error {
				classes, err := store.ListOfferedClasses(ctx)
				if err != nil {
					return err
				}
				if len(classes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No class is currently offered.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), terminal.RenderClasses(classes))
				return nil
			})
		},
	}
}

func excuseCommand(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "excuse",
		Short: "Manage excuse reasons",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add REASON",
			Short: "Add an excuse reason",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, settings, func(ctx context.Context, store datastore.Interface) error {
					r, err := store.AddExcuseReason(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Excuse reason %d saved.\n", r.ID)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List excuse reasons",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, settings, func(ctx context.Context, store datastore.Interface) error {
					reasons, err := store.ListExcuseReasons(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), terminal.RenderExcuseReasons(reasons))
					return nil
				})
			},
		},
	)
	return cmd
}

func withStore(cmd *cobra.Command, settings *conf.Settings, fn func(ctx context.Context, store datastore.Interface) error) error {
	store, err := app.OpenStore(settings)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cmd.Context(), store)
}
