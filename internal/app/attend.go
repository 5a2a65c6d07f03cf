package app

import (
	"context"

	"github.com/classroll/rollcall/internal/logger"
	"github.com/classroll/rollcall/internal/session"
	"github.com/classroll/rollcall/internal/terminal"
)

// Attend runs one attendance session from teacher authentication to close
// and prints the session summary, including for a session left ongoing.
func (rt *Runtime) Attend(ctx context.Context, teacher, students session.Sampler) error {
	cfg := session.Config{
		TeacherThreshold: rt.Settings.TeacherThreshold(),
		StudentThreshold: rt.Settings.StudentThreshold(),
		MaxAttempts:      rt.Settings.Auth.MaxAttempts,
	}

	opts := []session.Option{
		session.WithStudentSampler(students),
		session.WithMetrics(rt.Metrics.Attendance),
	}
	if rt.publisher != nil {
		opts = append(opts, session.WithPublisher(rt.publisher))
	}

	machine := session.NewMachine(rt.Store, teacher, rt.Pool, rt.Console, cfg, opts...)
	runErr := machine.Run(ctx)

	if s, ok := machine.Session(); ok {
		records, err := rt.Store.ListAttendance(context.WithoutCancel(ctx), s.ID)
		if err != nil {
			rt.log.Error("failed to load attendance for summary",
				logger.String("session_uuid", s.UUID),
				logger.Error(err))
		}
		rt.Console.Print(terminal.RenderSummary(s, machine.Class(), records))
	}

	return runErr
}
