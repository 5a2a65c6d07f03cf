// Package registration enrolls teachers and students: it validates their
// details, captures a reference face vector and stores both.
package registration

import (
	"context"
	"sync"
	"time"

	"github.com/classroll/rollcall/internal/biometric"
	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/datastore"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/logger"
	"github.com/classroll/rollcall/internal/match"
)

// Capturer takes count frames, showing the instructions in turn, and
// returns their aggregate.
type Capturer interface {
	Capture(ctx context.Context, count int, instructions []string) (biometric.FeatureVector, error)
}

// Invalidator drops cached candidates after the stored set changes.
type Invalidator interface {
	Invalidate(role match.Role)
}

// Enroller registers people.
type Enroller struct {
	capturer     Capturer
	registry     datastore.Registry
	pool         Invalidator
	images       int
	instructions []string
	now          func() time.Time
	log          logger.Logger
}

// Option configures an Enroller.
type Option func(*Enroller)

// WithInvalidator clears the cached candidate pool of the registered role.
func WithInvalidator(inv Invalidator) Option {
	return func(e *Enroller) { e.pool = inv }
}

// WithClock overrides the clock used to check dates of birth.
func WithClock(now func() time.Time) Option {
	return func(e *Enroller) { e.now = now }
}

// New returns an Enroller taking settings.RegistrationImages images per person.
func New(capturer Capturer, registry datastore.Registry, settings *conf.CaptureSettings, opts ...Option) *Enroller {
	e := &Enroller{
		capturer:     capturer,
		registry:     registry,
		images:       max(settings.RegistrationImages, 1),
		instructions: settings.Instructions,
		now:          time.Now,
		log:          GetLogger(),
	}
	if len(e.instructions) == 0 {
		e.instructions = conf.DefaultInstructions
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enroll validates p, rejects an e-mail already used within the role,
// captures the reference vector and stores the person. Nothing is
// captured when the details are invalid.
func (e *Enroller) Enroll(ctx context.Context, p *datastore.Person) error {
	if err := datastore.ValidateDetails(p, e.now()); err != nil {
		return err
	}

	taken, err := e.registry.EmailRegistered(ctx, p.Role, p.Email)
	if err != nil {
		return err
	}
	if taken {
		return errors.New(datastore.ErrAlreadyRegistered).
			Component("registration").
			Category(errors.CategoryConflict).
			Context("role", string(p.Role)).
			Context("email", logger.RedactEmail(p.Email)).
			Build()
	}

	e.log.Info("capturing registration images",
		logger.String("role", string(p.Role)),
		logger.String("id", p.ID),
		logger.Int("images", e.images))

	start := time.Now()
	vec, err := e.capturer.Capture(ctx, e.images, e.instructions)
	if err != nil {
		return err
	}
	p.Vector = vec

	switch p.Role {
	case match.RoleTeacher:
		err = e.registry.RegisterTeacher(ctx, p)
	default:
		err = e.registry.RegisterStudent(ctx, p)
	}
	if err != nil {
		return err
	}

	if e.pool != nil {
		e.pool.Invalidate(p.Role)
	}
	e.log.Info("registration complete",
		logger.String("role", string(p.Role)),
		logger.String("id", p.ID),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

var (
	pkgLogger  logger.Logger
	loggerOnce sync.Once
)

// GetLogger returns the registration package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("registration")
	})
	return pkgLogger
}
