//go:build ruleguard

// Package gorules holds go-ruleguard checks for conventions specific to
// this codebase. Run them with golangci-lint's gocritic ruleguard checker.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// StrictMatchThreshold flags inclusive threshold comparisons in the match
// package. A distance equal to the threshold is not a match.
//
// Broken pattern:
//
//	if distance <= threshold { ... }
//
// Correct pattern:
//
//	if distance < threshold { ... }
func StrictMatchThreshold(m dsl.Matcher) {
	m.Match(
		`$d <= $t`,
		`$t >= $d`,
	).
		Where(
			m.File().PkgPath.Matches(`internal/(match|session)$`) &&
				m["t"].Text.Matches(`(?i)threshold`),
		).
		Report("matching is strict: use $d < $t")
}

// EnhancedErrorsInCore flags fmt.Errorf in packages whose errors are
// classified by category and reported to telemetry.
//
// Use instead:
//
//	errors.Newf("...").Component("session").Category(errors.CategoryState).Build()
func EnhancedErrorsInCore(m dsl.Matcher) {
	m.Match(
		`fmt.Errorf($*_)`,
	).
		Where(
			m.File().PkgPath.Matches(`internal/(session|datastore|capture|registration|biometric)$`) &&
				!m.File().Name.Matches(`_test\.go$`),
		).
		Report("build a categorized error with internal/errors instead of fmt.Errorf")
}

// ModuleLogger flags the standard log package outside main. Packages log
// through their GetLogger() module logger.
func ModuleLogger(m dsl.Matcher) {
	m.Import("log")

	m.Match(
		`log.Printf($*_)`,
		`log.Println($*_)`,
		`log.Print($*_)`,
		`log.Fatalf($*_)`,
		`log.Fatal($*_)`,
	).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report("use the package's GetLogger() module logger instead of the standard log package")
}

// RedactedEmail flags raw e-mail addresses passed to the structured logger.
func RedactedEmail(m dsl.Matcher) {
	m.Match(
		`logger.String("email", $e)`,
	).
		Where(!m["e"].Text.Matches(`^logger\.RedactEmail\(`)).
		Report("log e-mail addresses through logger.RedactEmail($e)").
		Suggest(`logger.String("email", logger.RedactEmail($e))`)
}

// TestingContext detects context.Background() in tests. t.Context() is
// canceled when the test ends, which stops capture and store goroutines.
func TestingContext(m dsl.Matcher) {
	m.Match(
		`$ctx := context.Background()`,
		`$fn(context.Background(), $*args)`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, use t.Context() instead of context.Background()")
}

// DeferredTimeSince detects time.Since evaluated when the defer statement
// runs instead of at function exit. Duration metrics need the latter.
func DeferredTimeSince(m dsl.Matcher) {
	m.Match(
		`defer $fn(time.Since($start))`,
		`defer $fn($arg, time.Since($start))`,
		`defer $fn($arg, time.Since($start).Seconds())`,
	).
		Report("time.Since($start) is evaluated at defer time; wrap the call in func() to measure the full duration")
}
