// Package learner contains the core learner domain model.
//
// It defines:
//
//   - Entities: Learner, with authentication material and gamification counters
//   - Value Objects: Status, Preferences, QuietHours
//   - Repository interfaces implemented in infrastructure/persistence
//
// The package follows the project's domain conventions: zero external
// dependencies, rich entities that enforce their own invariants, and
// repository interfaces defined next to the aggregate they serve.
//
// A learner is the central aggregate. Everything a learner does - finishing
// lessons, submitting quizzes, chatting with the tutor - eventually flows
// back here as XP, streak and activity updates.
package learner
