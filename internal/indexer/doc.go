// Package indexer assigns initiative indices to Linear projects.
//
// A run is strictly sequential:
//
//	Fetch -> ScanCounters -> MatchProjects -> Rename (loop) -> Append
//
// ScanCounters establishes, per initiative, the highest index already
// encoded in any project name, regardless of project state. MatchProjects
// keeps planned/started/completed projects that carry an initiative prefix
// and orders them by creation time. Rename gives every match without an
// index the next number for its initiative and renames it remotely.
// Successful renames are appended to the project database.
//
// A failed rename is logged and skipped: no record is written and the
// index is handed to the next project, so numbering stays consecutive.
// The run still finishes and persists the successful renames, then
// reports the failures as an error wrapping ErrRenameFailed.
package indexer
