package indexer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projindex/internal/linear"
	"github.com/fyrsmithlabs/projindex/internal/logging"
	"github.com/fyrsmithlabs/projindex/internal/naming"
	"github.com/fyrsmithlabs/projindex/internal/registry"
)

// ErrRenameFailed wraps the failures of a run that skipped renames.
var ErrRenameFailed = errors.New("project rename failed")

const unknown = "Unknown"

// Renamer is the remote rename operation.
type Renamer interface {
	RenameProject(ctx context.Context, id, name string) error
}

// RenameOutcome is the result of renaming a batch of matches.
type RenameOutcome struct {
	Records  []registry.Record
	Counters Counters
	Failures []error
}

// Rename assigns the next index to every match that lacks one and renames
// it through r. When the API rejects a rename the index goes to the next
// project; when the outcome is unknown (see linear.IsRejected) the index is
// skipped so it cannot end up on two projects. The input counters are not modified; the advanced counters
// are returned in the outcome. Matches are processed in order, so indices
// within an initiative follow creation time.
//
// If ctx is canceled the loop stops early and returns the work done so far
// together with ctx.Err().
func Rename(ctx context.Context, r Renamer, counters Counters, matches []Match, logger *logging.Logger) (RenameOutcome, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	out := RenameOutcome{Counters: counters.Clone()}

	for _, m := range matches {
		if m.HasIndex() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		code := m.Initiative.Code
		next := out.Counters[code] + 1
		index := naming.FormatIndex(next)
		newName := m.Initiative.FormatName(next, m.Initiative.CleanTitle(m.Project.Name))

		if err := r.RenameProject(ctx, m.Project.ID, newName); err != nil {
			// An index whose rename may have landed is never handed out again.
			burned := !linear.IsRejected(err)
			if burned {
				out.Counters[code] = next
			}
			logger.Error(ctx, "project rename failed",
				zap.String("project_id", m.Project.ID),
				zap.String("name", m.Project.Name),
				zap.String("new_name", newName),
				zap.Bool("index_burned", burned),
				zap.Error(err),
			)
			out.Failures = append(out.Failures, fmt.Errorf("%s (%q): %w", m.Project.ID, m.Project.Name, err))
			continue
		}

		out.Counters[code] = next
		logger.Info(ctx, "project renamed",
			zap.String("project_id", m.Project.ID),
			zap.String("name", m.Project.Name),
			zap.String("new_name", newName),
		)

		createdBy, email := creatorInfo(m.Project.Creator)
		out.Records = append(out.Records, registry.Record{
			Initiative:     code,
			Index:          index,
			Name:           newName,
			CreatedAt:      m.Project.CreatedAt,
			CreatedBy:      createdBy,
			CreatedByEmail: email,
		})
	}

	return out, nil
}

// creatorInfo picks the creator's name, falling back to display name, and
// the email, defaulting both to "Unknown".
func creatorInfo(c *linear.Creator) (name, email string) {
	name, email = unknown, unknown
	if c == nil {
		return name, email
	}
	switch {
	case c.Name != "":
		name = c.Name
	case c.DisplayName != "":
		name = c.DisplayName
	}
	if c.Email != "" {
		email = c.Email
	}
	return name, email
}
