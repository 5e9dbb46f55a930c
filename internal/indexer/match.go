package indexer

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fyrsmithlabs/projindex/internal/linear"
	"github.com/fyrsmithlabs/projindex/internal/naming"
)

// activeStates are the lifecycle states eligible for indexing.
var activeStates = map[string]bool{
	"planned":   true,
	"started":   true,
	"completed": true,
}

// Match pairs a project with the initiative its name starts with.
type Match struct {
	Initiative naming.Initiative
	Project    linear.Project
	CreatedAt  time.Time
}

// HasIndex reports whether the project name already carries an index.
func (m Match) HasIndex() bool {
	_, ok := m.Initiative.ExtractIndex(m.Project.Name)
	return ok
}

// MatchProjects returns the eligible projects ordered by creation time,
// oldest first. Ties keep fetch order. A malformed creation timestamp on
// any eligible project fails the whole match.
func MatchProjects(initiatives []naming.Initiative, projects []linear.Project) ([]Match, error) {
	var matches []Match
	for _, p := range projects {
		if !activeStates[strings.ToLower(p.State)] {
			continue
		}
		in, ok := naming.Match(initiatives, p.Name)
		if !ok {
			continue
		}
		createdAt, err := naming.ParseTimestamp(p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("project %s (%q): %w", p.ID, p.Name, err)
		}
		matches = append(matches, Match{Initiative: in, Project: p, CreatedAt: createdAt})
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return matches, nil
}
