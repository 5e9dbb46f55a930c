package linear

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const projectsQuery = `
query Projects($first: Int!, $after: String) {
  projects(first: $first, after: $after) {
    nodes {
      id
      name
      state
      createdAt
      creator {
        name
        displayName
        email
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

const renameMutation = `
mutation RenameProject($id: String!, $name: String!) {
  projectUpdate(id: $id, input: { name: $name }) {
    success
    project {
      id
      name
    }
  }
}`

// Creator is the user who created a project. Any field may be empty.
type Creator struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Project is a Linear project as returned by the projects query.
type Project struct {
	ID        string
	Name      string
	State     string
	CreatedAt string
	Creator   *Creator
}

// projectNode mirrors the wire shape; pointers distinguish missing fields.
type projectNode struct {
	ID        *string  `json:"id"`
	Name      *string  `json:"name"`
	State     *string  `json:"state"`
	CreatedAt *string  `json:"createdAt"`
	Creator   *Creator `json:"creator"`
}

func (n projectNode) project() (Project, error) {
	missing := func(field string) error {
		return fmt.Errorf("%w: project missing %q", ErrMalformedResponse, field)
	}
	switch {
	case n.ID == nil || *n.ID == "":
		return Project{}, missing("id")
	case n.Name == nil:
		return Project{}, missing("name")
	case n.State == nil:
		return Project{}, missing("state")
	case n.CreatedAt == nil:
		return Project{}, missing("createdAt")
	}
	return Project{
		ID:        *n.ID,
		Name:      *n.Name,
		State:     *n.State,
		CreatedAt: *n.CreatedAt,
		Creator:   n.Creator,
	}, nil
}

// projectsData uses pointers so an absent connection or node list is
// distinguishable from an empty page.
type projectsData struct {
	Projects *struct {
		Nodes    *[]projectNode `json:"nodes"`
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
	} `json:"projects"`
}

// ListProjects fetches every project, following pagination cursors until
// the last page or until the configured page cap is reached.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var (
		projects []Project
		cursor   string
	)

	for page := 1; ; page++ {
		vars := map[string]any{"first": c.pageSize}
		if cursor != "" {
			vars["after"] = cursor
		}

		var data projectsData
		if err := c.do(ctx, projectsQuery, vars, &data); err != nil {
			return nil, fmt.Errorf("fetching projects page %d: %w", page, err)
		}

		if data.Projects == nil || data.Projects.Nodes == nil {
			return nil, fmt.Errorf("fetching projects page %d: %w: missing projects.nodes", page, ErrMalformedResponse)
		}
		nodes := *data.Projects.Nodes

		for _, node := range nodes {
			p, err := node.project()
			if err != nil {
				return nil, err
			}
			projects = append(projects, p)
		}

		info := data.Projects.PageInfo
		c.logger.Debug(ctx, "projects page fetched",
			zap.Int("page", page),
			zap.Int("count", len(nodes)),
			zap.Bool("has_next_page", info.HasNextPage),
		)

		if !info.HasNextPage || info.EndCursor == "" {
			break
		}
		if c.maxPages > 0 && page >= c.maxPages {
			c.logger.Warn(ctx, "project listing truncated at page limit",
				zap.Int("max_pages", c.maxPages),
				zap.Int("fetched", len(projects)),
			)
			break
		}
		cursor = info.EndCursor
	}

	return projects, nil
}

type renameData struct {
	ProjectUpdate *struct {
		Success bool `json:"success"`
		Project *struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"project"`
	} `json:"projectUpdate"`
}

// RenameProject sets the name of project id. It fails unless the API
// reports success.
func (c *Client) RenameProject(ctx context.Context, id, name string) error {
	var data renameData
	vars := map[string]any{"id": id, "name": name}
	if err := c.do(ctx, renameMutation, vars, &data); err != nil {
		return fmt.Errorf("renaming project %s: %w", id, err)
	}
	if data.ProjectUpdate == nil {
		return fmt.Errorf("renaming project %s: %w: missing projectUpdate", id, ErrMalformedResponse)
	}
	if !data.ProjectUpdate.Success {
		return fmt.Errorf("renaming project %s: %w", id, ErrRenameNotConfirmed)
	}
	return nil
}
