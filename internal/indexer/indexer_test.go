package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/projindex/internal/linear"
	"github.com/fyrsmithlabs/projindex/internal/logging"
	"github.com/fyrsmithlabs/projindex/internal/registry"
)

var errBoom = errors.New("boom")

// fakeService is an in-memory ProjectService.
type fakeService struct {
	projects []linear.Project
	listErr  error
	failIDs  map[string]error
	renames  []string
}

func (f *fakeService) ListProjects(context.Context) ([]linear.Project, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]linear.Project, len(f.projects))
	copy(out, f.projects)
	return out, nil
}

func (f *fakeService) RenameProject(_ context.Context, id, name string) error {
	if err := f.failIDs[id]; err != nil {
		return err
	}
	f.renames = append(f.renames, id+"="+name)
	for i := range f.projects {
		if f.projects[i].ID == id {
			f.projects[i].Name = name
		}
	}
	return nil
}

type failingStore struct{}

func (failingStore) Append(context.Context, []registry.Record) error { return errBoom }

func proj(id, name, state, createdAt string) linear.Project {
	return linear.Project{
		ID:        id,
		Name:      name,
		State:     state,
		CreatedAt: createdAt,
		Creator:   &linear.Creator{Name: "Ada", Email: "ada@example.com"},
	}
}

func newTestIndexer(t *testing.T, svc ProjectService, codes ...string) (*Indexer, *registry.Store, *logging.TestLogger) {
	t.Helper()
	tl := logging.NewTestLogger()
	store := registry.NewStore(filepath.Join(t.TempDir(), "project_database.json"), tl.Logger)
	return New(svc, store, codes, tl.Logger), store, tl
}

func TestRun_AssignsNextIndex(t *testing.T) {
	svc := &fakeService{projects: []linear.Project{
		proj("p1", "ENG-001 Old Work", "completed", "2024-01-01T00:00:00.000Z"),
		proj("p2", "ENG New Feature", "started", "2024-02-01T00:00:00.000Z"),
	}}
	x, store, _ := newTestIndexer(t, svc, "ENG")
	ctx := context.Background()

	result, err := x.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"p2=ENG-002 New Feature"}, svc.renames)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 1, result.Renamed)
	assert.Equal(t, 2, result.Counters["ENG"])

	records, err := store.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, registry.Record{
		Initiative:     "ENG",
		Index:          "002",
		Name:           "ENG-002 New Feature",
		CreatedAt:      "2024-02-01T00:00:00.000Z",
		CreatedBy:      "Ada",
		CreatedByEmail: "ada@example.com",
	}, records[0])
}

func TestRun_CanceledProjectsCountButAreNotRenamed(t *testing.T) {
	svc := &fakeService{projects: []linear.Project{
		proj("p1", "ENG-007 Dropped", "canceled", "2024-01-01T00:00:00.000Z"),
		proj("p2", "ENG Abandoned", "canceled", "2024-01-02T00:00:00.000Z"),
		proj("p3", "eng - fresh start", "planned", "2024-01-03T00:00:00.000Z"),
	}}
	x, _, _ := newTestIndexer(t, svc, "ENG")

	result, err := x.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"p3=ENG-008 fresh start"}, svc.renames)
	assert.Equal(t, 1, result.Matched)
}

func TestRun_Idempotent(t *testing.T) {
	svc := &fakeService{projects: []linear.Project{
		proj("p1", "ENG Alpha", "planned", "2024-01-01T00:00:00.000Z"),
		proj("p2", "OPS Beta", "started", "2024-01-02T00:00:00.000Z"),
	}}
	x, store, _ := newTestIndexer(t, svc, "ENG", "OPS")
	ctx := context.Background()

	_, err := x.Run(ctx)
	require.NoError(t, err)
	require.Len(t, svc.renames, 2)

	result, err := x.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Renamed)
	assert.Len(t, svc.renames, 2)

	records, err := store.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRun_ConsecutiveIndicesInCreationOrder(t *testing.T) {
	svc := &fakeService{projects: []linear.Project{
		proj("c", "ENG Third", "planned", "2024-03-01T00:00:00.000Z"),
		proj("a", "ENG First", "planned", "2024-01-01T00:00:00.000Z"),
		proj("x", "ENG-004 Existing", "started", "2023-06-01T00:00:00.000Z"),
		proj("b", "ENG Second", "planned", "2024-02-01T00:00:00.5Z"),
	}}
	x, _, _ := newTestIndexer(t, svc, "ENG")

	_, err := x.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"a=ENG-005 First",
		"b=ENG-006 Second",
		"c=ENG-007 Third",
	}, svc.renames)
}

func TestRun_EqualTimestampsKeepFetchOrder(t *testing.T) {
	ts := "2024-01-01T00:00:00.000Z"
	svc := &fakeService{projects: []linear.Project{
		proj("z", "ENG Zed", "planned", ts),
		proj("a", "ENG Ay", "planned", ts),
	}}
	x, _, _ := newTestIndexer(t, svc, "ENG")

	_, err := x.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"z=ENG-001 Zed", "a=ENG-002 Ay"}, svc.renames)
}

func TestRun_FirstConfiguredInitiativeWins(t *testing.T) {
	svc := &fakeService{projects: []linear.Project{
		proj("p1", "ENGINE-010 Motor", "canceled", "2024-01-01T00:00:00.000Z"),
		proj("p2", "ENGINE Turbo", "planned", "2024-01-02T00:00:00.000Z"),
	}}
	x, _, _ := newTestIndexer(t, svc, "ENG", "ENGINE")

	result, err := x.Run(context.Background())
	require.NoError(t, err)

	// "ENGINE Turbo" matches ENG first and is cleaned as "INE Turbo".
	assert.Equal(t, []string{"p2=ENG-001 INE Turbo"}, svc.renames)
	assert.Equal(t, 10, result.Counters["ENGINE"])
}

func TestRun_MissingCreatorDefaultsToUnknown(t *testing.T) {
	p := proj("p1", "ENG Orphan", "planned", "2024-01-01T00:00:00.000Z")
	p.Creator = nil
	q := proj("p2", "ENG Named", "planned", "2024-01-02T00:00:00.000Z")
	q.Creator = &linear.Creator{DisplayName: "ada"}

	svc := &fakeService{projects: []linear.Project{p, q}}
	x, _, _ := newTestIndexer(t, svc, "ENG")

	result, err := x.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	assert.Equal(t, "Unknown", result.Records[0].CreatedBy)
	assert.Equal(t, "Unknown", result.Records[0].CreatedByEmail)
	assert.Equal(t, "ada", result.Records[1].CreatedBy)
	assert.Equal(t, "Unknown", result.Records[1].CreatedByEmail)
}

func TestRun_RejectedRenameReusesIndex(t *testing.T) {
	svc := &fakeService{
		projects: []linear.Project{
			proj("p1", "ENG One", "planned", "2024-01-01T00:00:00.000Z"),
			proj("p2", "ENG Two", "planned", "2024-01-02T00:00:00.000Z"),
			proj("p3", "ENG Three", "planned", "2024-01-03T00:00:00.000Z"),
		},
		failIDs: map[string]error{"p2": fmt.Errorf("%w: name taken", linear.ErrGraphQL)},
	}
	x, store, tl := newTestIndexer(t, svc, "ENG")
	ctx := context.Background()

	result, err := x.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenameFailed)
	assert.ErrorIs(t, err, linear.ErrGraphQL)
	assert.Contains(t, err.Error(), "p2")

	assert.Equal(t, []string{"p1=ENG-001 One", "p3=ENG-002 Three"}, svc.renames)
	assert.Equal(t, 2, result.Renamed)
	assert.Equal(t, 1, result.Failed)
	tl.AssertLogged(t, zapcore.ErrorLevel, "project rename failed")

	records, err := store.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "001", records[0].Index)
	assert.Equal(t, "002", records[1].Index)
}

func TestRun_UncertainRenameBurnsIndex(t *testing.T) {
	svc := &fakeService{
		projects: []linear.Project{
			proj("p1", "ENG One", "planned", "2024-01-01T00:00:00.000Z"),
			proj("p2", "ENG Two", "planned", "2024-01-02T00:00:00.000Z"),
			proj("p3", "ENG Three", "planned", "2024-01-03T00:00:00.000Z"),
		},
		failIDs: map[string]error{"p2": context.DeadlineExceeded},
	}
	x, store, tl := newTestIndexer(t, svc, "ENG")
	ctx := context.Background()

	result, err := x.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenameFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, []string{"p1=ENG-001 One", "p3=ENG-003 Three"}, svc.renames)
	assert.Equal(t, 3, result.Counters["ENG"])
	tl.AssertField(t, "project rename failed", "index_burned", true)

	records, err := store.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "003", records[1].Index)
}

func TestRun_FetchFailurePersistsNothing(t *testing.T) {
	svc := &fakeService{listErr: linear.ErrUnauthorized}
	x, store, _ := newTestIndexer(t, svc, "ENG")

	_, err := x.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, linear.ErrUnauthorized)
	assert.NoFileExists(t, store.Path())
}

func TestRun_BadTimestampAbortsBeforeRename(t *testing.T) {
	svc := &fakeService{projects: []linear.Project{
		proj("p1", "ENG Good", "planned", "2024-01-01T00:00:00.000Z"),
		proj("p2", "ENG Bad", "planned", "2024-01-02 00:00:00"),
	}}
	x, store, _ := newTestIndexer(t, svc, "ENG")

	_, err := x.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p2")
	assert.Empty(t, svc.renames)
	assert.NoFileExists(t, store.Path())
}

func TestRun_NoMatchesLeavesDatabaseUntouched(t *testing.T) {
	svc := &fakeService{projects: []linear.Project{
		proj("p1", "Marketing site", "planned", "2024-01-01T00:00:00.000Z"),
		proj("p2", "ENG-001 Done", "completed", "2024-01-02T00:00:00.000Z"),
	}}
	x, store, _ := newTestIndexer(t, svc, "ENG")

	result, err := x.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Renamed)
	assert.NoFileExists(t, store.Path())
}

func TestRun_StoreFailure(t *testing.T) {
	svc := &fakeService{projects: []linear.Project{
		proj("p1", "ENG One", "planned", "2024-01-01T00:00:00.000Z"),
	}}
	x := New(svc, failingStore{}, []string{"ENG"}, nil)

	_, err := x.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
}

func TestRun_CanceledContextPersistsCompletedRenames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := &cancelingService{fakeService: fakeService{projects: []linear.Project{
		proj("p1", "ENG One", "planned", "2024-01-01T00:00:00.000Z"),
		proj("p2", "ENG Two", "planned", "2024-01-02T00:00:00.000Z"),
	}}, cancel: cancel}
	x, store, _ := newTestIndexer(t, svc, "ENG")

	_, err := x.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	records, err := store.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ENG-001 One", records[0].Name)
}

// cancelingService cancels the run after its first rename.
type cancelingService struct {
	fakeService
	cancel context.CancelFunc
}

func (c *cancelingService) RenameProject(ctx context.Context, id, name string) error {
	err := c.fakeService.RenameProject(ctx, id, name)
	c.cancel()
	return err
}

func TestRun_CounterNeverBelowEmbeddedIndex(t *testing.T) {
	var projects []linear.Project
	for i, n := range []int{3, 12, 9} {
		projects = append(projects, proj(fmt.Sprintf("e%d", i), fmt.Sprintf("ENG %03d old", n), "canceled", "2024-01-01T00:00:00.000Z"))
	}
	projects = append(projects, proj("new", "ENG New", "planned", "2024-05-01T00:00:00.000Z"))

	svc := &fakeService{projects: projects}
	x, _, _ := newTestIndexer(t, svc, "ENG")

	result, err := x.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"new=ENG-013 New"}, svc.renames)
	assert.Equal(t, 13, result.Counters["ENG"])
}
