package action

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type fakePower struct {
	err   error
	calls []model.PowerProfile
	block bool
}

func (f *fakePower) SetProfile(ctx context.Context, p model.PowerProfile) error {
	f.calls = append(f.calls, p)
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

type fakeRAM struct{ err error }

func (f fakeRAM) Drop(context.Context) error { return f.err }

type fakeKiller struct{ err error }

func (f fakeKiller) Kill(int32) error { return f.err }

func permissionDenied(path string) error {
	return classifyWrite(&fs.PathError{Op: "open", Path: path, Err: unix.EACCES})
}

func TestClearRAMCacheWithoutPrivilege(t *testing.T) {
	ex := NewExecutor(nil, Deps{RAM: fakeRAM{err: permissionDenied(defaultDropCaches)}}, time.Second)

	rec, err := ex.ClearRAMCache(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrPermissionDenied, errors.CodeOf(err))

	require.Equal(t, 1, ex.Log().Len())
	latest, ok := ex.Log().Latest()
	require.True(t, ok)
	assert.Equal(t, rec, latest)
	assert.Equal(t, model.StatusFailure, latest.Outcome.Status)
	assert.Equal(t, errors.ErrPermissionDenied, latest.Outcome.Code)
	assert.True(t, latest.Outcome.Unauthorized())
	assert.Contains(t, latest.Detail, "Needs elevated privilege")
	assert.NotEmpty(t, latest.ID)
}

func TestSetPowerProfileUnsupportedHost(t *testing.T) {
	ex := NewExecutor(nil, Deps{Power: Chain{
		&ProfilesCtl{Tool: "lonitor-no-such-powerprofilesctl"},
		&PlatformProfile{Path: filepath.Join(t.TempDir(), "platform_profile")},
	}}, time.Second)

	rec, err := ex.SetPowerProfile(context.Background(), model.ProfilePerformance)
	assert.Equal(t, errors.ErrUnsupported, errors.CodeOf(err))
	assert.Equal(t, 1, ex.Log().Len())
	assert.Equal(t, errors.ErrUnsupported, rec.Outcome.Code)
	assert.Equal(t, map[string]string{"profile": "performance"}, rec.Parameters)
	assert.Equal(t, model.ActionSetPowerProfile, rec.Kind)
}

func TestSetPowerProfileSuccess(t *testing.T) {
	power := &fakePower{}
	ex := NewExecutor(nil, Deps{Power: power}, time.Second)

	rec, err := ex.SetPowerProfile(context.Background(), model.ProfilePowerSaver)
	require.NoError(t, err)
	assert.True(t, rec.Outcome.Success())
	assert.Equal(t, "Power mode set to power-saver", rec.Detail)
	assert.Equal(t, []model.PowerProfile{model.ProfilePowerSaver}, power.calls)
}

func TestSetPowerProfileRejectsUnknownProfile(t *testing.T) {
	power := &fakePower{}
	ex := NewExecutor(nil, Deps{Power: power}, time.Second)

	_, err := ex.SetPowerProfile(context.Background(), "turbo")
	assert.Equal(t, errors.ErrInvalidArgument, errors.CodeOf(err))
	assert.Empty(t, power.calls)
	assert.Equal(t, 1, ex.Log().Len())
}

func TestActionTimeout(t *testing.T) {
	ex := NewExecutor(nil, Deps{Power: &fakePower{block: true}}, 20*time.Millisecond)

	rec, err := ex.SetPowerProfile(context.Background(), model.ProfileBalanced)
	assert.Equal(t, errors.ErrTimeout, errors.CodeOf(err))
	assert.Equal(t, errors.ErrTimeout, rec.Outcome.Code)
}

func TestMissingDepsAreUnsupported(t *testing.T) {
	ex := NewExecutor(nil, Deps{}, time.Second)
	ctx := context.Background()

	_, err := ex.ClearRAMCache(ctx)
	assert.Equal(t, errors.ErrUnsupported, errors.CodeOf(err))
	_, err = ex.ClearStorageCache(ctx)
	assert.Equal(t, errors.ErrUnsupported, errors.CodeOf(err))
	_, err = ex.KillProcess(ctx, 1)
	assert.Equal(t, errors.ErrUnsupported, errors.CodeOf(err))
	_, err = ex.SetPowerProfile(ctx, model.ProfileBalanced)
	assert.Equal(t, errors.ErrUnsupported, errors.CodeOf(err))

	assert.Equal(t, 4, ex.Log().Len())
}

func TestKillProcessRecordsOutcome(t *testing.T) {
	nf := errors.New().WithData(errors.ErrNotFound, 77)
	ex := NewExecutor(nil, Deps{Procs: fakeKiller{err: nf}}, time.Second)

	rec, err := ex.KillProcess(context.Background(), 77)
	assert.Equal(t, errors.ErrNotFound, errors.CodeOf(err))
	assert.Equal(t, "77", rec.Parameters["pid"])
	assert.Equal(t, model.ActionKillProcess, rec.Kind)

	ex = NewExecutor(nil, Deps{Procs: fakeKiller{}}, time.Second)
	rec, err = ex.KillProcess(context.Background(), 77)
	require.NoError(t, err)
	assert.Equal(t, "Process 77 terminated", rec.Detail)
}

func TestPanicStillRecorded(t *testing.T) {
	ex := NewExecutor(nil, Deps{RAM: panicRAM{}}, time.Second)

	_, err := ex.ClearRAMCache(context.Background())
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(err))
	assert.Equal(t, 1, ex.Log().Len())
}

type panicRAM struct{}

func (panicRAM) Drop(context.Context) error { panic("boom") }

func TestLogReverseChronological(t *testing.T) {
	ex := NewExecutor(nil, Deps{RAM: fakeRAM{}, Power: &fakePower{}}, time.Second)
	ctx := context.Background()

	_, _ = ex.ClearRAMCache(ctx)
	_, _ = ex.SetPowerProfile(ctx, model.ProfileBalanced)
	_, _ = ex.ClearStorageCache(ctx)

	entries := ex.Log().Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, model.ActionClearStorageCache, entries[0].Kind)
	assert.Equal(t, model.ActionSetPowerProfile, entries[1].Kind)
	assert.Equal(t, model.ActionClearRAMCache, entries[2].Kind)
	assert.Equal(t, uint64(3), entries[0].Seq)
	assert.Equal(t, uint64(1), entries[2].Seq)
}

func TestLogEntriesAreCopies(t *testing.T) {
	l := NewLog()
	params := map[string]string{"pid": "1"}
	l.Append(model.ActionRecord{Kind: model.ActionKillProcess, Parameters: params})
	params["pid"] = "2"

	entries := l.Entries()
	assert.Equal(t, "1", entries[0].Parameters["pid"])
	entries[0].Parameters["pid"] = "3"
	assert.Equal(t, "1", l.Entries()[0].Parameters["pid"])
}

func TestConcurrentActionsAppendOncePerCall(t *testing.T) {
	ex := NewExecutor(nil, Deps{RAM: fakeRAM{}}, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ex.ClearRAMCache(context.Background())
		}()
	}
	wg.Wait()

	entries := ex.Log().Entries()
	require.Len(t, entries, 20)
	seen := make(map[uint64]bool)
	for _, e := range entries {
		seen[e.Seq] = true
	}
	assert.Len(t, seen, 20)
}

func TestDropCaches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drop_caches")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	synced := false

	d := &DropCaches{Path: path, sync: func() { synced = true }}
	require.NoError(t, d.Drop(context.Background()))
	assert.True(t, synced)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "3\n", string(b))
}

func TestDropCachesMissingControlFile(t *testing.T) {
	d := &DropCaches{Path: filepath.Join(t.TempDir(), "nope", "drop_caches"), sync: func() {}}
	assert.Equal(t, errors.ErrUnsupported, errors.CodeOf(d.Drop(context.Background())))
}

func TestClassifyWrite(t *testing.T) {
	assert.Equal(t, errors.ErrPermissionDenied, errors.CodeOf(permissionDenied("/x")))
	assert.Equal(t, errors.ErrPermissionDenied, errors.CodeOf(classifyWrite(&fs.PathError{Err: unix.EROFS})))
	assert.Equal(t, errors.ErrUnsupported, errors.CodeOf(classifyWrite(&fs.PathError{Err: unix.ENOENT})))
	assert.Equal(t, errors.ErrExternalTool, errors.CodeOf(classifyWrite(&fs.PathError{Err: unix.EIO})))
}

func TestProfilesCtlClassifiesOutput(t *testing.T) {
	fail := func(out string) func(context.Context, string, ...string) (string, error) {
		return func(context.Context, string, ...string) (string, error) {
			return out, &os.PathError{Op: "exec", Err: unix.EINVAL}
		}
	}
	// sh is only used to satisfy the PATH lookup; run is faked.
	cases := map[string]errors.ErrorCode{
		"GDBus.Error:org.freedesktop.DBus.Error.AccessDenied: Not allowed": errors.ErrPermissionDenied,
		"GDBus.Error:org.freedesktop.DBus.Error.ServiceUnknown":            errors.ErrUnsupported,
		"Traceback: something broke":                                       errors.ErrExternalTool,
		"":                                                                 errors.ErrExternalTool,
	}
	for out, want := range cases {
		ctl := &ProfilesCtl{Tool: "sh", run: fail(out)}
		err := ctl.SetProfile(context.Background(), model.ProfileBalanced)
		assert.Equal(t, want, errors.CodeOf(err), out)
	}

	var got []string
	ok := &ProfilesCtl{Tool: "sh", run: func(_ context.Context, _ string, args ...string) (string, error) {
		got = args
		return "", nil
	}}
	require.NoError(t, ok.SetProfile(context.Background(), model.ProfilePowerSaver))
	assert.Equal(t, []string{"set", "power-saver"}, got)
}

func TestPlatformProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "platform_profile")
	require.NoError(t, os.WriteFile(path, []byte("balanced\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "platform_profile_choices"), []byte("low-power performance\n"), 0o644))

	pp := &PlatformProfile{Path: path}
	require.NoError(t, pp.SetProfile(context.Background(), model.ProfilePowerSaver))
	b, _ := os.ReadFile(path)
	assert.Equal(t, "low-power", string(b))

	err := pp.SetProfile(context.Background(), model.ProfileBalanced)
	assert.Equal(t, errors.ErrUnsupported, errors.CodeOf(err), "balanced not offered")
}

func TestChainStopsAtFirstSupported(t *testing.T) {
	second := &fakePower{err: errors.New().New(errors.ErrExternalTool)}
	third := &fakePower{}
	c := Chain{&fakePower{err: errors.New().New(errors.ErrUnsupported)}, second, third}

	err := c.SetProfile(context.Background(), model.ProfileBalanced)
	assert.Equal(t, errors.ErrExternalTool, errors.CodeOf(err))
	assert.Len(t, second.calls, 1)
	assert.Empty(t, third.calls)
}

func TestCacheDirsClear(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "app", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app", "sub", "blob"), make([]byte, 2048), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thumb"), make([]byte, 1024), 0o644))

	c := &CacheDirs{Dirs: []string{dir, filepath.Join(dir, "missing")}}
	res, err := c.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, int64(3072), res.Freed)

	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestCacheDirsRejectsUnsafePaths(t *testing.T) {
	for _, dir := range []string{"/", "relative/cache", ""} {
		_, err := (&CacheDirs{Dirs: []string{dir}}).Clear(context.Background())
		assert.Equal(t, errors.ErrInvalidArgument, errors.CodeOf(err), dir)
	}
	_, err := (&CacheDirs{}).Clear(context.Background())
	assert.Equal(t, errors.ErrUnsupported, errors.CodeOf(err))
}
