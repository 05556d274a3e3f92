//go:build linux

package svcctl

import (
	"context"
	"errors"
	"testing"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	units   []dbus.UnitStatus
	files   []dbus.UnitFile
	props   map[string]map[string]interface{}
	svc     map[string]map[string]interface{}
	started []string
	stopped []string
	closed  bool
}

func (f *fakeConn) ListUnitsByPatternsContext(context.Context, []string, []string) ([]dbus.UnitStatus, error) {
	return f.units, nil
}

func (f *fakeConn) ListUnitFilesByPatternsContext(context.Context, []string, []string) ([]dbus.UnitFile, error) {
	return f.files, nil
}

func (f *fakeConn) GetUnitPropertiesContext(_ context.Context, unit string) (map[string]interface{}, error) {
	p, ok := f.props[unit]
	if !ok {
		return map[string]interface{}{"LoadState": "not-found"}, nil
	}
	return p, nil
}

func (f *fakeConn) GetUnitTypePropertiesContext(_ context.Context, unit, _ string) (map[string]interface{}, error) {
	p, ok := f.svc[unit]
	if !ok {
		return nil, errors.New("no such unit")
	}
	return p, nil
}

func (f *fakeConn) StartUnitContext(_ context.Context, name, _ string, _ chan<- string) (int, error) {
	f.started = append(f.started, name)
	return 1, nil
}

func (f *fakeConn) StopUnitContext(_ context.Context, name, _ string, _ chan<- string) (int, error) {
	f.stopped = append(f.stopped, name)
	return 1, nil
}

func (f *fakeConn) Close() { f.closed = true }

func newFakeBackend(t *testing.T, conn *fakeConn) Backend {
	t.Helper()

	prev := newConnection
	newConnection = func(context.Context) (systemdConn, error) { return conn, nil }
	t.Cleanup(func() { newConnection = prev })

	b, err := NewBackend(context.Background(), zap.NewNop())
	require.NoError(t, err)
	return b
}

func TestSystemdList(t *testing.T) {
	conn := &fakeConn{
		units: []dbus.UnitStatus{
			{Name: "sshd.service", Description: "OpenSSH server", ActiveState: "active"},
			{Name: "cron.service", ActiveState: "activating"},
		},
		files: []dbus.UnitFile{
			{Path: "/lib/systemd/system/sshd.service", Type: "enabled"},
			{Path: "/lib/systemd/system/cron.service", Type: "static"},
			{Path: "/lib/systemd/system/bluetooth.service", Type: "masked"},
			{Path: "/lib/systemd/system/getty@.service", Type: "enabled"},
		},
	}
	b := newFakeBackend(t, conn)

	list, err := b.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)

	byName := map[string]Record{}
	for _, r := range list {
		byName[r.Name] = r
	}
	assert.Equal(t, "OpenSSH server", byName["sshd.service"].DisplayName)
	assert.Equal(t, StatusRunning, byName["sshd.service"].Status)
	assert.Equal(t, StartAutomatic, byName["sshd.service"].StartMode)
	assert.Equal(t, StatusStartPending, byName["cron.service"].Status)
	assert.Equal(t, StartManual, byName["cron.service"].StartMode)
	assert.Equal(t, StatusStopped, byName["bluetooth.service"].Status)
	assert.Equal(t, StartDisabled, byName["bluetooth.service"].StartMode)
}

func TestSystemdQueryAndDetails(t *testing.T) {
	conn := &fakeConn{
		props: map[string]map[string]interface{}{
			"nginx.service": {
				"LoadState":     "loaded",
				"ActiveState":   "active",
				"CanStop":       true,
				"Description":   "A high performance web server",
				"FragmentPath":  "/lib/systemd/system/nginx.service",
				"UnitFileState": "enabled",
			},
		},
		svc: map[string]map[string]interface{}{
			"nginx.service": {"MainPID": uint32(812), "Type": "forking", "Slice": "system.slice"},
		},
	}
	b := newFakeBackend(t, conn)
	ctx := context.Background()

	st, err := b.Query(ctx, "nginx.service")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, st.Status)
	assert.Equal(t, uint32(812), st.PID)
	assert.True(t, st.CanStop)
	assert.False(t, st.CanPauseAndContinue)

	rec, err := b.Details(ctx, "nginx.service")
	require.NoError(t, err)
	assert.True(t, rec.Enriched)
	assert.Equal(t, "root", rec.Account)
	assert.Equal(t, "system.slice", rec.LoadOrderGroup)
	assert.Equal(t, "forking", rec.ServiceType)
	assert.Equal(t, StartAutomatic, rec.StartMode)

	_, err = b.Query(ctx, "missing.service")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSystemdControl(t *testing.T) {
	conn := &fakeConn{}
	b := newFakeBackend(t, conn)
	ctx := context.Background()

	require.NoError(t, b.Start(ctx, "nginx.service"))
	require.NoError(t, b.Stop(ctx, "nginx.service"))
	assert.Equal(t, []string{"nginx.service"}, conn.started)
	assert.Equal(t, []string{"nginx.service"}, conn.stopped)

	assert.ErrorIs(t, b.Pause(ctx, "nginx.service"), ErrUnsupported)
	assert.ErrorIs(t, b.Continue(ctx, "nginx.service"), ErrUnsupported)

	require.NoError(t, b.Close())
	assert.True(t, conn.closed)
}
