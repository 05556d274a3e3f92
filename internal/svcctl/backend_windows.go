//go:build windows

package svcctl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yusufpapurcu/wmi"
	"go.uber.org/zap"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

const servicesKey = `SYSTEM\CurrentControlSet\Services\`

type win32Service struct {
	Name        string
	DisplayName *string
	Description *string
	State       *string
	StartMode   *string
	ProcessId   uint32
	PathName    *string
	StartName   *string
	ServiceType *string
}

type scmBackend struct {
	logger *zap.Logger
}

// NewBackend возвращает управление службами через SCM, WMI и реестр
func NewBackend(ctx context.Context, logger *zap.Logger) (Backend, error) {
	return &scmBackend{logger: logger.Named("svcctl")}, nil
}

func queryWMI(ctx context.Context, q string, dst interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := wmi.Query(q, dst)
	var mismatch *wmi.ErrFieldMismatch
	if errors.As(err, &mismatch) {
		return nil
	}
	return err
}

func (b *scmBackend) List(ctx context.Context) ([]Record, error) {
	var dst []win32Service
	if err := queryWMI(ctx, "SELECT Name, DisplayName, Description, State, StartMode, ProcessId, PathName, StartName, ServiceType FROM Win32_Service", &dst); err != nil {
		return nil, fmt.Errorf("failed to query Win32_Service: %w", err)
	}

	out := make([]Record, 0, len(dst))
	for _, s := range dst {
		if s.Name == "" {
			continue
		}
		rec := recordFromWMI(s)
		rec.LoadOrderGroup = b.loadOrderGroup(s.Name)
		rec.Enriched = true
		out = append(out, rec)
	}
	return out, nil
}

func (b *scmBackend) ListBasic(ctx context.Context) ([]Record, error) {
	m, err := connect(windows.SC_MANAGER_CONNECT | windows.SC_MANAGER_ENUMERATE_SERVICE)
	if err != nil {
		return nil, err
	}
	defer m.Disconnect()

	names, err := m.ListServices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate services: %w", err)
	}

	out := make([]Record, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rec, err := basicRecord(m, name)
		if err != nil {
			b.logger.Debug("Skipping service", zap.String("service", name), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func basicRecord(m *mgr.Mgr, name string) (Record, error) {
	s, err := openService(m, name, windows.SERVICE_QUERY_STATUS|windows.SERVICE_QUERY_CONFIG)
	if err != nil {
		return Record{}, err
	}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return Record{}, err
	}
	rec := Record{Name: name, DisplayName: name, Status: fromSvcState(status.State)}
	if cfg, err := s.Config(); err == nil {
		rec.DisplayName = cfg.DisplayName
		rec.StartMode = fromStartType(cfg.StartType)
	}
	return rec, nil
}

func (b *scmBackend) Query(ctx context.Context, name string) (State, error) {
	m, err := connect(windows.SC_MANAGER_CONNECT)
	if err != nil {
		return State{}, err
	}
	defer m.Disconnect()

	s, err := openService(m, name, windows.SERVICE_QUERY_STATUS)
	if err != nil {
		return State{}, err
	}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return State{}, fmt.Errorf("failed to query service %s: %w", name, err)
	}

	return State{
		Status:              fromSvcState(status.State),
		PID:                 status.ProcessId,
		CanStop:             status.Accepts&svc.AcceptStop != 0,
		CanPauseAndContinue: status.Accepts&svc.AcceptPauseAndContinue != 0,
	}, nil
}

func (b *scmBackend) Details(ctx context.Context, name string) (Record, error) {
	var dst []win32Service
	q := fmt.Sprintf("SELECT Name, DisplayName, Description, State, StartMode, ProcessId, PathName, StartName, ServiceType FROM Win32_Service WHERE Name = '%s'", escapeWQL(name))
	if err := queryWMI(ctx, q, &dst); err != nil {
		return Record{}, fmt.Errorf("failed to query service %s: %w", name, err)
	}
	if len(dst) == 0 {
		return Record{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	rec := recordFromWMI(dst[0])
	rec.LoadOrderGroup = b.loadOrderGroup(name)
	rec.Enriched = true
	return rec, nil
}

func (b *scmBackend) Start(ctx context.Context, name string) error {
	return b.withService(name, windows.SERVICE_START, func(s *mgr.Service) error {
		return s.Start()
	})
}

func (b *scmBackend) Stop(ctx context.Context, name string) error {
	return b.control(name, windows.SERVICE_STOP, svc.Stop)
}

func (b *scmBackend) Pause(ctx context.Context, name string) error {
	return b.control(name, windows.SERVICE_PAUSE_CONTINUE, svc.Pause)
}

func (b *scmBackend) Continue(ctx context.Context, name string) error {
	return b.control(name, windows.SERVICE_PAUSE_CONTINUE, svc.Continue)
}

func (b *scmBackend) Close() error { return nil }

func (b *scmBackend) control(name string, access uint32, cmd svc.Cmd) error {
	return b.withService(name, access, func(s *mgr.Service) error {
		_, err := s.Control(cmd)
		return err
	})
}

func (b *scmBackend) withService(name string, access uint32, fn func(s *mgr.Service) error) error {
	m, err := connect(windows.SC_MANAGER_CONNECT)
	if err != nil {
		return err
	}
	defer m.Disconnect()

	s, err := openService(m, name, access)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(s)
}

// loadOrderGroup читает группу порядка загрузки из реестра
func (b *scmBackend) loadOrderGroup(name string) string {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, servicesKey+name, registry.QUERY_VALUE)
	if err != nil {
		return ""
	}
	defer k.Close()

	group, _, err := k.GetStringValue("Group")
	if err != nil {
		return ""
	}
	return group
}

// connect открывает SCM с минимальными правами, чтобы работать без администратора
func connect(access uint32) (*mgr.Mgr, error) {
	h, err := windows.OpenSCManager(nil, nil, access)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to service manager: %w", err)
	}
	return &mgr.Mgr{Handle: h}, nil
}

func openService(m *mgr.Mgr, name string, access uint32) (*mgr.Service, error) {
	ptr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	h, err := windows.OpenService(m.Handle, ptr, access)
	if err != nil {
		if errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open service %s: %w", name, err)
	}
	return &mgr.Service{Name: name, Handle: h}, nil
}

func recordFromWMI(s win32Service) Record {
	return Record{
		Name:        s.Name,
		DisplayName: deref(s.DisplayName),
		Description: deref(s.Description),
		Status:      ParseStatus(deref(s.State)),
		StartMode:   ParseStartMode(deref(s.StartMode)),
		PID:         s.ProcessId,
		Path:        deref(s.PathName),
		Account:     deref(s.StartName),
		ServiceType: deref(s.ServiceType),
	}
}

func fromSvcState(s svc.State) Status {
	switch s {
	case svc.Stopped:
		return StatusStopped
	case svc.StartPending:
		return StatusStartPending
	case svc.StopPending:
		return StatusStopPending
	case svc.Running:
		return StatusRunning
	case svc.ContinuePending:
		return StatusContinuePending
	case svc.PausePending:
		return StatusPausePending
	case svc.Paused:
		return StatusPaused
	default:
		return StatusUnknown
	}
}

func fromStartType(t uint32) StartMode {
	switch t {
	case windows.SERVICE_BOOT_START:
		return StartBoot
	case windows.SERVICE_SYSTEM_START:
		return StartSystem
	case mgr.StartAutomatic:
		return StartAutomatic
	case mgr.StartManual:
		return StartManual
	case mgr.StartDisabled:
		return StartDisabled
	default:
		return StartUnknown
	}
}

func escapeWQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
