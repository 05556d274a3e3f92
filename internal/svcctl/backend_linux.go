//go:build linux

package svcctl

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"
	"go.uber.org/zap"
)

var servicePatterns = []string{"*.service"}

// systemdConn подмножество методов D-Bus соединения systemd
type systemdConn interface {
	ListUnitsByPatternsContext(ctx context.Context, states []string, patterns []string) ([]dbus.UnitStatus, error)
	ListUnitFilesByPatternsContext(ctx context.Context, states []string, patterns []string) ([]dbus.UnitFile, error)
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]interface{}, error)
	GetUnitTypePropertiesContext(ctx context.Context, unit string, unitType string) (map[string]interface{}, error)
	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	Close()
}

var newConnection = func(ctx context.Context) (systemdConn, error) {
	return dbus.NewSystemdConnectionContext(ctx)
}

type systemdBackend struct {
	logger *zap.Logger

	mu   sync.Mutex
	conn systemdConn
}

// NewBackend возвращает управление службами systemd через D-Bus.
// Соединение устанавливается лениво при первом обращении.
func NewBackend(ctx context.Context, logger *zap.Logger) (Backend, error) {
	return &systemdBackend{logger: logger.Named("svcctl")}, nil
}

func (b *systemdBackend) connection(ctx context.Context) (systemdConn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return b.conn, nil
	}
	conn, err := newConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	b.conn = conn
	return conn, nil
}

// List объединяет загруженные юниты со списком файлов юнитов,
// чтобы получить режим запуска и неактивные службы
func (b *systemdBackend) List(ctx context.Context) ([]Record, error) {
	conn, err := b.connection(ctx)
	if err != nil {
		return nil, err
	}

	units, err := conn.ListUnitsByPatternsContext(ctx, nil, servicePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	files, err := conn.ListUnitFilesByPatternsContext(ctx, nil, servicePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to list unit files: %w", err)
	}

	modes := make(map[string]StartMode, len(files))
	for _, f := range files {
		name := filepath.Base(f.Path)
		if strings.Contains(name, "@.") {
			continue
		}
		modes[name] = startModeFromUnitFile(f.Type)
	}

	out := make([]Record, 0, len(modes))
	seen := make(map[string]bool, len(units))
	for _, u := range units {
		rec := recordFromUnit(u)
		rec.StartMode = modes[u.Name]
		seen[u.Name] = true
		out = append(out, rec)
	}
	for name, mode := range modes {
		if seen[name] {
			continue
		}
		out = append(out, Record{Name: name, DisplayName: name, Status: StatusStopped, StartMode: mode})
	}

	return out, nil
}

func (b *systemdBackend) ListBasic(ctx context.Context) ([]Record, error) {
	conn, err := b.connection(ctx)
	if err != nil {
		return nil, err
	}

	units, err := conn.ListUnitsByPatternsContext(ctx, nil, servicePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}

	out := make([]Record, 0, len(units))
	for _, u := range units {
		out = append(out, recordFromUnit(u))
	}
	return out, nil
}

func (b *systemdBackend) Query(ctx context.Context, name string) (State, error) {
	conn, err := b.connection(ctx)
	if err != nil {
		return State{}, err
	}

	props, err := conn.GetUnitPropertiesContext(ctx, name)
	if err != nil {
		return State{}, fmt.Errorf("failed to get unit properties of %s: %w", name, err)
	}
	if load, _ := props["LoadState"].(string); load == "not-found" {
		return State{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	active, _ := props["ActiveState"].(string)
	canStop, _ := props["CanStop"].(bool)
	st := State{Status: statusFromUnit(active), CanStop: canStop}

	if svcProps, err := conn.GetUnitTypePropertiesContext(ctx, name, "Service"); err == nil {
		st.PID, _ = svcProps["MainPID"].(uint32)
	}

	return st, nil
}

func (b *systemdBackend) Details(ctx context.Context, name string) (Record, error) {
	conn, err := b.connection(ctx)
	if err != nil {
		return Record{}, err
	}

	props, err := conn.GetUnitPropertiesContext(ctx, name)
	if err != nil {
		return Record{}, fmt.Errorf("failed to get unit properties of %s: %w", name, err)
	}
	if load, _ := props["LoadState"].(string); load == "not-found" {
		return Record{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	rec := Record{Name: name, Enriched: true}
	rec.Description, _ = props["Description"].(string)
	rec.DisplayName = rec.Description
	if rec.DisplayName == "" {
		rec.DisplayName = name
	}
	rec.Path, _ = props["FragmentPath"].(string)
	active, _ := props["ActiveState"].(string)
	rec.Status = statusFromUnit(active)
	fileState, _ := props["UnitFileState"].(string)
	rec.StartMode = startModeFromUnitFile(fileState)

	svcProps, err := conn.GetUnitTypePropertiesContext(ctx, name, "Service")
	if err != nil {
		b.logger.Debug("Service properties unavailable", zap.String("service", name), zap.Error(err))
		return rec, nil
	}
	rec.PID, _ = svcProps["MainPID"].(uint32)
	rec.Account, _ = svcProps["User"].(string)
	if rec.Account == "" {
		rec.Account = "root"
	}
	rec.ServiceType, _ = svcProps["Type"].(string)
	rec.LoadOrderGroup, _ = svcProps["Slice"].(string)

	return rec, nil
}

func (b *systemdBackend) Start(ctx context.Context, name string) error {
	conn, err := b.connection(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.StartUnitContext(ctx, name, "replace", nil); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	return nil
}

func (b *systemdBackend) Stop(ctx context.Context, name string) error {
	conn, err := b.connection(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.StopUnitContext(ctx, name, "replace", nil); err != nil {
		return fmt.Errorf("failed to stop %s: %w", name, err)
	}
	return nil
}

// Pause systemd не поддерживает приостановку служб
func (b *systemdBackend) Pause(ctx context.Context, name string) error {
	return fmt.Errorf("pause %s: %w", name, ErrUnsupported)
}

func (b *systemdBackend) Continue(ctx context.Context, name string) error {
	return fmt.Errorf("continue %s: %w", name, ErrUnsupported)
}

func (b *systemdBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	return nil
}

func recordFromUnit(u dbus.UnitStatus) Record {
	display := u.Description
	if display == "" {
		display = u.Name
	}
	return Record{
		Name:        u.Name,
		DisplayName: display,
		Status:      statusFromUnit(u.ActiveState),
	}
}

func statusFromUnit(active string) Status {
	switch active {
	case "active", "reloading", "refreshing":
		return StatusRunning
	case "inactive", "failed", "maintenance":
		return StatusStopped
	case "activating":
		return StatusStartPending
	case "deactivating":
		return StatusStopPending
	default:
		return StatusUnknown
	}
}

// startModeFromUnitFile сопоставляет UnitFileState режиму запуска
func startModeFromUnitFile(state string) StartMode {
	switch state {
	case "enabled", "enabled-runtime", "alias":
		return StartAutomatic
	case "disabled", "masked", "masked-runtime":
		return StartDisabled
	case "":
		return StartUnknown
	default:
		return StartManual
	}
}
