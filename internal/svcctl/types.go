package svcctl

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnsupported операция недоступна для этой платформы или службы
	ErrUnsupported = errors.New("service operation not supported")
	// ErrNotFound служба не найдена
	ErrNotFound = errors.New("service not found")
)

// Status состояние службы
type Status int

const (
	StatusUnknown Status = iota
	StatusStopped
	StatusStartPending
	StatusStopPending
	StatusRunning
	StatusContinuePending
	StatusPausePending
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "Stopped"
	case StatusStartPending:
		return "StartPending"
	case StatusStopPending:
		return "StopPending"
	case StatusRunning:
		return "Running"
	case StatusContinuePending:
		return "ContinuePending"
	case StatusPausePending:
		return "PausePending"
	case StatusPaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Display строка состояния для отображения
func (s Status) Display() string {
	switch s {
	case StatusStartPending:
		return "Starting..."
	case StatusStopPending:
		return "Stopping..."
	case StatusContinuePending:
		return "Continuing..."
	case StatusPausePending:
		return "Pausing..."
	default:
		return s.String()
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ParseStatus разбирает состояние в формате Win32_Service.State
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running":
		return StatusRunning
	case "stopped":
		return StatusStopped
	case "paused":
		return StatusPaused
	case "start pending":
		return StatusStartPending
	case "stop pending":
		return StatusStopPending
	case "continue pending":
		return StatusContinuePending
	case "pause pending":
		return StatusPausePending
	default:
		return StatusUnknown
	}
}

// StartMode режим запуска службы
type StartMode int

const (
	StartUnknown StartMode = iota
	StartBoot
	StartSystem
	StartAutomatic
	StartManual
	StartDisabled
)

func (m StartMode) String() string {
	switch m {
	case StartBoot:
		return "Boot"
	case StartSystem:
		return "System"
	case StartAutomatic:
		return "Automatic"
	case StartManual:
		return "Manual"
	case StartDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

func (m StartMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ParseStartMode разбирает режим запуска в формате Win32_Service.StartMode
func ParseStartMode(s string) StartMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "automatic":
		return StartAutomatic
	case "manual":
		return StartManual
	case "disabled":
		return StartDisabled
	case "boot":
		return StartBoot
	case "system":
		return StartSystem
	default:
		return StartUnknown
	}
}

// Record описание службы. Name и Path неизменны, Status и PID обновляются отдельно.
type Record struct {
	Name           string    `json:"name"`
	DisplayName    string    `json:"display_name"`
	Description    string    `json:"description"`
	Status         Status    `json:"status"`
	StartMode      StartMode `json:"start_mode"`
	PID            uint32    `json:"pid"`
	Path           string    `json:"path"`
	Account        string    `json:"account"`
	LoadOrderGroup string    `json:"load_order_group"`
	ServiceType    string    `json:"service_type"`
	Enriched       bool      `json:"enriched"`
}

// State текущее состояние службы из интерфейса управления
type State struct {
	Status              Status
	PID                 uint32
	CanStop             bool
	CanPauseAndContinue bool
}

// Backend интерфейс управления службами ОС
type Backend interface {
	// List загружает полный список через расширенный запрос
	List(ctx context.Context) ([]Record, error)
	// ListBasic перечисляет службы с минимумом полей
	ListBasic(ctx context.Context) ([]Record, error)
	// Query дешево читает состояние и PID
	Query(ctx context.Context, name string) (State, error)
	// Details читает подробные поля одной службы
	Details(ctx context.Context, name string) (Record, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Pause(ctx context.Context, name string) error
	Continue(ctx context.Context, name string) error
	Close() error
}
