package monitor

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrDisposed агрегатор уже освобожден
	ErrDisposed = errors.New("aggregator disposed")
	// ErrNotReady агрегатор еще не инициализирован
	ErrNotReady = errors.New("aggregator not ready")
	// ErrBusy предыдущий опрос еще не завершен
	ErrBusy = errors.New("aggregator refresh in progress")
)

// State состояние жизненного цикла агрегатора
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateSampling
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateSampling:
		return "Sampling"
	case StateDisposed:
		return "Disposed"
	default:
		return "Uninitialized"
	}
}

// lifecycle переходы Uninitialized -> Ready -> (Sampling <-> Ready) -> Disposed
type lifecycle struct {
	state atomic.Int32
}

// State возвращает текущее состояние
func (l *lifecycle) State() State {
	return State(l.state.Load())
}

func (l *lifecycle) ready() {
	l.state.CompareAndSwap(int32(StateUninitialized), int32(StateReady))
}

// begin переводит Ready -> Sampling перед опросом
func (l *lifecycle) begin() error {
	if l.state.CompareAndSwap(int32(StateReady), int32(StateSampling)) {
		return nil
	}
	switch l.State() {
	case StateDisposed:
		return ErrDisposed
	case StateSampling:
		return ErrBusy
	default:
		return ErrNotReady
	}
}

// end возвращает Sampling -> Ready независимо от частичных ошибок опроса
func (l *lifecycle) end() {
	l.state.CompareAndSwap(int32(StateSampling), int32(StateReady))
}

// dispose возвращает false, если агрегатор уже был освобожден
func (l *lifecycle) dispose() bool {
	return State(l.state.Swap(int32(StateDisposed))) != StateDisposed
}
