package counters

import "errors"

var (
	// ErrUnsupported счетчик недоступен на этой платформе
	ErrUnsupported = errors.New("counter not supported on this platform")
	// ErrHandleClosed чтение из освобожденного дескриптора
	ErrHandleClosed = errors.New("counter handle closed")
	// ErrSamplerClosed сэмплер уже освобожден
	ErrSamplerClosed = errors.New("sampler closed")
	// ErrReadTimeout чтение не уложилось в отведенное время
	ErrReadTimeout = errors.New("counter read timed out")
)

// Counter открытый канал чтения одного счетчика ОС
type Counter interface {
	Read() (float64, error)
	Close() error
}

// Provider подсистема счетчиков производительности ОС
type Provider interface {
	// Instances перечисляет экземпляры категории
	Instances(category string) ([]string, error)
	// Open открывает счетчик по пути
	Open(path Path) (Counter, error)
}
