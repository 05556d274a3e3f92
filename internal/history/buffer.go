package history

// DefaultSize количество точек на графиках
const DefaultSize = 60

// Buffer хранит последние N значений метрики в порядке поступления.
// Буфер не потокобезопасен: им владеет один агрегатор.
type Buffer struct {
	values []float64
	start  int
	count  int
}

// New создает буфер заданной емкости
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultSize
	}
	return &Buffer{values: make([]float64, capacity)}
}

// Push добавляет значение, при переполнении вытесняя самое старое
func (b *Buffer) Push(v float64) {
	if b.count < len(b.values) {
		b.values[(b.start+b.count)%len(b.values)] = v
		b.count++
		return
	}
	b.values[b.start] = v
	b.start = (b.start + 1) % len(b.values)
}

// Values возвращает копию значений от старых к новым
func (b *Buffer) Values() []float64 {
	out := make([]float64, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.values[(b.start+i)%len(b.values)]
	}
	return out
}

// Last возвращает последнее значение
func (b *Buffer) Last() (float64, bool) {
	if b.count == 0 {
		return 0, false
	}
	return b.values[(b.start+b.count-1)%len(b.values)], true
}

// Max возвращает максимум по буферу
func (b *Buffer) Max() float64 {
	var peak float64
	for i := 0; i < b.count; i++ {
		if v := b.values[(b.start+i)%len(b.values)]; i == 0 || v > peak {
			peak = v
		}
	}
	return peak
}

func (b *Buffer) Len() int { return b.count }

func (b *Buffer) Cap() int { return len(b.values) }

// Reset очищает буфер
func (b *Buffer) Reset() {
	b.start = 0
	b.count = 0
}
