package monitor

import "sync"

// Hub раздает подписчикам последний снимок. Канал подписчика хранит
// одно значение: устаревший снимок заменяется новым, публикация не блокируется.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   []chan T
	closed bool
}

// Subscribe возвращает канал последних снимков. После Close канал закрыт.
func (h *Hub[T]) Subscribe() <-chan T {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan T, 1)
	if h.closed {
		close(ch)
		return ch
	}
	h.subs = append(h.subs, ch)
	return ch
}

// Unsubscribe отписывает и закрывает канал
func (h *Hub[T]) Unsubscribe(ch <-chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subs {
		if sub == ch {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Publish заменяет непрочитанный снимок каждого подписчика новым
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Close закрывает все каналы подписчиков
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}
