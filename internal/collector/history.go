package collector

// DefaultHistorySize 60 точек, минута при опросе раз в секунду
const DefaultHistorySize = 60

// History ограниченная история значений: при переполнении вытесняется самое старое
type History struct {
	values   []float64
	capacity int
}

// NewHistory создает историю заданной емкости (DefaultHistorySize если capacity < 1)
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistorySize
	}
	return &History{
		values:   make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// Append добавляет значение в конец
func (h *History) Append(v float64) {
	if len(h.values) == h.capacity {
		copy(h.values, h.values[1:])
		h.values = h.values[:h.capacity-1]
	}
	h.values = append(h.values, v)
}

// Values возвращает копию значений от старых к новым
func (h *History) Values() []float64 {
	out := make([]float64, len(h.values))
	copy(out, h.values)
	return out
}

// Len число хранимых значений
func (h *History) Len() int {
	return len(h.values)
}

// Cap емкость истории
func (h *History) Cap() int {
	return h.capacity
}

// Clear удаляет все значения
func (h *History) Clear() {
	h.values = h.values[:0]
}
