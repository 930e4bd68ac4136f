package notify

import "container/heap"

// pendingHeap is a min-heap of payloads ordered by trigger time, then key.
type pendingHeap []Payload

func (h pendingHeap) Len() int { return len(h) }
func (h pendingHeap) Less(i, j int) bool {
	if h[i].At.Equal(h[j].At) {
		return h[i].Key < h[j].Key
	}
	return h[i].At.Before(h[j].At)
}
func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) {
	*h = append(*h, x.(Payload))
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// remove drops the payload with key. Returns false if it was not queued.
func (h *pendingHeap) remove(key string) bool {
	for i, p := range *h {
		if p.Key == key {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}
