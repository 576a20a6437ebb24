package thread

// WaitList is a caller-owned list of threads parked on some wait structure.
// Threads are appended at the tail and woken from the tail.
type WaitList struct {
	ids []ID
}

// Add appends id at the tail.
func (w *WaitList) Add(id ID) {
	w.ids = append(w.ids, id)
}

// PopTail removes and returns the most recently added thread.
func (w *WaitList) PopTail() (ID, bool) {
	if len(w.ids) == 0 {
		return None, false
	}
	id := w.ids[len(w.ids)-1]
	w.ids = w.ids[:len(w.ids)-1]
	return id, true
}

// Remove drops id from the list, reporting whether it was present.
func (w *WaitList) Remove(id ID) bool {
	for i, v := range w.ids {
		if v == id {
			w.ids = append(w.ids[:i], w.ids[i+1:]...)
			return true
		}
	}
	return false
}

func (w *WaitList) Len() int {
	return len(w.ids)
}

// IDs returns the waiting threads from head to tail.
func (w *WaitList) IDs() []ID {
	out := make([]ID, len(w.ids))
	copy(out, w.ids)
	return out
}
