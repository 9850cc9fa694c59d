package circuitbreaker

import "time"

const maxWindowSeconds = 60

// slot holds the outcomes recorded during one second.
type slot struct {
	weight float64 // summed error weight
	count  int
}

// window is a ring of one-second slots covering the last size seconds.
type window struct {
	slots [maxWindowSeconds]slot
	size  int
	head  int
	sec   int64 // unix second of slots[head]
}

func newWindow(seconds int) window {
	if seconds <= 0 || seconds > maxWindowSeconds {
		seconds = maxWindowSeconds
	}
	return window{size: seconds}
}

// rotate moves head to nowSec, zeroing every slot it passes.
func (w *window) rotate(nowSec int64) {
	if w.sec == 0 {
		w.sec = nowSec
		return
	}
	gap := nowSec - w.sec
	if gap <= 0 {
		return
	}
	for i := range min(int(gap), w.size) {
		w.slots[(w.head+1+i)%w.size] = slot{}
	}
	w.head = (w.head + int(gap)) % w.size
	w.sec = nowSec
}

func (w *window) add(weight float64, now time.Time) {
	w.rotate(now.Unix())
	w.slots[w.head].count++
	w.slots[w.head].weight += weight
}

// rate returns the weighted error rate and the number of samples in the window.
func (w *window) rate(now time.Time) (float64, int) {
	w.rotate(now.Unix())
	var weight float64
	var n int
	for i := range w.size {
		weight += w.slots[i].weight
		n += w.slots[i].count
	}
	if n == 0 {
		return 0, 0
	}
	return weight / float64(n), n
}

func (w *window) reset() {
	*w = window{size: w.size}
}
