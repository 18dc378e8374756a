package subspace

// Observation is one channel triple (character, logic, affect) recorded for
// a bucket.
type Observation = [3]float64

// window is a fixed-capacity ring buffer of observations, oldest first when
// read out. Not safe for concurrent use; the Monitor serializes access.
type window struct {
	buf   []Observation
	head  int
	count int
}

func newWindow(capacity int) *window {
	if capacity < 2 {
		capacity = 2
	}
	return &window{buf: make([]Observation, capacity)}
}

func (w *window) push(o Observation) {
	w.buf[w.head] = o
	w.head = (w.head + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

func (w *window) len() int {
	return w.count
}

// ordered returns the observations oldest first.
func (w *window) ordered() []Observation {
	out := make([]Observation, 0, w.count)
	start := w.head - w.count
	if start < 0 {
		start += len(w.buf)
	}
	for i := 0; i < w.count; i++ {
		out = append(out, w.buf[(start+i)%len(w.buf)])
	}
	return out
}

// halves splits the ordered observations into the context (older) and
// forecast (newer) halves used by the divergence measure. With fewer than
// two observations both halves are empty.
func (w *window) halves() (ctx, forecast []Observation) {
	if w.count < 2 {
		return nil, nil
	}
	ord := w.ordered()
	mid := len(ord) / 2
	return ord[:mid], ord[mid:]
}

func channelMeans(obs []Observation) [3]float64 {
	var m [3]float64
	if len(obs) == 0 {
		return m
	}
	for _, o := range obs {
		m[0] += o[0]
		m[1] += o[1]
		m[2] += o[2]
	}
	n := float64(len(obs))
	m[0] /= n
	m[1] /= n
	m[2] /= n
	return m
}

// covariance builds the 3x3 covariance matrix of the observations centered
// on their own mean. Population covariance (divide by n) keeps the zero- and
// one-observation cases well defined.
func covariance(obs []Observation) Sym3 {
	var c Sym3
	n := float64(len(obs))
	if n == 0 {
		return c
	}
	mean := channelMeans(obs)
	for _, o := range obs {
		d0 := o[0] - mean[0]
		d1 := o[1] - mean[1]
		d2 := o[2] - mean[2]
		c.A11 += d0 * d0
		c.A12 += d0 * d1
		c.A13 += d0 * d2
		c.A22 += d1 * d1
		c.A23 += d1 * d2
		c.A33 += d2 * d2
	}
	c.A11 /= n
	c.A12 /= n
	c.A13 /= n
	c.A22 /= n
	c.A23 /= n
	c.A33 /= n
	return c
}
