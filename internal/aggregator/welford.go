package aggregator

// runningMean maintains an incremental average without storing samples.
// Incremental update keeps the mean numerically stable for long-running
// sites where a naive sum would accumulate float error.
type runningMean struct {
	mean  float64
	count int64
}

// add folds one sample into the mean.
func (m *runningMean) add(x float64) {
	m.count++
	m.mean += (x - m.mean) / float64(m.count)
}

// restore seeds the mean from a persisted value and sample count.
func (m *runningMean) restore(mean float64, count int64) {
	if count < 0 {
		count = 0
	}
	m.mean = mean
	m.count = count
	if count == 0 {
		m.mean = 0
	}
}

func (m *runningMean) value() float64 {
	return m.mean
}

func (m *runningMean) samples() int64 {
	return m.count
}
