package timeseries

// EMAStep applies one exponential moving average update using alpha expressed
// in basis points (alphaBps/10000). Integer arithmetic keeps repeated updates
// reproducible across runs.
func EMAStep(price, oldEMA int64, alphaBps int64) int64 {
	if alphaBps < 0 {
		alphaBps = 0
	}
	if alphaBps > 10000 {
		alphaBps = 10000
	}
	return (price*alphaBps + oldEMA*(10000-alphaBps)) / 10000
}

// Mean returns the integer mean of values, zero for an empty slice.
func Mean(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	var sum int64
	for _, v := range values {
		sum += v
	}
	return sum / int64(len(values))
}

// RelativeStdDev computes the population standard deviation of values scaled
// relative to their mean: variance = sum(diff*diff/mean)/n, then integer
// square root. A zero mean yields zero.
func RelativeStdDev(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	var variance int64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff / mean
	}
	variance /= int64(len(values))
	return ISqrt(variance)
}

// ISqrt returns the integer square root of n (floor), zero for negatives.
func ISqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
