package timetravel

// PeakRate is the chase rate held during the peak phase.
const PeakRate = 2

// TargetRate is the speed a trip returns to: rates above 50 are rounded
// down to a multiple of ten.
func TargetRate(rate int) int {
	if rate > 50 {
		return rate / 10 * 10
	}
	return rate
}

// Decelerate returns the next faster rate during acceleration.
func Decelerate(rate int) int {
	switch {
	case rate > 100:
		return rate - 50
	case rate > 20:
		return rate - 10
	case rate > PeakRate:
		return rate - 1
	}
	return rate
}

// Accelerate returns the next slower rate during reentry.
func Accelerate(rate int) int {
	switch {
	case rate >= 50:
		return rate + 50
	case rate >= 10:
		return rate + 10
	}
	return rate + 1
}

// StepCount is the number of Decelerate steps from rate down to PeakRate.
func StepCount(rate int) int {
	n := 0
	for r := rate; r > PeakRate; r = Decelerate(r) {
		n++
	}
	return n
}
