package freq

import (
	"math"

	"github.com/valerio/go-ymf825/ymf825/fault"
)

const (
	maxRate = 15
	maxRof  = 15
	// tableLen covers rate*4+rof, capped at 64.
	tableLen = 65
)

var inf = math.Inf(1)

// attackTime is the 0 to 100% attack time in milliseconds, indexed by
// rate*4+rof. Rate 0 never completes.
var attackTime = [tableLen]float64{
	inf, inf, inf, inf,
	2826.24, 2252.8, 1884.16, 1597.44,
	1413.12, 1126.4, 942.08, 798.72,
	706.56, 563.2, 471.04, 399.36,
	353.28, 281.6, 235.52, 199.68,
	176.64, 140.8, 117.76, 99.84,
	88.32, 70.4, 58.88, 49.92,
	44.16, 35.2, 29.44, 24.96,
	22.08, 17.6, 14.72, 12.48,
	11.04, 8.8, 7.36, 6.24,
	5.52, 4.4, 3.68, 3.12,
	2.76, 2.2, 1.84, 1.56,
	1.38, 1.1, 0.92, 0.78,
	0.69, 0.55, 0.46, 0.39,
	0.345, 0.275, 0.23, 0.195,
	0, 0, 0, 0,
	0,
}

// decayTime is the 0 to 96 dB decay time in milliseconds, shared by the
// decay, sustain and release rates.
var decayTime = [tableLen]float64{
	78561.28, 62832.64, 52346.88, 44892.16,
	39280.64, 31416.32, 26173.44, 22446.08,
	19640.32, 15708.16, 13086.72, 11223.04,
	9820.16, 7854.08, 6543.36, 5611.52,
	4910.08, 3927.04, 3271.68, 2805.76,
	2455.04, 1963.52, 1635.84, 1402.88,
	1227.52, 981.76, 817.92, 701.44,
	613.76, 490.88, 408.96, 350.72,
	306.88, 245.44, 204.48, 175.36,
	153.44, 122.72, 102.24, 87.68,
	76.72, 61.36, 51.12, 43.84,
	38.36, 30.68, 25.56, 21.92,
	19.18, 15.34, 12.78, 10.96,
	9.59, 7.67, 6.39, 5.48,
	4.795, 3.835, 3.195, 2.74,
	2.4, 2.4, 2.4, 2.4,
	2.4,
}

func rateIndex(rate, rof int) (int, error) {
	if rate < 0 || rate > maxRate {
		return 0, fault.Range("rate", rate, 0, maxRate)
	}
	if rof < 0 || rof > maxRof {
		return 0, fault.Range("rof", rof, 0, maxRof)
	}
	return min(rate*4+rof, tableLen-1), nil
}

// AttackRateTime returns the attack time in seconds. It is +Inf for the
// rates that never reach full level.
func AttackRateTime(rate, rof int) (float64, error) {
	i, err := rateIndex(rate, rof)
	if err != nil {
		return 0, err
	}
	return attackTime[i] / 1000, nil
}

// EnvelopeRateTime returns the decay/sustain/release time in seconds.
func EnvelopeRateTime(rate, rof int) (float64, error) {
	i, err := rateIndex(rate, rof)
	if err != nil {
		return 0, err
	}
	return decayTime[i] / 1000, nil
}
