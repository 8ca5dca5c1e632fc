package indicator

import "pricewatch/internal/model"

// sma returns the arithmetic mean of the last period prices.
func sma(samples []model.Sample, period int) (float64, error) {
	if len(samples) < period {
		return 0, model.ErrInsufficientHistory
	}
	sum := 0.0
	for _, s := range samples[len(samples)-period:] {
		sum += s.Price
	}
	return sum / float64(period), nil
}

// ema seeds with the SMA of the first period samples, then applies standard
// exponential smoothing with factor 2/(period+1) to the rest in order.
func ema(samples []model.Sample, period int) (float64, error) {
	if len(samples) < period {
		return 0, model.ErrInsufficientHistory
	}

	sum := 0.0
	for _, s := range samples[:period] {
		sum += s.Price
	}
	cur := sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for _, s := range samples[period:] {
		cur = s.Price*multiplier + cur*(1-multiplier)
	}
	return cur, nil
}

// rsi implements Wilder's RSI: initial averages over the first period price
// deltas, then recursive smoothing. Needs period+1 samples (period deltas).
func rsi(samples []model.Sample, period int) (float64, error) {
	if len(samples) < period+1 {
		return 0, model.ErrInsufficientHistory
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := samples[i].Price - samples[i-1].Price
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss += -delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder's smoothing: avg = (prevAvg*(period-1) + delta) / period
	p := float64(period)
	for i := period + 1; i < len(samples); i++ {
		delta := samples[i].Price - samples[i-1].Price
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		if avgGain > 0 {
			return 100.0, nil
		}
		return 50.0, nil // flat series: no gains, no losses
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs)), nil
}
