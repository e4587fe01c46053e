package architect

import "github.com/AbhayRathi/AlphaWEEX/internal/regime"

// baseStrategy is the compiled-in equivalent of active_logic's original
// crossover strategy: the module every fresh process starts with,
// before any evolution has occurred.
func baseStrategy() DecisionModule {
	return DecisionModule{
		CalculateIndicators: calculateIndicatorsSMA,
		GenerateSignal:      generateSignalCrossover,
	}
}

// InitialDecisionModule exposes baseStrategy to callers composing a
// fresh Registry, so the process starts executing real crossover logic
// instead of a zero-value module before any evolution has occurred.
func InitialDecisionModule() DecisionModule {
	return baseStrategy()
}

func calculateIndicatorsSMA(closes, volumes []float64) Indicators {
	if len(closes) < 2 {
		return Indicators{}
	}

	sma := func(xs []float64, n int) float64 {
		if len(xs) < n {
			n = len(xs)
		}
		if n == 0 {
			return 0
		}
		var sum float64
		for _, v := range xs[len(xs)-n:] {
			sum += v
		}
		return sum / float64(n)
	}

	var avgVolume float64
	if len(volumes) > 0 {
		var sum float64
		for _, v := range volumes {
			sum += v
		}
		avgVolume = sum / float64(len(volumes))
	}

	return Indicators{
		SMA5:          sma(closes, 5),
		SMA20:         sma(closes, 20),
		CurrentPrice:  closes[len(closes)-1],
		AvgVolume:     avgVolume,
		CurrentVolume: volumes[len(volumes)-1],
		Valid:         true,
	}
}

func generateSignalCrossover(ind Indicators, analysisSignal string, analysisConfidence float64, analysisReasoning string) Signal {
	if !ind.Valid {
		return Signal{Action: "HOLD", Confidence: 0, Reason: "insufficient indicators"}
	}

	action := "HOLD"
	confidence := 0.5
	reason := "default hold position"

	switch {
	case ind.SMA5 > ind.SMA20 && ind.CurrentPrice > ind.SMA5:
		action, confidence, reason = "BUY", 0.65, "short MA above long MA, price trending up"
	case ind.SMA5 < ind.SMA20 && ind.CurrentPrice < ind.SMA5:
		action, confidence, reason = "SELL", 0.65, "short MA below long MA, price trending down"
	}

	if analysisSignal != "" {
		if analysisSignal == action {
			confidence = (confidence+analysisConfidence)/2 + 0.1
		} else if analysisSignal != "HOLD" {
			action = analysisSignal
			confidence = analysisConfidence
			reason = "R1 override: " + analysisReasoning
		}
	}

	if confidence > 1.0 {
		confidence = 1.0
	}

	return Signal{Action: action, Confidence: confidence, Reason: reason}
}

// regimeAwareStrategy is the compiled-in equivalent of a candidate
// source's regime-conditional rewrite, generated by propose() when an
// evolution_suggestion is present. Real per-regime tuning (entry
// thresholds, stop distances) is the content the mutation protocol
// deliberately leaves unspecified; this strategy demonstrates the
// shape the Architect commits to the registry.
func regimeAwareStrategy(r regime.Regime, confidenceBoost, r1OverrideThreshold float64) DecisionModule {
	return DecisionModule{
		CalculateIndicators: calculateIndicatorsSMA,
		GenerateSignal: func(ind Indicators, analysisSignal string, analysisConfidence float64, analysisReasoning string) Signal {
			base := generateSignalCrossover(ind, "", 0, "")

			switch r {
			case regime.TrendingUp:
				if base.Action == "HOLD" {
					base = Signal{Action: "BUY", Confidence: 0.55, Reason: "regime-aware: trending up bias, stop-loss enforced"}
				}
			case regime.TrendingDown:
				if base.Action == "HOLD" {
					base = Signal{Action: "SELL", Confidence: 0.55, Reason: "regime-aware: trending down bias, stop-loss enforced"}
				}
			case regime.RangeVolatile:
				base.Confidence *= 0.8
				base.Reason += "; position sizing reduced for volatile range, drawdown monitoring active"
			case regime.RangeQuiet:
				base.Reason += "; risk management: quiet range, holding bias"
			}

			if analysisSignal != "" && analysisConfidence >= r1OverrideThreshold {
				base.Action = analysisSignal
				base.Confidence = analysisConfidence + confidenceBoost
				base.Reason = "R1 override: " + analysisReasoning + "; stop-loss enforced"
			} else if analysisSignal == base.Action {
				base.Confidence = (base.Confidence+analysisConfidence)/2 + confidenceBoost
			}

			if base.Confidence > 1.0 {
				base.Confidence = 1.0
			}
			return base
		},
	}
}
