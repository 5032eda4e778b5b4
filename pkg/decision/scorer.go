package decision

// Scorer estimates an authenticity proxy score in [0, 1] from the best
// observed validation loss.
//
// The scoring policy is deliberately pluggable: the default proxy is an
// uncalibrated placeholder, not a quality judgment, and is expected to be
// replaced once a real evaluation pipeline exists.
type Scorer func(bestValLoss float64) float64

// LossProxyScorer maps validation loss to authenticity as
// clamp(1 - loss/10, 0, 1).
func LossProxyScorer(bestValLoss float64) float64 {
	score := 1 - bestValLoss/10
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
