// Package elo implements the rating math used by the match ledger.
package elo

import "math"

// DefaultK is the K-factor applied to every match. 32 keeps single games
// meaningful for a ladder where most players sit near the starting rating.
const DefaultK = 32

// ExpectedScore returns the probability of the first player winning under
// the logistic ELO model: a 400-point gap implies 10:1 odds.
func ExpectedScore(ratingA, ratingB int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(ratingB-ratingA)/400.0))
}

// ComputeChange returns the rating deltas for both players of a finished
// match. aWon states whether the first player won; draws are not supported.
//
// Each delta is rounded half-away-from-zero (math.Round) from that player's
// own perspective. The deltas are computed independently and are not forced
// to be exact negatives of each other; callers must not "rebalance" them.
func ComputeChange(ratingA, ratingB int, aWon bool, k int) (deltaA, deltaB int) {
	expectedA := ExpectedScore(ratingA, ratingB)
	expectedB := ExpectedScore(ratingB, ratingA)

	actualA, actualB := 0.0, 1.0
	if aWon {
		actualA, actualB = 1.0, 0.0
	}

	deltaA = int(math.Round(float64(k) * (actualA - expectedA)))
	deltaB = int(math.Round(float64(k) * (actualB - expectedB)))
	return deltaA, deltaB
}
