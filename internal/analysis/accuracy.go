package analysis

import (
	"math"

	"chess_review/internal/domain/review"
)

// Summarize tallies one side's classifications and converts its mean
// centipawn loss into an accuracy percentage. Book, forced and unlabelled
// moves do not count toward the mean.
func Summarize(moves []review.AnalyzedMove, color review.Color) review.AccuracySummary {
	summary := review.AccuracySummary{Color: color}

	lossSum := 0
	counted := 0

	for _, m := range moves {
		if m.Color != color {
			continue
		}
		summary.TotalMoves++

		switch m.Classification {
		case review.ClassificationBrilliant:
			summary.Brilliant++
		case review.ClassificationGreat:
			summary.Great++
		case review.ClassificationBest:
			summary.Best++
		case review.ClassificationGood:
			summary.Good++
		case review.ClassificationBook:
			summary.Book++
		case review.ClassificationInaccuracy:
			summary.Inaccuracy++
		case review.ClassificationMiss:
			summary.Miss++
		case review.ClassificationMistake:
			summary.Mistake++
		case review.ClassificationBlunder:
			summary.Blunder++
		case review.ClassificationForced:
			summary.Forced++
		}

		switch m.Classification {
		case review.ClassificationBook, review.ClassificationForced, review.ClassificationNone:
		default:
			lossSum += m.CentipawnLoss
			counted++
		}
	}

	if counted == 0 {
		summary.Accuracy = 0
		return summary
	}

	meanLoss := float64(lossSum) / float64(counted)
	summary.Accuracy = accuracyFromMeanLoss(meanLoss)
	return summary
}

func accuracyFromMeanLoss(meanLoss float64) float64 {
	accuracy := 103.1668*math.Exp(-0.04354*meanLoss) - 3.1669
	if accuracy < 0 {
		return 0
	}
	if accuracy > 100 {
		return 100
	}
	return accuracy
}
