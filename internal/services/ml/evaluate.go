package ml

import (
	"errors"
	"sort"
)

// ConfusionMatrix counts outcomes with 1 as the positive class.
type ConfusionMatrix struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

func Confusion(yTrue, yPred []int) (ConfusionMatrix, error) {
	if len(yTrue) != len(yPred) {
		return ConfusionMatrix{}, errors.New("confusion: length mismatch")
	}
	var m ConfusionMatrix
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			m.TP++
		case yTrue[i] == 1:
			m.FN++
		case yPred[i] == 1:
			m.FP++
		default:
			m.TN++
		}
	}
	return m, nil
}

func (m ConfusionMatrix) Total() int { return m.TN + m.FP + m.FN + m.TP }

func (m ConfusionMatrix) Accuracy() float64 {
	if m.Total() == 0 {
		return 0
	}
	return float64(m.TN+m.TP) / float64(m.Total())
}

// ROCAUC computes the area under the ROC curve from ranks, averaging ties.
// ok is false when only one class is present.
func ROCAUC(yTrue []int, scores []float64) (auc float64, ok bool) {
	n := len(yTrue)
	if n == 0 || n != len(scores) {
		return 0, false
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && scores[order[j+1]] == scores[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	var pos, neg int
	var rankSum float64
	for i, label := range yTrue {
		if label == 1 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0, false
	}
	return (rankSum - float64(pos)*float64(pos+1)/2) / (float64(pos) * float64(neg)), true
}
