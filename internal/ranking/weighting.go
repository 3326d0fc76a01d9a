package ranking

import (
	"fmt"
	"math"
)

// CollectionStats is the part of the index a weighting function may consult.
type CollectionStats interface {
	DocCount() int
	TermDocCount(termID int) int
	DocLength(docID int) int
	DocLengthAvg() float64
}

// WeightFunc computes the evidence one posting contributes to a document's score.
// It must be pure: the same inputs always give the same weight.
type WeightFunc func(docID, termID, docTermFreq int, queryTermFreq float64, stats CollectionStats) float64

// AdjustFunc transforms a document's accumulated score once, after all postings are summed.
type AdjustFunc func(rawScore float64, docID int, stats CollectionStats) float64

// Options tunes the weighting functions.
type Options struct {
	// TruncateIDF computes N/df with integer division in RawTFIDF and LogTFIDF.
	TruncateIDF bool
}

// Weighting pairs the weight and adjust functions of one scheme.
type Weighting struct {
	Scheme Scheme
	Weight WeightFunc
	Adjust AdjustFunc
}

// Weighting returns the functions implementing s.
func (s Scheme) Weighting(opts Options) (Weighting, error) {
	idf := realIDF
	if opts.TruncateIDF {
		idf = truncatedIDF
	}

	w := Weighting{Scheme: s, Adjust: Identity}
	switch s {
	case RawTF:
		w.Weight = rawTF
	case RawTFIDF:
		w.Weight = func(docID, termID, tf int, qtf float64, stats CollectionStats) float64 {
			return float64(tf) * idf(stats.DocCount(), stats.TermDocCount(termID)) * qtf
		}
	case LogTFIDF:
		w.Weight = func(docID, termID, tf int, qtf float64, stats CollectionStats) float64 {
			return (math.Log2(float64(tf)) + 1) * idf(stats.DocCount(), stats.TermDocCount(termID)) * qtf
		}
	case Okapi:
		w.Weight = okapi
	case Custom:
		w.Weight = custom
		w.Adjust = LengthNormalize
	default:
		return Weighting{}, fmt.Errorf("%w: %s", ErrUnknownScheme, s)
	}
	return w, nil
}

func rawTF(docID, termID, tf int, qtf float64, stats CollectionStats) float64 {
	return float64(tf) * qtf
}

func okapi(docID, termID, tf int, qtf float64, stats CollectionStats) float64 {
	n := float64(stats.DocCount())
	df := float64(stats.TermDocCount(termID))
	ftf := float64(tf)
	lengthRatio := float64(stats.DocLength(docID)) / stats.DocLengthAvg()
	return ftf / (ftf + 0.5 + 1.5*lengthRatio) *
		math.Log2((n-df+0.5)/(df+0.5)) *
		(8 + qtf) / (7 + qtf)
}

func custom(docID, termID, tf int, qtf float64, stats CollectionStats) float64 {
	return qtf * qtf * float64(tf) / float64(stats.TermDocCount(termID))
}

// Both IDF variants require df > 0; the engine never weights a term without documents.
func realIDF(n, df int) float64 {
	return math.Log2(float64(n) / float64(df))
}

// truncatedIDF truncates N/df to an integer before taking the logarithm.
func truncatedIDF(n, df int) float64 {
	return math.Log2(float64(n / df))
}

// Identity returns the raw score unchanged.
func Identity(rawScore float64, docID int, stats CollectionStats) float64 {
	return rawScore
}

// LengthNormalize divides the raw score by the document length.
// A zero-length document has no evidence and scores 0.
func LengthNormalize(rawScore float64, docID int, stats CollectionStats) float64 {
	length := stats.DocLength(docID)
	if length == 0 {
		return 0
	}
	return rawScore / float64(length)
}
