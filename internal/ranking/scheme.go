// Package ranking provides term weighting schemes, score adjusters, and result ordering.
package ranking

import (
	"errors"
	"fmt"
)

// ErrUnknownScheme is returned when a weighting scheme name is not recognized.
var ErrUnknownScheme = errors.New("unknown weighting scheme")

// Scheme selects a weighting function and its score adjuster.
type Scheme int

const (
	// RawTF weights a match by docTermFreq * queryTermFreq.
	RawTF Scheme = iota
	// RawTFIDF multiplies the raw term frequency by log2(N/df).
	RawTFIDF
	// LogTFIDF dampens the term frequency with log2(tf)+1 before applying IDF.
	LogTFIDF
	// Okapi is the BM25-style weight with k1=1.5 length normalization.
	Okapi
	// Custom weights by qtf^2 * tf / df and divides the total by the document length.
	Custom
)

// String returns the configuration name of the scheme.
func (s Scheme) String() string {
	switch s {
	case RawTF:
		return "RawTF"
	case RawTFIDF:
		return "RawTFIDF"
	case LogTFIDF:
		return "LogTFIDF"
	case Okapi:
		return "Okapi"
	case Custom:
		return "Custom"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// Schemes returns every supported scheme in declaration order.
func Schemes() []Scheme {
	return []Scheme{RawTF, RawTFIDF, LogTFIDF, Okapi, Custom}
}

// ParseScheme maps a configuration name to its scheme. Names are case-sensitive.
func ParseScheme(name string) (Scheme, error) {
	for _, s := range Schemes() {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (want one of RawTF, RawTFIDF, LogTFIDF, Okapi, Custom)", ErrUnknownScheme, name)
}
