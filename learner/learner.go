// Package learner implements the engine's online relevance classifier: a
// binary bag-of-words Naive Bayes model that is trained once on its first
// labeled example and then updated incrementally without ever refitting
// its vocabulary.
//
// No machine-learning library appears anywhere in the example corpus, so
// this is a deliberate stdlib-only implementation rather than a fallback:
// there is nothing in the corpus to ground a dependency choice on.
package learner

import (
	"math"
	"regexp"
	"strings"
	"sync"
)

// SelfTrainThreshold is the probability cutoff used to turn a prediction
// into a pseudo-label for self-training. Exposed as a constant so callers
// that implement the self-training loop don't hardcode it.
const SelfTrainThreshold = 0.5

const (
	classNotRelevant = 0
	classRelevant    = 1
	numClasses       = 2

	// laplaceSmoothing avoids zero probabilities for words unseen in a class.
	laplaceSmoothing = 1.0
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Learner is an online binary text classifier. It is single-writer by
// contract: only the Scheduler's goroutine of control calls Update, so the
// mutex here guards against Predict running concurrently with an
// in-flight Update, not against concurrent writers.
type Learner struct {
	mu sync.Mutex

	trained bool
	vocab   map[string]struct{}

	docCount   [numClasses]int
	wordCounts [numClasses]map[string]int
	totalWords [numClasses]int
}

// New returns an untrained Learner. Predict returns the constant prior of
// 0.5 until the first Update.
func New() *Learner {
	return &Learner{
		vocab: make(map[string]struct{}),
		wordCounts: [numClasses]map[string]int{
			classNotRelevant: make(map[string]int),
			classRelevant:    make(map[string]int),
		},
	}
}

// IsTrained reports whether at least one Update has been applied.
func (l *Learner) IsTrained() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trained
}

// Predict returns the probability that text belongs to the "relevant"
// class. Before any training this is the constant prior 0.5.
func (l *Learner) Predict(text string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.trained {
		return 0.5
	}

	tokens := tokenize(text)

	logScores := [numClasses]float64{}
	totalDocs := l.docCount[classNotRelevant] + l.docCount[classRelevant]
	vocabSize := len(l.vocab)

	for c := 0; c < numClasses; c++ {
		// log P(class)
		logScores[c] = math.Log(float64(l.docCount[c]+1) / float64(totalDocs+numClasses))

		denom := float64(l.totalWords[c]) + laplaceSmoothing*float64(vocabSize)
		for _, tok := range tokens {
			if _, known := l.vocab[tok]; !known {
				continue // frozen vocabulary: unseen words are dropped
			}
			count := l.wordCounts[c][tok]
			logScores[c] += math.Log((float64(count) + laplaceSmoothing) / denom)
		}
	}

	return softmaxSecond(logScores[classNotRelevant], logScores[classRelevant])
}

// Update incorporates one labeled example. The first call trains the
// vocabulary from scratch on this single example; every subsequent call
// folds word counts into the existing vocabulary without adding new terms,
// matching an incremental (partial) fit rather than a full refit.
func (l *Learner) Update(text string, label int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if label != classNotRelevant && label != classRelevant {
		return
	}

	tokens := tokenize(text)

	if !l.trained {
		for _, tok := range tokens {
			l.vocab[tok] = struct{}{}
		}
		l.trained = true
	}

	l.docCount[label]++
	for _, tok := range tokens {
		if _, known := l.vocab[tok]; !known {
			continue
		}
		l.wordCounts[label][tok]++
		l.totalWords[label]++
	}
}

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// softmaxSecond converts two log-scores into the normalized probability of
// the second class, avoiding overflow for large magnitude scores.
func softmaxSecond(logA, logB float64) float64 {
	m := math.Max(logA, logB)
	expA := math.Exp(logA - m)
	expB := math.Exp(logB - m)
	return expB / (expA + expB)
}
