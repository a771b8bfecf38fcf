package answer

import (
	"math/rand/v2"
	"sync"
	"time"

	"jawabbot/pkg/corpus"
)

// Selector picks one answered record uniformly at random.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector builds a selector over src. A nil src gets a time-seeded PCG source.
func NewSelector(src rand.Source) *Selector {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>1|1)
	}

	return &Selector{rng: rand.New(src)}
}

// Select returns a random record that has at least one answer.
func (s *Selector) Select(result corpus.Result) (corpus.QuestionRecord, error) {
	usable := make([]corpus.QuestionRecord, 0, len(result))
	for _, record := range result {
		if len(record.Answers) == 0 {
			continue
		}
		usable = append(usable, record)
	}

	if len(usable) == 0 {
		return corpus.QuestionRecord{}, ErrNoUsableResults
	}

	s.mu.Lock()
	index := s.rng.IntN(len(usable))
	s.mu.Unlock()

	return usable[index], nil
}
