package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"

	"go.uber.org/zap"

	"github.com/hannes/kiji-autolabel/pii/align"
)

// Default split parameters.
const (
	DefaultSeed       int64   = 42
	DefaultTrainRatio float64 = 0.8
	DefaultValRatio   float64 = 0.1
)

// NormalizeStats reports what NormalizeExamples removed.
type NormalizeStats struct {
	EntitiesBefore  int
	DroppedEntities int
	DroppedExamples int
}

// NormalizeExamples re-canonicalizes every entity label, removes entities whose
// label is dropped and removes examples left without entities. Examples are
// copied; the input is not modified.
func NormalizeExamples(examples []Example, canon align.Canonicalizer) ([]Example, NormalizeStats) {
	var stats NormalizeStats
	kept := make([]Example, 0, len(examples))
	for _, ex := range examples {
		before := len(ex.Entities) + ex.malformed
		stats.EntitiesBefore += before

		cleaned := make([]align.Span, 0, len(ex.Entities))
		for _, ent := range ex.Entities {
			label, ok := ent.Label, ent.Label != ""
			if canon != nil {
				label, ok = canon.Canonicalize(ent.Label)
			}
			if !ok {
				continue
			}
			cleaned = append(cleaned, align.Span{Start: ent.Start, End: ent.End, Label: label})
		}

		stats.DroppedEntities += before - len(cleaned)
		if len(cleaned) == 0 {
			stats.DroppedExamples++
			continue
		}
		ex.Entities = cleaned
		ex.malformed = 0
		kept = append(kept, ex)
	}
	return kept, stats
}

// Partitions holds the three disjoint output sets.
type Partitions struct {
	Train []Example
	Val   []Example
	Test  []Example
}

// Total returns the number of examples across all partitions.
func (p Partitions) Total() int {
	return len(p.Train) + len(p.Val) + len(p.Test)
}

// Split shuffles a copy of examples with a generator seeded by seed and slices
// it into train, validation and test sets. The train set gets
// floor(trainRatio*n) examples, validation floor(valRatio*n), test the rest.
func Split(examples []Example, seed int64, trainRatio, valRatio float64) Partitions {
	shuffled := make([]Example, len(examples))
	copy(shuffled, examples)

	// #nosec G404 - deterministic shuffle, not security-critical
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	n := len(shuffled)
	nTrain := clamp(int(trainRatio*float64(n)), 0, n)
	nVal := clamp(int(valRatio*float64(n)), 0, n-nTrain)

	return Partitions{
		Train: shuffled[:nTrain],
		Val:   shuffled[nTrain : nTrain+nVal],
		Test:  shuffled[nTrain+nVal:],
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LoadSources reads the primary JSONL file, which must exist, and each
// optional file that exists, concatenating their examples in order.
func LoadSources(logger *zap.Logger, primary string, optional ...string) ([]Example, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	all, err := ReadJSONL(primary)
	if err != nil {
		return nil, fmt.Errorf("primary source: %w", err)
	}
	logger.Info("loaded source", zap.String("path", primary), zap.Int("examples", len(all)))

	for _, path := range optional {
		if path == "" {
			continue
		}
		examples, err := ReadJSONL(path)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("optional source not found, skipping", zap.String("path", path))
			continue
		}
		if err != nil {
			return nil, err
		}
		logger.Info("loaded source", zap.String("path", path), zap.Int("examples", len(examples)))
		all = append(all, examples...)
	}
	return all, nil
}
