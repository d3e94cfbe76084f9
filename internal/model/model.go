// Package model is the optional late-stage similarity model: a TF-IDF
// vectorizer over word n-grams with a k-nearest-neighbour vote on top.
// Models are trained by the trainer package and stored as a JSON artifact.
package model

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"ai-khaled/internal/textsim"
)

var (
	ErrNoModel   = errors.New("no trained model")
	ErrNoData    = errors.New("no training data")
	ErrNoMatch   = errors.New("no overlapping features")
	ErrBadFormat = errors.New("incompatible model artifact")
)

const formatVersion = 1

// Example is one training sample: input text and the answer to predict.
type Example struct {
	Text  string
	Label string
}

type Options struct {
	NGramMin int
	NGramMax int
	K        int
}

func DefaultOptions() Options {
	return Options{NGramMin: 1, NGramMax: 3, K: 3}
}

// Vector is a sparse L2-normalized feature vector sorted by index.
type Vector struct {
	Indices []int     `json:"i"`
	Values  []float64 `json:"v"`
}

func (v Vector) dot(o Vector) float64 {
	var s float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(o.Indices) {
		switch {
		case v.Indices[i] == o.Indices[j]:
			s += v.Values[i] * o.Values[j]
			i++
			j++
		case v.Indices[i] < o.Indices[j]:
			i++
		default:
			j++
		}
	}
	return s
}

// Model is the serialized (vectorizer, classifier) bundle.
type Model struct {
	Version    int            `json:"version"`
	NGramMin   int            `json:"ngram_min"`
	NGramMax   int            `json:"ngram_max"`
	K          int            `json:"k"`
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
	Vectors    []Vector       `json:"vectors"`
	Labels     []string       `json:"labels"`
	TrainedAt  time.Time      `json:"trained_at"`
}

// analyze turns text into word n-grams. Tokens shorter than two runes are
// dropped before n-grams are built.
func analyze(text string, nmin, nmax int) []string {
	var toks []string
	for _, t := range textsim.Tokens(text) {
		if utf8.RuneCountInString(t) >= 2 {
			toks = append(toks, t)
		}
	}
	var grams []string
	for n := nmin; n <= nmax; n++ {
		for i := 0; i+n <= len(toks); i++ {
			grams = append(grams, strings.Join(toks[i:i+n], " "))
		}
	}
	return grams
}

// Train fits the vectorizer and stores every example as a neighbour.
func Train(examples []Example, opts Options) (*Model, error) {
	if opts.NGramMin <= 0 || opts.NGramMax < opts.NGramMin || opts.K <= 0 {
		return nil, errors.New("invalid model options")
	}
	var docs [][]string
	var labels []string
	for _, ex := range examples {
		label := strings.TrimSpace(ex.Label)
		if strings.TrimSpace(ex.Text) == "" || label == "" {
			continue
		}
		docs = append(docs, analyze(ex.Text, opts.NGramMin, opts.NGramMax))
		labels = append(labels, label)
	}
	if len(docs) == 0 {
		return nil, ErrNoData
	}

	vocab := map[string]int{}
	var df []int
	for _, d := range docs {
		seen := map[string]bool{}
		for _, g := range d {
			if seen[g] {
				continue
			}
			seen[g] = true
			idx, ok := vocab[g]
			if !ok {
				idx = len(df)
				vocab[g] = idx
				df = append(df, 0)
			}
			df[idx]++
		}
	}
	n := float64(len(docs))
	idf := make([]float64, len(df))
	for i, c := range df {
		idf[i] = math.Log((1+n)/(1+float64(c))) + 1
	}

	m := &Model{
		Version:    formatVersion,
		NGramMin:   opts.NGramMin,
		NGramMax:   opts.NGramMax,
		K:          opts.K,
		Vocabulary: vocab,
		IDF:        idf,
		Labels:     labels,
		TrainedAt:  time.Now().UTC(),
	}
	m.Vectors = make([]Vector, len(docs))
	for i, d := range docs {
		m.Vectors[i] = m.vectorize(d)
	}
	return m, nil
}

// Transform maps text into the model's feature space.
func (m *Model) Transform(text string) Vector {
	return m.vectorize(analyze(text, m.NGramMin, m.NGramMax))
}

func (m *Model) vectorize(grams []string) Vector {
	counts := map[int]float64{}
	for _, g := range grams {
		if idx, ok := m.Vocabulary[g]; ok {
			counts[idx]++
		}
	}
	v := Vector{Indices: make([]int, 0, len(counts)), Values: make([]float64, 0, len(counts))}
	for idx := range counts {
		v.Indices = append(v.Indices, idx)
	}
	sort.Ints(v.Indices)
	var norm float64
	for _, idx := range v.Indices {
		w := counts[idx] * m.IDF[idx]
		v.Values = append(v.Values, w)
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range v.Values {
			v.Values[i] /= norm
		}
	}
	return v
}

func (m *Model) validate() error {
	if m.Version != formatVersion || m.K <= 0 || m.NGramMin <= 0 || m.NGramMax < m.NGramMin {
		return ErrBadFormat
	}
	if len(m.Vectors) != len(m.Labels) || len(m.IDF) != len(m.Vocabulary) {
		return ErrBadFormat
	}
	for _, v := range m.Vectors {
		if len(v.Indices) != len(v.Values) {
			return ErrBadFormat
		}
		for _, idx := range v.Indices {
			if idx < 0 || idx >= len(m.IDF) {
				return ErrBadFormat
			}
		}
	}
	return nil
}

// Predict returns the majority answer among the K nearest training examples.
// Only examples sharing at least one feature with the query vote. Ties go to
// the label of the nearest neighbour.
func (m *Model) Predict(text string) (string, error) {
	if len(m.Vectors) == 0 {
		return "", ErrNoModel
	}
	q := m.Transform(text)
	if len(q.Indices) == 0 {
		return "", ErrNoMatch
	}
	type neighbour struct {
		idx int
		sim float64
	}
	ns := make([]neighbour, 0, len(m.Vectors))
	for i, v := range m.Vectors {
		if sim := q.dot(v); sim > 0 {
			ns = append(ns, neighbour{idx: i, sim: sim})
		}
	}
	if len(ns) == 0 {
		return "", ErrNoMatch
	}
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].sim > ns[j].sim })
	k := m.K
	if k > len(ns) {
		k = len(ns)
	}
	votes := map[string]int{}
	best, bestVotes := "", 0
	for _, n := range ns[:k] {
		label := m.Labels[n.idx]
		votes[label]++
		if votes[label] > bestVotes {
			best, bestVotes = label, votes[label]
		}
	}
	return best, nil
}
