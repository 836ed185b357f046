// Package pacing turns a finished reply into display segments with a
// simulated typing delay each.
package pacing

import (
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/set-night/fitcoach/internal/config"
	"github.com/set-night/fitcoach/internal/domain"
)

// Source yields values in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

type Options struct {
	WordsPerMinute   float64
	MinDelay         time.Duration
	MaxDelay         time.Duration
	ListThreshold    int
	SplitProbability float64
	PreparingText    string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		WordsPerMinute:   cfg.WordsPerMinute,
		MinDelay:         cfg.MinSegmentDelay,
		MaxDelay:         cfg.MaxSegmentDelay,
		ListThreshold:    cfg.ListBlockThreshold,
		SplitProbability: cfg.SplitProbability,
		PreparingText:    config.PreparingPlanText,
	}
}

type Engine struct {
	opts Options

	mu  sync.Mutex
	rnd Source
}

// New creates an engine. A nil source uses the process-wide generator.
func New(opts Options, rnd Source) *Engine {
	if rnd == nil {
		rnd = globalSource{}
	}
	if opts.WordsPerMinute <= 0 {
		opts.WordsPerMinute = 60
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 8 * time.Second
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.PreparingText == "" {
		opts.PreparingText = config.PreparingPlanText
	}
	return &Engine{opts: opts, rnd: rnd}
}

// Segment splits text into ordered segments. List blocks stay whole and
// paragraphs always start a new segment; sentence boundaries inside a
// paragraph are cut with the configured probability.
func (e *Engine) Segment(text string) []domain.PacedMessageSegment {
	var texts []string
	for _, b := range splitBlocks(text) {
		if b.list {
			if b.items > e.opts.ListThreshold {
				texts = append(texts, e.opts.PreparingText)
			}
			texts = append(texts, strings.Join(b.lines, "\n"))
			continue
		}
		texts = append(texts, e.splitProse(strings.Join(b.lines, " "))...)
	}

	segments := make([]domain.PacedMessageSegment, 0, len(texts))
	for i, t := range texts {
		segments = append(segments, domain.PacedMessageSegment{
			Index: i,
			Text:  t,
			Delay: e.Delay(t),
		})
	}
	return segments
}

// Delay is the typing time for text at the configured speed, clamped to
// the configured bounds.
func (e *Engine) Delay(text string) time.Duration {
	words := len(strings.Fields(text))
	d := time.Duration(math.Round(float64(words) * float64(time.Minute) / e.opts.WordsPerMinute))
	if d < e.opts.MinDelay {
		d = e.opts.MinDelay
	}
	if d > e.opts.MaxDelay {
		d = e.opts.MaxDelay
	}
	return d
}

func (e *Engine) splitProse(paragraph string) []string {
	sentences := splitSentences(paragraph)
	if len(sentences) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var out []string
	current := sentences[0]
	for _, s := range sentences[1:] {
		if e.rnd.Float64() < e.opts.SplitProbability {
			out = append(out, current)
			current = s
			continue
		}
		current += " " + s
	}
	return append(out, current)
}
