// Package pipeline runs one subtitle file through tokenizing, merging,
// translation, splitting and timing adjustment.
package pipeline

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/dimkroon/translate-subs/internal/config"
	"github.com/dimkroon/translate-subs/internal/markup"
	"github.com/dimkroon/translate-subs/internal/merge"
	"github.com/dimkroon/translate-subs/internal/split"
	"github.com/dimkroon/translate-subs/internal/subtitle"
	"github.com/dimkroon/translate-subs/internal/timing"
	"github.com/dimkroon/translate-subs/internal/translator"
	"github.com/dimkroon/translate-subs/pkg/log"
	"golang.org/x/text/language"
)

// UnitTranslator resolves every unit, in input order.
// *translator.Dispatcher implements it.
type UnitTranslator interface {
	TranslateUnits(ctx context.Context, units []merge.Unit, target language.Tag) []translator.Result
}

// Result is the output of one run.
type Result struct {
	Cues []subtitle.Cue
	// Units reference cues by their position in the input slice.
	Units []merge.Unit
	// Failed holds the IDs of units shown in their source language.
	Failed []int
	// Dropped holds the Cue.Index of cues left without text by filtering.
	Dropped []int
}

// Snapshot is the cue window of the most recent run.
type Snapshot struct {
	Taken    time.Time
	Settings config.Settings
	Source   []subtitle.Cue
	Output   []subtitle.Cue
}

type Pipeline struct {
	settings   config.Settings
	translator UnitTranslator
	merger     *merge.Merger
	last       atomic.Pointer[Snapshot]
}

func New(settings config.Settings, t UnitTranslator) *Pipeline {
	return &Pipeline{
		settings:   settings,
		translator: t,
		merger:     merge.New(),
	}
}

// Snapshot returns the last run's window, or nil before the first run.
func (p *Pipeline) Snapshot() *Snapshot {
	return p.last.Load()
}

// Run translates cues. A unit whose translation fails keeps its filtered
// source text; only invalid settings fail the run. When ctx is cancelled
// the cues of units resolved before the first abandoned unit are returned
// together with ctx.Err().
func (p *Pipeline) Run(ctx context.Context, cues []subtitle.Cue) (*Result, error) {
	if err := p.settings.Validate(); err != nil {
		return nil, err
	}
	snap := Snapshot{Taken: time.Now(), Settings: p.settings, Source: slices.Clone(cues)}
	p.last.Store(&snap)

	tokens, dropped := p.tokenize(cues)
	units := p.merger.Merge(tokens)
	res := &Result{Units: units, Dropped: dropped}

	// display time does not depend on the text, so every kept cue is timed
	// against its real successor even when the run is cut short
	kept := make([]subtitle.Cue, len(tokens))
	byPos := make(map[int]int, len(tokens))
	for i, tok := range tokens {
		kept[i] = cues[tok.CueIndex]
		byPos[tok.CueIndex] = i
	}
	kept = timing.AdjustAll(kept, p.settings.MinDisplay())

	log.Debug("Pipeline: %d cues, %d kept, %d units", len(cues), len(tokens), len(units))
	results := p.translator.TranslateUnits(ctx, units, p.settings.TargetLanguage)

	var runErr error
	for i, unit := range units {
		r := results[i]
		if r.Err != nil && ctx.Err() != nil && errors.Is(r.Err, ctx.Err()) {
			runErr = ctx.Err()
			break
		}

		texts := make([]string, len(unit.MemberCues))
		if r.Err != nil {
			log.Warn("Unit %d kept in source language: %v", unit.ID, r.Err)
			res.Failed = append(res.Failed, unit.ID)
			for m, pos := range unit.MemberCues {
				tok := tokens[byPos[pos]]
				texts[m] = markup.Render(tok.Plain, tok.Spans, p.settings.FilterColour)
			}
		} else {
			for m, part := range split.Split(r.Translated(), unit) {
				texts[m] = markup.Render(part.Text, part.Spans, p.settings.FilterColour)
			}
		}

		for m, pos := range unit.MemberCues {
			c := kept[byPos[pos]]
			c.Text = texts[m]
			res.Cues = append(res.Cues, c)
		}
	}

	done := snap
	done.Output = res.Cues
	p.last.Store(&done)

	log.Info("Pipeline: %d cues out, %d units failed, %d cues dropped", len(res.Cues), len(res.Failed), len(res.Dropped))
	return res, runErr
}

// tokenize filters every cue and returns the ones with text left, indexed
// by input position, and the Cue.Index of the others.
func (p *Pipeline) tokenize(cues []subtitle.Cue) ([]markup.TokenizedCue, []int) {
	var (
		tokens  []markup.TokenizedCue
		dropped []int
		speaker string
	)
	for pos, c := range cues {
		tok := markup.Tokenize(pos, c.Text, p.settings)
		if tok.Empty() {
			dropped = append(dropped, c.Index)
			continue
		}
		if c.SpeakerHint != "" {
			if speaker != "" && c.SpeakerHint != speaker {
				tok.SpeakerChange = true
			}
			speaker = c.SpeakerHint
		}
		tokens = append(tokens, tok)
	}
	return tokens, dropped
}
