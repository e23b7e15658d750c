package ingest

import (
	"context"
	"fmt"
	"slices"

	"github.com/hupe1980/ringvec/distance"
)

// Alert reports an ingested line that matched a watch query.
type Alert struct {
	Watch     string
	ID        string
	Text      string
	Score     float32
	Threshold float32
}

func (a Alert) String() string {
	return fmt.Sprintf("[%s] score=%.4f threshold=%.2f id=%s %s", a.Watch, a.Score, a.Threshold, a.ID, a.Text)
}

type watch struct {
	name      string
	vector    []float32
	threshold float32
}

// AddWatch registers a standing query. Every line ingested afterwards whose
// cosine similarity to text reaches threshold raises an Alert.
func (p *Pipeline) AddWatch(ctx context.Context, name, text string, threshold float32) error {
	if threshold < -1 || threshold > 1 {
		return fmt.Errorf("ingest: watch %q: threshold %v outside [-1, 1]", name, threshold)
	}
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("ingest: watch %q: %w", name, err)
	}
	if name == "" {
		name = text
	}

	p.watchMu.Lock()
	defer p.watchMu.Unlock()

	next := append(slices.Clone(*p.watches.Load()), &watch{
		name:      name,
		vector:    vec,
		threshold: threshold,
	})
	p.watches.Store(&next)

	p.logger.Info("watch added", "watch", name, "threshold", threshold)
	return nil
}

// Watches returns the names of the registered watch queries.
func (p *Pipeline) Watches() []string {
	ws := *p.watches.Load()
	names := make([]string, len(ws))
	for i, w := range ws {
		names[i] = w.name
	}
	return names
}

func (p *Pipeline) checkWatches(id, text string, vec []float32) {
	for _, w := range *p.watches.Load() {
		score := distance.Cosine(w.vector, vec)
		if score < w.threshold {
			continue
		}
		p.alerts.Add(1)
		alert := Alert{Watch: w.name, ID: id, Text: text, Score: score, Threshold: w.threshold}
		p.logger.Debug("watch matched", "watch", w.name, "id", id, "score", score)
		if p.opts.OnAlert != nil {
			p.opts.OnAlert(alert)
		}
	}
}
