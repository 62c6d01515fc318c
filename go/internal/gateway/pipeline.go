package gateway

import (
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/punchdeck/go/internal/punch"
	"github.com/mcdev12/punchdeck/go/internal/sensor"
)

// sampleSink receives what a pipeline produces
type sampleSink interface {
	observeOrientation(o sensor.Orientation)
	publishSample(sample sensor.Sample)
	emitPunch(event punch.Event)
}

// Pipeline processes the raw frames of one sensor source
type Pipeline struct {
	source     string
	store      *punch.Store
	normalizer sensor.Normalizer
	clock      clockwork.Clock
	sink       sampleSink

	classifier *punch.Classifier
	version    uint64
}

// NewPipeline creates a pipeline for one data-input connection or MQTT topic
func NewPipeline(source string, store *punch.Store, normalizer sensor.Normalizer, clock clockwork.Clock, sink sampleSink) *Pipeline {
	return &Pipeline{
		source:     source,
		store:      store,
		normalizer: normalizer,
		clock:      clock,
		sink:       sink,
		classifier: punch.NewClassifier(store, clock),
		version:    store.Version(),
	}
}

// Process validates one frame, mirrors it to the debug channel and classifies it.
// Frames with an unknown sample type are dropped without error.
func (p *Pipeline) Process(data []byte) error {
	sample, err := sensor.Parse(data)
	if err != nil {
		if errors.Is(err, sensor.ErrUnknownType) {
			log.Debug().Str("source", p.source).Msg("dropping sample of unknown type")
			return nil
		}
		return err
	}

	if sample.Type == sensor.KindOrientation {
		p.sink.observeOrientation(*sample.Orientation)

		if p.normalizer != nil && p.normalizer.IsCalibrated() && !sample.Orientation.Absolute {
			normalized := p.normalizer.Normalize(*sample.Orientation)
			sample.Orientation = &normalized
		}
	}

	p.sink.publishSample(sample)

	// a config update starts a fresh classifier with a cleared cooldown
	if v := p.store.Version(); v != p.version {
		p.classifier = punch.NewClassifier(p.store, p.clock)
		p.version = v
	}

	if event, ok := p.classifier.Classify(sample); ok {
		p.sink.emitPunch(event)
	}
	return nil
}
