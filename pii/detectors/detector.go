package pii

import (
	"context"
	"fmt"
)

const (
	DetectorNameRegex = "regex_detector"
)

type Detector interface {
	GetName() string
	Detect(ctx context.Context, input DetectorInput) (DetectorOutput, error)
	Close() error
}

type NewDetectorFunc func(config map[string]interface{}) (Detector, error)

var detectorFactories = make(map[string]NewDetectorFunc)

func RegisterDetectorFactory(name string, factory NewDetectorFunc) {
	detectorFactories[name] = factory
}

func NewDetector(name string, config map[string]interface{}) (Detector, error) {
	factory, ok := detectorFactories[name]
	if !ok {
		return nil, fmt.Errorf("detector factory not found for name: %s", name)
	}
	return factory(config)
}

func init() {
	RegisterDetectorFactory(DetectorNameRegex, func(config map[string]interface{}) (Detector, error) {
		patterns := PIIPatterns
		if custom, ok := config["patterns"].(map[string]string); ok && len(custom) > 0 {
			patterns = custom
		}
		detector, err := NewRegexDetector(patterns)
		if err != nil {
			return nil, err
		}
		return detector, nil
	})
}

func CloseDetector(detector Detector) error {
	return detector.Close()
}
