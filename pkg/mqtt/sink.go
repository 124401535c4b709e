package mqtt

import (
	"encoding/json"

	"github.com/grasplab/go-gripper/pkg/telemetry"
)

// JointStatesTopic carries the periodic joint state samples. The
// message is retained so late subscribers get the last sample
// immediately.
const JointStatesTopic = "gripper/joint_states"

// Sink publishes telemetry samples to the broker.
type Sink struct {
	broker *Broker
}

var _ telemetry.Sink = (*Sink)(nil)

// Sink returns a telemetry sink backed by this broker.
func (b *Broker) Sink() *Sink {
	return &Sink{broker: b}
}

// PublishSample implements telemetry.Sink.
func (s *Sink) PublishSample(sample telemetry.JointStateSample) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	return s.broker.Publish(JointStatesTopic, payload)
}
