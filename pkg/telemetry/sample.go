package telemetry

import (
	"time"

	"github.com/grasplab/go-gripper/pkg/gripper"
)

// JointStateSample is one published telemetry sample. The gripper is
// reported as two prismatic finger joints, each at half the opening
// width; the two positions always sum to the sampled width.
type JointStateSample struct {
	Timestamp time.Time  `json:"timestamp"`
	Names     [2]string  `json:"name"`
	Positions [2]float64 `json:"position"`
	Velocity  [2]float64 `json:"velocity"`
	Effort    [2]float64 `json:"effort"`
}

// NewJointStateSample derives a sample from a state snapshot.
// Velocities and efforts are not reported by the device and publish
// as zero.
func NewJointStateSample(names [2]string, st gripper.State, now time.Time) JointStateSample {
	half := st.Width * 0.5
	return JointStateSample{
		Timestamp: now,
		Names:     names,
		Positions: [2]float64{half, half},
	}
}
