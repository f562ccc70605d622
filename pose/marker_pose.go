package pose

import (
	"fmt"

	"github.com/golang/geo/r3"

	"go.viam.com/camcal/spatialmath"
)

// MarkerPose is the estimated rigid transform from marker coordinates to camera
// coordinates. Euler and Distance are derived from the rotation and translation at
// construction and carry no independent state.
type MarkerPose struct {
	ID          int
	Translation r3.Vector
	Rotation    r3.Vector // axis-angle, radians
	Euler       *spatialmath.EulerAngles
	Distance    float64
}

func newMarkerPose(id int, rot *spatialmath.RotationMatrix, trans r3.Vector, extractor *spatialmath.EulerExtractor) *MarkerPose {
	return &MarkerPose{
		ID:          id,
		Translation: trans,
		Rotation:    rot.AxisAngle(),
		Euler:       extractor.Euler(rot),
		Distance:    trans.Norm(),
	}
}

// String is the one-line per-frame summary: ID, camera-space position in meters,
// distance and roll/pitch/yaw in degrees.
func (mp *MarkerPose) String() string {
	return fmt.Sprintf("marker %d: pos (%.3f, %.3f, %.3f) m, dist %.3f m, rpy (%.1f, %.1f, %.1f) deg",
		mp.ID,
		mp.Translation.X, mp.Translation.Y, mp.Translation.Z,
		mp.Distance,
		mp.Euler.RollDegrees(), mp.Euler.PitchDegrees(), mp.Euler.YawDegrees(),
	)
}

// DetailedString is the multi-line breakdown printed on request: position, distance,
// Euler angles and the rotation vector.
func (mp *MarkerPose) DetailedString() string {
	return fmt.Sprintf(
		"marker %d\n"+
			"  position (m):   x=%.4f y=%.4f z=%.4f\n"+
			"  distance (m):   %.4f\n"+
			"  euler (deg):    roll=%.2f pitch=%.2f yaw=%.2f\n"+
			"  rotation (rad): (%.4f, %.4f, %.4f)",
		mp.ID,
		mp.Translation.X, mp.Translation.Y, mp.Translation.Z,
		mp.Distance,
		mp.Euler.RollDegrees(), mp.Euler.PitchDegrees(), mp.Euler.YawDegrees(),
		mp.Rotation.X, mp.Rotation.Y, mp.Rotation.Z,
	)
}
