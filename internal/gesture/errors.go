package gesture

import (
	"errors"
	"fmt"

	"github.com/ayusman/handsign/internal/detector"
)

// ErrMissingLandmark is matched by every error reporting that a point the
// classifier needs is absent from the pose or undefined in the schema.
var ErrMissingLandmark = errors.New("missing landmark")

// MissingLandmarkError names the absent point. Index is -1 when the schema
// does not define the point at all.
type MissingLandmarkError struct {
	Point  detector.Point
	Index  int
	Schema string
}

func (e *MissingLandmarkError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("missing landmark %s: not defined by schema %s", e.Point, e.Schema)
	}
	return fmt.Sprintf("missing landmark %s: index %d absent from pose", e.Point, e.Index)
}

// Is makes errors.Is(err, ErrMissingLandmark) true.
func (e *MissingLandmarkError) Is(target error) bool {
	return target == ErrMissingLandmark
}
