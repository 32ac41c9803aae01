package detector

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownSchema is returned when a schema version is not registered.
var ErrUnknownSchema = errors.New("unknown landmark schema")

// Point names an anatomical point of the hand.
type Point string

// Named hand points. MCP is the knuckle at the base of a finger, PIP and DIP
// the middle joints, IP the thumb's middle joint and CMC the thumb's base.
const (
	PointWrist     Point = "wrist"
	PointThumbCMC  Point = "thumb_cmc"
	PointThumbMCP  Point = "thumb_mcp"
	PointThumbIP   Point = "thumb_ip"
	PointThumbTip  Point = "thumb_tip"
	PointIndexMCP  Point = "index_mcp"
	PointIndexPIP  Point = "index_pip"
	PointIndexDIP  Point = "index_dip"
	PointIndexTip  Point = "index_tip"
	PointMiddleMCP Point = "middle_mcp"
	PointMiddlePIP Point = "middle_pip"
	PointMiddleDIP Point = "middle_dip"
	PointMiddleTip Point = "middle_tip"
	PointRingMCP   Point = "ring_mcp"
	PointRingPIP   Point = "ring_pip"
	PointRingDIP   Point = "ring_dip"
	PointRingTip   Point = "ring_tip"
	PointPinkyMCP  Point = "pinky_mcp"
	PointPinkyPIP  Point = "pinky_pip"
	PointPinkyDIP  Point = "pinky_dip"
	PointPinkyTip  Point = "pinky_tip"
)

// LandmarkSchema maps named points to indices into a HandPose.
// The zero value maps nothing.
type LandmarkSchema struct {
	version string
	indices map[Point]int
}

// NewSchema builds a schema. Indices must be non-negative.
func NewSchema(version string, indices map[Point]int) (LandmarkSchema, error) {
	if version == "" {
		return LandmarkSchema{}, errors.New("schema version is required")
	}

	copied := make(map[Point]int, len(indices))
	for p, idx := range indices {
		if idx < 0 {
			return LandmarkSchema{}, fmt.Errorf("schema %s: negative index %d for %s", version, idx, p)
		}
		copied[p] = idx
	}

	return LandmarkSchema{version: version, indices: copied}, nil
}

// Version returns the schema's version string.
func (s LandmarkSchema) Version() string {
	return s.version
}

// Index returns the pose index assigned to point.
func (s LandmarkSchema) Index(p Point) (int, bool) {
	idx, ok := s.indices[p]
	return idx, ok
}

// Points returns the points the schema defines, ordered by index.
func (s LandmarkSchema) Points() []Point {
	points := make([]Point, 0, len(s.indices))
	for p := range s.indices {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool {
		return s.indices[points[i]] < s.indices[points[j]]
	})
	return points
}

// Size returns one past the largest index in the schema.
func (s LandmarkSchema) Size() int {
	n := 0
	for _, idx := range s.indices {
		if idx+1 > n {
			n = idx + 1
		}
	}
	return n
}

// DefaultSchemaVersion identifies the 21 point MediaPipe hand model.
const DefaultSchemaVersion = "mediapipe-hands/v1"

// MediaPipeSchema is the schema of the MediaPipe hand landmarker.
var MediaPipeSchema = LandmarkSchema{
	version: DefaultSchemaVersion,
	indices: map[Point]int{
		PointWrist:     Wrist,
		PointThumbCMC:  ThumbCMC,
		PointThumbMCP:  ThumbMCP,
		PointThumbIP:   ThumbIP,
		PointThumbTip:  ThumbTip,
		PointIndexMCP:  IndexMCP,
		PointIndexPIP:  IndexPIP,
		PointIndexDIP:  IndexDIP,
		PointIndexTip:  IndexTip,
		PointMiddleMCP: MiddleMCP,
		PointMiddlePIP: MiddlePIP,
		PointMiddleDIP: MiddleDIP,
		PointMiddleTip: MiddleTip,
		PointRingMCP:   RingMCP,
		PointRingPIP:   RingPIP,
		PointRingDIP:   RingDIP,
		PointRingTip:   RingTip,
		PointPinkyMCP:  PinkyMCP,
		PointPinkyPIP:  PinkyPIP,
		PointPinkyDIP:  PinkyDIP,
		PointPinkyTip:  PinkyTip,
	},
}

// Connections lists the bone segments drawn between points when rendering a
// hand skeleton.
var Connections = [][2]Point{
	{PointWrist, PointThumbCMC}, {PointThumbCMC, PointThumbMCP},
	{PointThumbMCP, PointThumbIP}, {PointThumbIP, PointThumbTip},
	{PointWrist, PointIndexMCP}, {PointIndexMCP, PointIndexPIP},
	{PointIndexPIP, PointIndexDIP}, {PointIndexDIP, PointIndexTip},
	{PointIndexMCP, PointMiddleMCP}, {PointMiddleMCP, PointMiddlePIP},
	{PointMiddlePIP, PointMiddleDIP}, {PointMiddleDIP, PointMiddleTip},
	{PointMiddleMCP, PointRingMCP}, {PointRingMCP, PointRingPIP},
	{PointRingPIP, PointRingDIP}, {PointRingDIP, PointRingTip},
	{PointRingMCP, PointPinkyMCP}, {PointWrist, PointPinkyMCP},
	{PointPinkyMCP, PointPinkyPIP}, {PointPinkyPIP, PointPinkyDIP},
	{PointPinkyDIP, PointPinkyTip},
}

var (
	schemasMu sync.RWMutex
	schemas   = map[string]LandmarkSchema{
		DefaultSchemaVersion: MediaPipeSchema,
	}
)

// RegisterSchema makes a schema available to LookupSchema.
// Registering an existing version replaces it.
func RegisterSchema(s LandmarkSchema) error {
	if s.version == "" {
		return errors.New("schema version is required")
	}

	schemasMu.Lock()
	defer schemasMu.Unlock()
	schemas[s.version] = s
	return nil
}

// LookupSchema returns the registered schema for version.
// An empty version selects the MediaPipe schema.
func LookupSchema(version string) (LandmarkSchema, error) {
	if version == "" {
		return MediaPipeSchema, nil
	}

	schemasMu.RLock()
	defer schemasMu.RUnlock()

	s, ok := schemas[version]
	if !ok {
		return LandmarkSchema{}, fmt.Errorf("%w: %q", ErrUnknownSchema, version)
	}
	return s, nil
}

// SchemaVersions lists registered schema versions in sorted order.
func SchemaVersions() []string {
	schemasMu.RLock()
	defer schemasMu.RUnlock()

	versions := make([]string, 0, len(schemas))
	for v := range schemas {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}
