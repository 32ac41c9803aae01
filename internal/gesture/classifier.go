package gesture

import "github.com/ayusman/handsign/internal/detector"

// Rule pairs a predicate over Features with the gesture it yields.
type Rule struct {
	Name    string
	Gesture Gesture
	Match   func(Features) bool
}

// rules is evaluated in order and the first match wins. Several predicates
// overlap (Fist/ThumbsUp differ only in the thumb, Pinky can also satisfy
// the pinch test), so the order is part of the behavior.
var rules = []Rule{
	{
		Name:    "all fingers and thumb extended",
		Gesture: OpenPalm,
		Match:   func(f Features) bool { return f.AllFingers() && f.Thumb },
	},
	{
		Name:    "no finger extended, thumb tucked",
		Gesture: Fist,
		Match:   func(f Features) bool { return f.NoFingers() && !f.Thumb },
	},
	{
		Name:    "thumb extended, no finger extended",
		Gesture: ThumbsUp,
		Match:   func(f Features) bool { return f.Thumb && f.NoFingers() },
	},
	{
		Name:    "index and middle extended only",
		Gesture: Peace,
		Match:   func(f Features) bool { return f.Index && f.Middle && !f.Ring && !f.Pinky },
	},
	{
		Name:    "pinky extended only, thumb tucked",
		Gesture: Pinky,
		Match:   func(f Features) bool { return !f.Index && !f.Middle && !f.Ring && f.Pinky && !f.Thumb },
	},
	{
		Name:    "thumb and index tips touching",
		Gesture: OK,
		Match:   func(f Features) bool { return f.Pinch },
	},
	{
		Name:    "index and pinky extended",
		Gesture: RockNRoll,
		Match:   func(f Features) bool { return f.Index && !f.Middle && !f.Ring && f.Pinky },
	},
	{
		Name:    "index and thumb extended",
		Gesture: LShape,
		Match:   func(f Features) bool { return f.Index && !f.Middle && !f.Ring && !f.Pinky && f.Thumb },
	},
	{
		Name:    "index extended only, thumb tucked",
		Gesture: Pointing,
		Match:   func(f Features) bool { return f.Index && !f.Middle && !f.Ring && !f.Pinky && !f.Thumb },
	},
}

// Rules returns a copy of the ordered rule table. Unknown is implied after
// the last rule.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Gesture evaluates the rule table against f.
func (f Features) Gesture() Gesture {
	for _, r := range rules {
		if r.Match(f) {
			return r.Gesture
		}
	}
	return Unknown
}

// Classify labels a single hand pose. The only failure is a required
// landmark missing from pose or schema, reported as *MissingLandmarkError.
func Classify(pose detector.HandPose, schema detector.LandmarkSchema) (Gesture, error) {
	f, err := Extract(pose, schema)
	if err != nil {
		return Unknown, err
	}
	return f.Gesture(), nil
}

// Classifier binds a schema so callers that classify many poses need not
// pass it each time. The zero value uses the MediaPipe schema.
type Classifier struct {
	schema detector.LandmarkSchema
	set    bool
}

// NewClassifier returns a Classifier for schema.
func NewClassifier(schema detector.LandmarkSchema) Classifier {
	return Classifier{schema: schema, set: true}
}

// Schema returns the bound schema.
func (c Classifier) Schema() detector.LandmarkSchema {
	if !c.set {
		return detector.MediaPipeSchema
	}
	return c.schema
}

// Result is a classification together with the features that produced it.
type Result struct {
	Gesture  Gesture  `json:"gesture"`
	Label    string   `json:"label"`
	Features Features `json:"features"`
}

// Classify labels pose and returns the features used.
func (c Classifier) Classify(pose detector.HandPose) (Result, error) {
	f, err := Extract(pose, c.Schema())
	if err != nil {
		return Result{Gesture: Unknown, Label: Unknown.String()}, err
	}
	g := f.Gesture()
	return Result{Gesture: g, Label: g.String(), Features: f}, nil
}
