package sim

import (
	"fmt"
	"math"
)

// SegmentKind classifies track segments.
type SegmentKind int

const (
	Straight SegmentKind = iota
	LeftCorner
	RightCorner
	Chicane
)

// String returns the lowercase segment kind name.
func (k SegmentKind) String() string {
	switch k {
	case Straight:
		return "straight"
	case LeftCorner:
		return "left_corner"
	case RightCorner:
		return "right_corner"
	case Chicane:
		return "chicane"
	default:
		return fmt.Sprintf("segment(%d)", int(k))
	}
}

// Segment is a single piece of the circuit. Radius is +Inf on straights.
type Segment struct {
	Kind            SegmentKind
	Length          float64 // m
	Radius          float64 // m, +Inf for straights
	BankingDeg      float64 // degrees, positive = banked into the corner
	ElevationChange float64 // m over the segment, positive = uphill
	GripLevel       float64 // base grip multiplier (~0.9-1.1)
	BoostZone       bool    // boost activation allowed here
}

// IsStraight reports whether the segment has no curvature.
func (s *Segment) IsStraight() bool {
	return s.Kind == Straight
}

// Track is immutable circuit geometry. All methods are pure and safe for
// concurrent use.
type Track struct {
	Name     string
	segments []Segment
	starts   []float64 // cumulative start offset of each segment
	total    float64

	// entry pose of each segment for the 2D geometry walk
	entryX, entryY, entryHeading []float64

	boostZones [][2]float64 // [start, end) lap-distance intervals
}

// NewTrack builds a Track from ordered segments. A malformed corner
// (non-positive radius or length) degrades to a straight rather than
// erroring: one bad segment must not abort the race. An empty segment list
// is the only construction error.
func NewTrack(name string, segments []Segment) (*Track, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("track %q has no segments", name)
	}

	t := &Track{Name: name, segments: make([]Segment, len(segments))}
	copy(t.segments, segments)

	for i := range t.segments {
		seg := &t.segments[i]
		if seg.Length <= 0 {
			seg.Length = 1.0
			seg.Kind = Straight
			seg.Radius = math.Inf(1)
		}
		if !seg.IsStraight() && (seg.Radius <= 0 || math.IsInf(seg.Radius, 1)) {
			seg.Kind = Straight
			seg.Radius = math.Inf(1)
		}
		if seg.IsStraight() {
			seg.Radius = math.Inf(1)
		}
		if seg.GripLevel <= 0 {
			seg.GripLevel = 1.0
		}
	}

	t.starts = make([]float64, len(t.segments))
	t.entryX = make([]float64, len(t.segments))
	t.entryY = make([]float64, len(t.segments))
	t.entryHeading = make([]float64, len(t.segments))

	cum := 0.0
	x, y, heading := 0.0, 0.0, 0.0
	for i := range t.segments {
		seg := &t.segments[i]
		t.starts[i] = cum
		t.entryX[i], t.entryY[i], t.entryHeading[i] = x, y, heading
		if seg.BoostZone {
			t.boostZones = append(t.boostZones, [2]float64{cum, cum + seg.Length})
		}
		x, y, heading = advancePose(seg, seg.Length, x, y, heading)
		cum += seg.Length
	}
	t.total = cum
	return t, nil
}

// Length returns the total lap length in meters.
func (t *Track) Length() float64 { return t.total }

// Segments returns the normalized segment list.
func (t *Track) Segments() []Segment { return t.segments }

// BoostZones returns the [start, end) boost activation intervals.
func (t *Track) BoostZones() [][2]float64 { return t.boostZones }

// SegmentAt maps a lap distance to its active segment and the local offset
// within it. The distance is taken modulo lap length, so wrapping is
// implicit and the lookup never fails.
func (t *Track) SegmentAt(distance float64) (*Segment, float64) {
	i, local := t.segmentIndexAt(distance)
	return &t.segments[i], local
}

func (t *Track) segmentIndexAt(distance float64) (int, float64) {
	d := math.Mod(distance, t.total)
	if d < 0 {
		d += t.total
	}
	// Binary search over start offsets.
	lo, hi := 0, len(t.segments)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if t.starts[mid] <= d {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, d - t.starts[lo]
}

// InBoostZone reports whether the lap distance lies in a boost zone.
func (t *Track) InBoostZone(distance float64) bool {
	d := math.Mod(distance, t.total)
	if d < 0 {
		d += t.total
	}
	for _, z := range t.boostZones {
		if d >= z[0] && d < z[1] {
			return true
		}
	}
	return false
}

// Position converts a lap distance into 2D circuit coordinates using the
// segment-local geometry: straights advance along the heading, corners
// follow the arc from the circle-center construction, chicanes add a
// sinusoidal lateral offset.
func (t *Track) Position(lapDistance float64) (float64, float64) {
	i, local := t.segmentIndexAt(lapDistance)
	x, y, _ := advancePose(&t.segments[i], local, t.entryX[i], t.entryY[i], t.entryHeading[i])
	return x, y
}

// advancePose walks `local` meters into seg from the given entry pose and
// returns the resulting position and heading.
func advancePose(seg *Segment, local, x, y, heading float64) (float64, float64, float64) {
	switch seg.Kind {
	case LeftCorner, RightCorner:
		if seg.Radius <= 1.0 || math.IsInf(seg.Radius, 1) {
			// Degenerate arc: advance straight.
			return x + local*math.Cos(heading), y + local*math.Sin(heading), heading
		}
		dir := 1.0
		if seg.Kind == RightCorner {
			dir = -1.0
		}
		sweep := (local / seg.Radius) * dir
		centerAngle := heading + (math.Pi/2)*dir
		cx := x + seg.Radius*math.Cos(centerAngle)
		cy := y + seg.Radius*math.Sin(centerAngle)
		fromCenter := centerAngle + math.Pi + sweep
		return cx + seg.Radius*math.Cos(fromCenter),
			cy + seg.Radius*math.Sin(fromCenter),
			heading + sweep
	case Chicane:
		lateral := chicaneLateral(local, seg.Length)
		return x + local*math.Cos(heading) - lateral*math.Sin(heading),
			y + local*math.Sin(heading) + lateral*math.Cos(heading),
			heading
	default:
		return x + local*math.Cos(heading), y + local*math.Sin(heading), heading
	}
}

// chicaneLateral is the sinusoidal lateral offset inside a chicane. It is
// zero at both segment boundaries so the centerline stays continuous.
func chicaneLateral(local, length float64) float64 {
	if length <= 0 {
		return 0
	}
	return 10.0 * math.Sin(2.0*math.Pi*local/length)
}

// MaxCornerSpeed computes the maximum safe corner speed from mechanical
// grip, banking and speed-dependent downforce:
//
//	v = sqrt(μ·g·r·bankingFactor + downforceTerm)
//
// The downforce term depends on speed, so the solution is refined over two
// fixed-point iterations. Straights (infinite radius) return the global top
// speed. Pure; safe for concurrent callers.
func MaxCornerSpeed(phy *PhysicsConfig, radius, grip, bankingDeg, downforceLevel float64) float64 {
	if math.IsInf(radius, 1) || radius <= 0 {
		return phy.MaxSpeed
	}

	bankingFactor := 1.0
	if bankingDeg > 0 {
		bankingFactor = 1.0 + math.Tan(bankingDeg*math.Pi/180.0)
	}

	mechanical := grip * phy.Gravity * radius * bankingFactor
	v := math.Sqrt(mechanical)

	cl := phy.DownforceCoeff * downforceLevel
	for iter := 0; iter < 2; iter++ {
		downforce := 0.5 * cl * phy.AirDensity * phy.FrontalArea * v * v
		lateral := (downforce / phy.TotalMass) * grip * radius
		v = math.Sqrt(mechanical + lateral)
	}
	return math.Min(v, phy.MaxSpeed)
}

// cornerLimit is the instantaneous traction-loss clamp applied at tick end
// inside a corner: sqrt(μ·g·r) with a 10% margin for banking and downforce.
func cornerLimit(phy *PhysicsConfig, mu, radius float64) float64 {
	if math.IsInf(radius, 1) || radius <= 0 {
		return phy.MaxSpeed
	}
	return math.Sqrt(mu * phy.Gravity * radius * 1.1)
}

// DefaultTrack builds the built-in 2.98 km street circuit: 15 corners, two
// chicane complexes and two boost zones.
func DefaultTrack() *Track {
	inf := math.Inf(1)
	segs := []Segment{
		// Sector 1
		{Kind: Straight, Length: 280, Radius: inf, GripLevel: 1.00},
		{Kind: LeftCorner, Length: 55, Radius: 40, GripLevel: 0.93},
		{Kind: Straight, Length: 90, Radius: inf, GripLevel: 0.98},
		{Kind: LeftCorner, Length: 50, Radius: 35, GripLevel: 0.91},
		{Kind: Straight, Length: 110, Radius: inf, GripLevel: 0.97},
		{Kind: RightCorner, Length: 65, Radius: 42, BankingDeg: 2, GripLevel: 0.93},
		{Kind: Straight, Length: 70, Radius: inf, GripLevel: 0.96},
		{Kind: LeftCorner, Length: 60, Radius: 38, GripLevel: 0.92},
		{Kind: Straight, Length: 85, Radius: inf, GripLevel: 0.97},
		{Kind: RightCorner, Length: 55, Radius: 36, GripLevel: 0.91},

		// Sector 2
		{Kind: Straight, Length: 130, Radius: inf, GripLevel: 0.98},
		{Kind: LeftCorner, Length: 70, Radius: 45, BankingDeg: 3, GripLevel: 0.94, BoostZone: true},
		{Kind: Straight, Length: 95, Radius: inf, GripLevel: 0.97},
		{Kind: RightCorner, Length: 75, Radius: 48, GripLevel: 0.93},
		{Kind: Straight, Length: 105, Radius: inf, GripLevel: 0.98},
		{Kind: LeftCorner, Length: 80, Radius: 50, BankingDeg: 4, GripLevel: 0.95},
		{Kind: Chicane, Length: 65, Radius: 28, GripLevel: 0.90},
		{Kind: Straight, Length: 140, Radius: inf, GripLevel: 0.98},
		{Kind: RightCorner, Length: 70, Radius: 43, GripLevel: 0.93},
		{Kind: Straight, Length: 75, Radius: inf, GripLevel: 0.96},

		// Sector 3
		{Kind: LeftCorner, Length: 85, Radius: 52, BankingDeg: 5, GripLevel: 0.95},
		{Kind: Straight, Length: 125, Radius: inf, GripLevel: 0.99},
		{Kind: RightCorner, Length: 60, Radius: 39, GripLevel: 0.92},
		{Kind: Straight, Length: 80, Radius: inf, GripLevel: 0.97},
		{Kind: LeftCorner, Length: 65, Radius: 41, GripLevel: 0.92, BoostZone: true},
		{Kind: Straight, Length: 90, Radius: inf, GripLevel: 0.97},
		{Kind: RightCorner, Length: 70, Radius: 44, BankingDeg: 2, GripLevel: 0.94},
		{Kind: Straight, Length: 100, Radius: inf, GripLevel: 0.98},
		{Kind: Chicane, Length: 70, Radius: 30, GripLevel: 0.91},
		{Kind: Straight, Length: 110, Radius: inf, GripLevel: 0.98},
		{Kind: LeftCorner, Length: 75, Radius: 46, BankingDeg: 3, GripLevel: 0.94},
		{Kind: RightCorner, Length: 55, Radius: 37, GripLevel: 0.91},
		{Kind: Straight, Length: 170, Radius: inf, GripLevel: 0.99},
	}
	t, err := NewTrack("street-circuit", segs)
	if err != nil {
		// The built-in layout is never empty.
		panic(err)
	}
	return t
}
