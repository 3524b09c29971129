package parts

type SpaceType int

const (
	SpaceTypeShortPause  SpaceType = iota // split inside a clause
	SpaceTypeMediumPause                  // comma
	SpaceTypeLongPause                    // fullstop
)

// Segment is one piece of text short enough for a single synthesis job,
// followed by the pause that should be inserted after it.
type Segment struct {
	Value string
	Space SpaceType
}

type SegmentList []Segment

// Unique maps each distinct text to the indexes it appears at, so repeated
// segments are only synthesized once.
func (sl SegmentList) Unique() map[string][]int {
	mp := make(map[string][]int)
	for i, v := range sl {
		mp[v.Value] = append(mp[v.Value], i)
	}
	return mp
}
