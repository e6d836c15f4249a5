// pkg/core/tag.go
package core

// Tag is the categorical value stored in one grid cell.
type Tag int

// Reserved tag values. Parking lots use 1..MaxParkingLots.
const (
	TagEmpty        Tag = 0
	TagVehicle      Tag = -1
	TagSignalGreen  Tag = 18
	TagSignalRed    Tag = 19
	TagBuilding     Tag = 20
	TagRoundabout   Tag = 21
	TagSignalYellow Tag = 25
)

// MaxParkingLots is the highest parking lot identifier a layout may use.
const MaxParkingLots = 17

// CellKind is the closed set of things a cell can hold.
type CellKind uint8

const (
	KindEmpty CellKind = iota
	KindVehicle
	KindParking
	KindSignal
	KindBuilding
	KindRoundabout
	KindUnknown
)

func (k CellKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindVehicle:
		return "vehicle"
	case KindParking:
		return "parking"
	case KindSignal:
		return "signal"
	case KindBuilding:
		return "building"
	case KindRoundabout:
		return "roundabout"
	}
	return "unknown"
}

// Kind classifies t.
func (t Tag) Kind() CellKind {
	switch {
	case t == TagEmpty:
		return KindEmpty
	case t == TagVehicle:
		return KindVehicle
	case t >= 1 && t <= MaxParkingLots:
		return KindParking
	case t == TagSignalGreen, t == TagSignalRed, t == TagSignalYellow:
		return KindSignal
	case t == TagBuilding:
		return KindBuilding
	case t == TagRoundabout:
		return KindRoundabout
	}
	return KindUnknown
}

// ParkingTag returns the tag for parking lot id.
func ParkingTag(id int) Tag {
	return Tag(id)
}
