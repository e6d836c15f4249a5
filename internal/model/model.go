package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Run{},
	&Vehicle{},
	&Semaphore{},
	&Grid{},
}

// Positions are stored as EPSG:3857 WKB so SQLite can hold them without spatial
// support and Postgres can cast them to PostGIS geometry when queried.

// Run is one simulation run. It is inserted on start and updated every tick.
type Run struct {
	ID        string       `json:"id" gorm:"primaryKey;size:64"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Seed      int64        `json:"seed"`     // stored two's complement
	Vehicles  int          `json:"vehicles"` // vehicles placed at start
	GridSize  int          `json:"gridSize"`
	StartTime time.Time    `json:"startTime"`
	EndTime   sql.NullTime `json:"endTime"`
	Tick      int64        `json:"tick"`
	Arrived   int          `json:"arrived"`
	Running   bool         `json:"running"`
	Finished  bool         `json:"finished"`
}

func (*Run) TableName() string {
	return "runs"
}

// Vehicle is the current state of one vehicle. One row per vehicle per run.
type Vehicle struct {
	RunID         string     `json:"runId" gorm:"primaryKey;size:64"`
	VehicleID     int        `json:"vehicleId" gorm:"primaryKey;autoIncrement:false"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	Tick          int64      `json:"tick"`
	StartParking  int        `json:"startParking"`
	TargetParking int        `json:"targetParking"`
	Row           int        `json:"row"`
	Col           int        `json:"col"`
	Position      geom.Point `json:"position"` // cell centre
	State         string     `json:"state" gorm:"size:16"`
	Direction     string     `json:"direction" gorm:"size:8"`
}

func (*Vehicle) TableName() string {
	return "vehicles"
}

// Semaphore is the current phase of one signal pair.
type Semaphore struct {
	RunID       string          `json:"runId" gorm:"primaryKey;size:64"`
	SemaphoreID int             `json:"semaphoreId" gorm:"primaryKey;autoIncrement:false"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Tick        int64           `json:"tick"`
	Phase       string          `json:"phase" gorm:"size:8"`
	Elapsed     int             `json:"elapsed"`
	StopLine    geom.LineString `json:"stopLine"` // through both cell centres
}

func (*Semaphore) TableName() string {
	return "semaphores"
}

// Grid is the tag matrix of a run as of Tick.
type Grid struct {
	RunID     string         `json:"runId" gorm:"primaryKey;size:64"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Tick      int64          `json:"tick"`
	Cells     datatypes.JSON `json:"cells"`
}

func (*Grid) TableName() string {
	return "grids"
}
