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
	&SessionRecord{},
	&TrajectorySample{},
	&Comparison{},
	&PairError{},
	&Failure{},
}

////////////////////////
// RUN MODELS
////////////////////////

// Run is one analyzer invocation
type Run struct {
	ID          uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	RunID       string         `json:"runId" gorm:"size:36;uniqueIndex:idx_run_run_id"`
	GeneratedAt time.Time      `json:"generatedAt" gorm:"index:idx_run_generated_at"`
	Reference   string         `json:"reference" gorm:"size:127"`
	SessionIDs  datatypes.JSON `json:"sessionIds"`
	Warnings    datatypes.JSON `json:"warnings"`
}

func (*Run) TableName() string {
	return "runs"
}

// Failure records a session that produced no result
type Failure struct {
	ID        uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	RunID     uint   `json:"runId" gorm:"index:idx_failure_run_id"`
	SessionID string `json:"sessionId" gorm:"size:127"`
	Kind      string `json:"kind" gorm:"size:32"`
	Message   string `json:"message" gorm:"size:2000"`
}

func (*Failure) TableName() string {
	return "failures"
}

////////////////////////
// TRAJECTORY MODELS
////////////////////////

// SessionRecord is the per-session summary of a run
type SessionRecord struct {
	ID              uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	RunID           uint            `json:"runId" gorm:"index:idx_session_run_id"`
	SessionID       string          `json:"sessionId" gorm:"size:127;index:idx_session_session_id"`
	MissionName     string          `json:"missionName" gorm:"size:200"`
	ClockOrigin     sql.NullTime    `json:"clockOrigin"`
	SampleCount     int             `json:"sampleCount"`
	RejectedCount   int             `json:"rejectedCount"`
	GapCount        int             `json:"gapCount"`
	TotalDistance   float64         `json:"totalDistance"`
	DurationSeconds float64         `json:"durationSeconds"`
	AverageSpeed    sql.NullFloat64 `json:"averageSpeed"`
	MaxSpeed        sql.NullFloat64 `json:"maxSpeed"`
	Path            geom.LineString `json:"path"` // connected samples, lon/lat
	Statistics      datatypes.JSON  `json:"statistics"`
	PlanAccuracy    datatypes.JSON  `json:"planAccuracy"`
}

func (*SessionRecord) TableName() string {
	return "session_records"
}

// TrajectorySample is one accepted navigation sample of a session
type TrajectorySample struct {
	ID                 uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionRecordID    uint            `json:"sessionRecordId" gorm:"index:idx_sample_session_record_id"`
	Seq                int             `json:"seq"`
	Time               sql.NullTime    `json:"time"` // only set when the session clock origin is known
	ElapsedSeconds     float64         `json:"elapsedSeconds"`
	Position           geom.Point      `json:"position"`
	Latitude           float64         `json:"latitude"`
	Longitude          float64         `json:"longitude"`
	Depth              sql.NullFloat64 `json:"depth"`
	Heading            sql.NullFloat64 `json:"heading"`
	Altitude           sql.NullFloat64 `json:"altitude"`
	Source             string          `json:"source" gorm:"size:16"`
	CumulativeDistance float64         `json:"cumulativeDistance"`
	Speed              sql.NullFloat64 `json:"speed"`
}

func (*TrajectorySample) TableName() string {
	return "trajectory_samples"
}

////////////////////////
// COMPARISON MODELS
////////////////////////

// ErrorStats holds the columns of a core.ErrorStatistics
type ErrorStats struct {
	Count  int             `json:"count"`
	Mean   sql.NullFloat64 `json:"mean"`
	Median sql.NullFloat64 `json:"median"`
	P95    sql.NullFloat64 `json:"p95"`
	Max    sql.NullFloat64 `json:"max"`
	Min    sql.NullFloat64 `json:"min"`
	RMS    sql.NullFloat64 `json:"rms"`
	StdDev sql.NullFloat64 `json:"stdDev"`
}

// Comparison is a reference/candidate comparison of a run
type Comparison struct {
	ID                uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	RunID             uint           `json:"runId" gorm:"index:idx_comparison_run_id"`
	ComparisonKey     string         `json:"comparisonKey" gorm:"size:255"`
	Reference         string         `json:"reference" gorm:"size:127"`
	Candidate         string         `json:"candidate" gorm:"size:127"`
	Basis             string         `json:"basis" gorm:"size:16"`
	Matched           int            `json:"matched"`
	Unmatched         int            `json:"unmatched"`
	Rejected          int            `json:"rejected"`
	Coverage          float64        `json:"coverage"`
	Error             ErrorStats     `json:"error" gorm:"embedded;embeddedPrefix:error_"`
	DepthDifference    datatypes.JSON `json:"depthDifference"`
	AltitudeDifference datatypes.JSON `json:"altitudeDifference"`
	HeadingDifference  datatypes.JSON `json:"headingDifference"`
	Insufficient       datatypes.JSON `json:"insufficient"`
}

func (*Comparison) TableName() string {
	return "comparisons"
}

// PairError is the error of one aligned pair
type PairError struct {
	ID             uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	ComparisonID   uint    `json:"comparisonId" gorm:"index:idx_pair_error_comparison_id"`
	IndexA         int     `json:"indexA"`
	IndexB         int     `json:"indexB"`
	Interpolated   bool    `json:"interpolated" gorm:"default:false"`
	Error          float64 `json:"error"`
	TimeGapSeconds float64 `json:"timeGapSeconds"`
	DistanceGap    float64 `json:"distanceGap"`
}

func (*PairError) TableName() string {
	return "pair_errors"
}
