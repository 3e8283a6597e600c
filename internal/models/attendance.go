package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AttendanceType string

const (
	AttendanceTypeDaily   AttendanceType = "daily"
	AttendanceTypeSubject AttendanceType = "subject"
	AttendanceTypeEvent   AttendanceType = "event"
)

func (t AttendanceType) Valid() bool {
	switch t {
	case AttendanceTypeDaily, AttendanceTypeSubject, AttendanceTypeEvent:
		return true
	}
	return false
}

type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusHalfDay AttendanceStatus = "half_day"
	AttendanceStatusExcused AttendanceStatus = "excused"
	AttendanceStatusLeave   AttendanceStatus = "leave"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate,
		AttendanceStatusHalfDay, AttendanceStatusExcused, AttendanceStatusLeave:
		return true
	}
	return false
}

type AttendanceRecord struct {
	StudentID   primitive.ObjectID  `bson:"studentId" json:"studentId"`
	Status      AttendanceStatus    `bson:"status" json:"status"`
	CheckInTime *time.Time          `bson:"checkInTime,omitempty" json:"checkInTime,omitempty"`
	Remarks     string              `bson:"remarks,omitempty" json:"remarks,omitempty"`
	MarkedAt    time.Time           `bson:"markedAt" json:"markedAt"`
	MarkedBy    *primitive.ObjectID `bson:"markedBy,omitempty" json:"markedBy,omitempty"`
}

// SlotKey identifies one attendance document
type SlotKey struct {
	BranchID       primitive.ObjectID
	ClassID        primitive.ObjectID
	Date           time.Time
	AttendanceType AttendanceType
	SubjectID      *primitive.ObjectID
	EventID        *primitive.ObjectID
	Section        string
}

// Attendance holds every student record for one slot
type Attendance struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	BranchID       primitive.ObjectID  `bson:"branchId" json:"branchId"`
	ClassID        primitive.ObjectID  `bson:"classId" json:"classId"`
	Date           time.Time           `bson:"date" json:"date"`
	AttendanceType AttendanceType      `bson:"attendanceType" json:"attendanceType"`
	SubjectID      *primitive.ObjectID `bson:"subjectId" json:"subjectId,omitempty"`
	EventID        *primitive.ObjectID `bson:"eventId" json:"eventId,omitempty"`
	Section        string              `bson:"section" json:"section,omitempty"`
	Records        []AttendanceRecord  `bson:"records" json:"records"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt" json:"updatedAt"`
}

func (a *Attendance) Key() SlotKey {
	return SlotKey{
		BranchID:       a.BranchID,
		ClassID:        a.ClassID,
		Date:           a.Date,
		AttendanceType: a.AttendanceType,
		SubjectID:      a.SubjectID,
		EventID:        a.EventID,
		Section:        a.Section,
	}
}

// RecordFor returns the record of studentID, if any
func (a *Attendance) RecordFor(studentID primitive.ObjectID) (AttendanceRecord, bool) {
	for _, r := range a.Records {
		if r.StudentID == studentID {
			return r, true
		}
	}
	return AttendanceRecord{}, false
}

// DayStart truncates t to local midnight in loc
func DayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
