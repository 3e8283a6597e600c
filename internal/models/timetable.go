package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// TimetableEntry assigns a teacher to a class section for one period
type TimetableEntry struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	BranchID  primitive.ObjectID  `bson:"branchId" json:"branchId"`
	ClassID   primitive.ObjectID  `bson:"classId" json:"classId"`
	Section   string              `bson:"section,omitempty" json:"section,omitempty"`
	TeacherID primitive.ObjectID  `bson:"teacherId" json:"teacherId"`
	SubjectID *primitive.ObjectID `bson:"subjectId,omitempty" json:"subjectId,omitempty"`
	Day       string              `bson:"day" json:"day"`
	StartTime string              `bson:"startTime" json:"startTime"`
	EndTime   string              `bson:"endTime" json:"endTime"`
}
