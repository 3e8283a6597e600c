package attendance

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ease_academy_api/internal/apperrors"
	"ease_academy_api/internal/fees"
	"ease_academy_api/internal/models"
	"ease_academy_api/internal/repository/memory"
)

type stubFees struct {
	status *fees.FeeStatus
	err    error
}

func (s stubFees) FeeStatus(ctx context.Context, studentID primitive.ObjectID, at time.Time) (*fees.FeeStatus, error) {
	return s.status, s.err
}

type fixture struct {
	db       *memory.DB
	svc      *Service
	branchID primitive.ObjectID
	classID  primitive.ObjectID
	admin    models.Actor
	teacher  models.Actor
	student  models.User
	loc      *time.Location
}

func newFixture(t *testing.T, feeStatus FeeStatusProvider) *fixture {
	t.Helper()
	loc := time.FixedZone("PKT", 5*60*60)

	f := &fixture{
		db:       memory.NewDB(),
		branchID: primitive.NewObjectID(),
		classID:  primitive.NewObjectID(),
		loc:      loc,
	}
	f.admin = models.Actor{UserID: primitive.NewObjectID(), Role: models.RoleBranchAdmin, BranchID: f.branchID}
	f.teacher = models.Actor{UserID: primitive.NewObjectID(), Role: models.RoleTeacher, BranchID: f.branchID}
	f.student = f.db.AddUser(models.User{
		FullName: "Ayesha Khan",
		Role:     models.RoleStudent,
		BranchID: &f.branchID,
		IsActive: true,
		StudentProfile: &models.StudentProfile{
			RegistrationNumber: "EA-001",
			ClassID:            f.classID,
			Section:            "A",
		},
	})

	f.svc = NewService(
		memory.NewAttendanceRepository(f.db),
		memory.NewUserRepository(f.db),
		memory.NewTimetableRepository(f.db),
		feeStatus,
		loc,
		zap.NewNop(),
	)
	// 23:30 UTC is already the next day in Karachi
	f.svc.now = func() time.Time { return time.Date(2024, time.March, 10, 23, 30, 0, 0, time.UTC) }
	return f
}

func qr(v string) json.RawMessage { return json.RawMessage(v) }

func TestScanRecordsPresence(t *testing.T) {
	status := &fees.FeeStatus{Status: fees.FeeStatusPartial, Month: 3, Year: 2024, TotalAmount: 5000, PaidAmount: 2000, RemainingAmount: 3000, VoucherCount: 1}
	f := newFixture(t, stubFees{status: status})

	res, err := f.svc.Scan(context.Background(), f.admin, ScanInput{QR: qr(`{"registrationNumber":"EA-001"}`)})
	require.NoError(t, err)

	assert.True(t, time.Date(2024, time.March, 11, 0, 0, 0, 0, f.loc).Equal(res.Attendance.Date))
	assert.Equal(t, models.AttendanceTypeDaily, res.Attendance.AttendanceType)
	assert.Equal(t, "A", res.Attendance.Section)
	require.Len(t, res.Attendance.Records, 1)
	assert.Equal(t, models.AttendanceStatusPresent, res.Attendance.Records[0].Status)
	assert.NotNil(t, res.Attendance.Records[0].CheckInTime)
	assert.Equal(t, "EA-001", res.Student.RegistrationNumber)
	assert.Equal(t, status, res.FeeStatus)
}

func TestDoubleScanKeepsOneRecord(t *testing.T) {
	f := newFixture(t, stubFees{status: &fees.FeeStatus{Status: fees.FeeStatusUnpaid}})
	ctx := context.Background()

	_, err := f.svc.Scan(ctx, f.admin, ScanInput{QR: qr(`"EA-001"`), Date: "2024-03-05"})
	require.NoError(t, err)
	res, err := f.svc.Scan(ctx, f.admin, ScanInput{QR: qr(`{"_id":"` + f.student.ID.Hex() + `"}`), Date: "2024-03-05T10:00:00+05:00"})
	require.NoError(t, err)

	assert.Len(t, res.Attendance.Records, 1)
	docs, err := f.svc.List(ctx, f.admin, ListInput{From: "2024-03-01", To: "2024-03-31"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestConcurrentScansKeepOneRecord(t *testing.T) {
	f := newFixture(t, nil)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Scan(context.Background(), f.admin, ScanInput{QR: qr(`"EA-001"`)})
		}()
	}
	wg.Wait()

	doc, err := f.svc.Get(context.Background(), f.admin, SlotQuery{ClassID: f.classID.Hex(), Section: "A"})
	require.NoError(t, err)
	assert.Len(t, doc.Records, 1)
}

func TestScanFeeStatusFailureDoesNotBlock(t *testing.T) {
	f := newFixture(t, stubFees{err: errors.New("redis down")})

	res, err := f.svc.Scan(context.Background(), f.admin, ScanInput{QR: qr(`"EA-001"`)})
	require.NoError(t, err)
	assert.Nil(t, res.FeeStatus)
	assert.Len(t, res.Attendance.Records, 1)
}

func TestTeacherScan(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Scan(ctx, f.teacher, ScanInput{QR: qr(`"EA-001"`)})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	f.db.AddTimetableEntry(models.TimetableEntry{BranchID: f.branchID, ClassID: f.classID, Section: "B", TeacherID: f.teacher.UserID})
	_, err = f.svc.Scan(ctx, f.teacher, ScanInput{QR: qr(`"EA-001"`)})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	f.db.AddTimetableEntry(models.TimetableEntry{BranchID: f.branchID, ClassID: f.classID, Section: "A", TeacherID: f.teacher.UserID})
	res, err := f.svc.Scan(ctx, f.teacher, ScanInput{QR: qr(`"EA-001"`)})
	require.NoError(t, err)
	assert.Equal(t, f.teacher.UserID, *res.Attendance.Records[0].MarkedBy)
}

func TestScanScoping(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	otherAdmin := models.Actor{UserID: primitive.NewObjectID(), Role: models.RoleBranchAdmin, BranchID: primitive.NewObjectID()}
	_, err := f.svc.Scan(ctx, otherAdmin, ScanInput{QR: qr(`"EA-001"`)})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	superAdmin := models.Actor{UserID: primitive.NewObjectID(), Role: models.RoleSuperAdmin}
	res, err := f.svc.Scan(ctx, superAdmin, ScanInput{QR: qr(`"EA-001"`)})
	require.NoError(t, err)
	assert.Equal(t, f.branchID, res.Attendance.BranchID)

	parent := models.Actor{UserID: primitive.NewObjectID(), Role: models.RoleParent, BranchID: f.branchID}
	_, err = f.svc.Scan(ctx, parent, ScanInput{QR: qr(`"EA-001"`)})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = f.svc.Scan(ctx, f.admin, ScanInput{QR: qr(`"EA-999"`)})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestScanAttendanceTypes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	subjectID := primitive.NewObjectID().Hex()

	_, err := f.svc.Scan(ctx, f.admin, ScanInput{QR: qr(`"EA-001"`), AttendanceType: "subject"})
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput))

	_, err = f.svc.Scan(ctx, f.admin, ScanInput{QR: qr(`"EA-001"`), AttendanceType: "event"})
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput))

	_, err = f.svc.Scan(ctx, f.admin, ScanInput{QR: qr(`"EA-001"`), AttendanceType: "assembly"})
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput))

	_, err = f.svc.Scan(ctx, f.admin, ScanInput{QR: qr(`"EA-001"`), Date: "10/03/2024"})
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput))

	daily, err := f.svc.Scan(ctx, f.admin, ScanInput{QR: qr(`"EA-001"`)})
	require.NoError(t, err)
	subject, err := f.svc.Scan(ctx, f.admin, ScanInput{QR: qr(`"EA-001"`), AttendanceType: "subject", SubjectID: subjectID})
	require.NoError(t, err)
	assert.NotEqual(t, daily.Attendance.ID, subject.Attendance.ID)
	assert.Equal(t, subjectID, subject.Attendance.SubjectID.Hex())
}

func TestMarkAttendance(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	second := f.db.AddUser(models.User{
		Role:           models.RoleStudent,
		BranchID:       &f.branchID,
		IsActive:       true,
		StudentProfile: &models.StudentProfile{RegistrationNumber: "EA-002", ClassID: f.classID, Section: "A"},
	})

	doc, err := f.svc.Mark(ctx, f.admin, MarkInput{
		ClassID: f.classID.Hex(),
		Date:    "2024-03-04",
		Section: "A",
		Records: []MarkRecord{
			{StudentID: f.student.ID.Hex(), Status: "present"},
			{StudentID: second.ID.Hex(), Status: "absent", Remarks: "sick"},
		},
	})
	require.NoError(t, err)
	require.Len(t, doc.Records, 2)

	absent, ok := doc.RecordFor(second.ID)
	require.True(t, ok)
	assert.Equal(t, models.AttendanceStatusAbsent, absent.Status)
	assert.Nil(t, absent.CheckInTime)

	// a later scan on the same day flips the record to present
	res, err := f.svc.Scan(ctx, f.admin, ScanInput{QR: qr(`"EA-002"`), Date: "2024-03-04"})
	require.NoError(t, err)
	assert.Equal(t, doc.ID, res.Attendance.ID)
	flipped, _ := res.Attendance.RecordFor(second.ID)
	assert.Equal(t, models.AttendanceStatusPresent, flipped.Status)
	assert.Len(t, res.Attendance.Records, 2)
}

func TestMarkAttendanceValidatesEveryRecord(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Mark(ctx, f.admin, MarkInput{
		ClassID: f.classID.Hex(),
		Records: []MarkRecord{
			{StudentID: f.student.ID.Hex(), Status: "present"},
			{StudentID: f.student.ID.Hex(), Status: "sleeping"},
		},
	})
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput))

	_, err = f.svc.Mark(ctx, f.admin, MarkInput{
		ClassID: f.classID.Hex(),
		Records: []MarkRecord{{StudentID: primitive.NewObjectID().Hex(), Status: "present"}},
	})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = f.svc.Get(ctx, f.admin, SlotQuery{ClassID: f.classID.Hex()})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}
