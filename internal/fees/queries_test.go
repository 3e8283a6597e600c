package fees

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ease_academy_api/internal/apperrors"
	"ease_academy_api/internal/models"
)

func TestFeeStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2024, time.March, 20, 8, 0, 0, 0, time.UTC)

	st, err := f.svc.FeeStatus(ctx, f.student.ID, at)
	require.NoError(t, err)
	assert.Equal(t, FeeStatusUnpaid, st.Status)
	assert.Equal(t, 0, st.VoucherCount)

	v := f.voucher(t)
	st, err = f.svc.FeeStatus(ctx, f.student.ID, at)
	require.NoError(t, err)
	assert.Equal(t, FeeStatusUnpaid, st.Status)
	assert.Equal(t, 1, st.VoucherCount)
	assert.Equal(t, int64(5000), st.RemainingAmount)

	_, err = f.svc.RecordManualPayment(ctx, f.admin, v.ID.Hex(), ManualPaymentInput{Amount: 2000})
	require.NoError(t, err)
	st, err = f.svc.FeeStatus(ctx, f.student.ID, at)
	require.NoError(t, err)
	assert.Equal(t, FeeStatusPartial, st.Status)
	assert.Equal(t, int64(2000), st.PaidAmount)

	_, err = f.svc.RecordManualPayment(ctx, f.admin, v.ID.Hex(), ManualPaymentInput{Amount: 3000})
	require.NoError(t, err)
	st, err = f.svc.FeeStatus(ctx, f.student.ID, at)
	require.NoError(t, err)
	assert.Equal(t, FeeStatusPaid, st.Status)
}

func TestFeeStatusIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2024, time.March, 20, 8, 0, 0, 0, time.UTC)

	_, err := f.svc.FeeStatus(ctx, f.student.ID, at)
	require.NoError(t, err)

	var cached FeeStatus
	require.NoError(t, f.cache.Get(ctx, FeeStatusKey(f.student.ID, 2024, 3), &cached))
	assert.Equal(t, FeeStatusUnpaid, cached.Status)

	f.voucher(t)
	assert.Error(t, f.cache.Get(ctx, FeeStatusKey(f.student.ID, 2024, 3), &cached), "generation invalidates the cached status")
}

func TestFeeStatusIgnoresCancelledVouchers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.voucher(t)
	_, err := f.svc.CancelVoucher(ctx, f.admin, v.ID.Hex(), CancelInput{})
	require.NoError(t, err)

	st, err := f.svc.FeeStatus(ctx, f.student.ID, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, st.VoucherCount)
	assert.Equal(t, FeeStatusUnpaid, st.Status)
}

func TestListVouchers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	second := f.addStudent("EA-002")
	res := f.generate(t, f.student, second)
	_, err := f.svc.RecordManualPayment(ctx, f.admin, res.Vouchers[0].ID.Hex(), ManualPaymentInput{Amount: 5000})
	require.NoError(t, err)

	all, err := f.svc.ListVouchers(ctx, f.admin, ListFilter{Month: 3, Year: 2024})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	paid, err := f.svc.ListVouchers(ctx, f.admin, ListFilter{Status: "PAID"})
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, f.student.ID, paid[0].StudentID)

	byStudent, err := f.svc.ListVouchers(ctx, f.admin, ListFilter{StudentID: second.ID.Hex()})
	require.NoError(t, err)
	assert.Len(t, byStudent, 1)

	_, err = f.svc.ListVouchers(ctx, f.admin, ListFilter{ClassID: "nope"})
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput))

	other := models.Actor{UserID: primitive.NewObjectID(), Role: models.RoleBranchAdmin, BranchID: primitive.NewObjectID()}
	none, err := f.svc.ListVouchers(ctx, other, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListChildVouchers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.voucher(t)

	list, err := f.svc.ListChildVouchers(ctx, f.parentActor(), f.student.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	stranger := models.Actor{UserID: primitive.NewObjectID(), Role: models.RoleParent}
	_, err = f.svc.ListChildVouchers(ctx, stranger, f.student.ID.Hex())
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestTemplates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateTemplate(ctx, f.admin, TemplateInput{Name: "Lab", Amount: 100, Discount: 200})
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput))

	_, err = f.svc.CreateTemplate(ctx, f.admin, TemplateInput{Name: "Lab", Amount: 800, Discount: 100})
	require.NoError(t, err)

	list, err := f.svc.ListTemplates(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestReminderTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	second := f.addStudent("EA-002")
	res := f.generate(t, f.student, second)
	_, err := f.svc.RecordManualPayment(ctx, f.admin, res.Vouchers[1].ID.Hex(), ManualPaymentInput{Amount: 5000})
	require.NoError(t, err)

	reminder := &ReminderTaskDef{Fees: f.svc, Log: zap.NewNop()}
	task, err := reminder.CreateTask(ReminderArgs{BranchID: f.branchID.Hex()}, f.now, "")
	require.NoError(t, err)
	assert.Equal(t, ReminderTaskName, task.TaskName)
	assert.Equal(t, models.ScheduledTaskTypeRecurring, task.TaskType)

	// not yet due
	result, err := reminder.HandleExecution(ctx, *task)
	require.NoError(t, err)
	assert.Equal(t, 0, result["reminded"])

	f.now = time.Date(2024, time.March, 16, 9, 0, 0, 0, time.UTC)
	result, err = reminder.HandleExecution(ctx, *task)
	require.NoError(t, err)
	assert.Equal(t, 1, result["reminded"])

	msgs := f.notifier.ofType(models.NotificationTypeFeeReminder)
	require.Len(t, msgs, 1)
	assert.ElementsMatch(t, []primitive.ObjectID{f.student.ID, f.parent.ID}, msgs[0].UserIDs)
}

func TestReminderTaskRejectsBadBranch(t *testing.T) {
	f := newFixture(t)
	reminder := &ReminderTaskDef{Fees: f.svc, Log: zap.NewNop()}
	task, err := NewReminderTask(ReminderArgs{BranchID: "bad"}, f.now, "FREQ=HOURLY")
	require.NoError(t, err)

	_, err = reminder.HandleExecution(context.Background(), *task)
	assert.Error(t, err)
}
