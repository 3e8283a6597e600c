package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ease_academy_api/internal/attendance"
	"ease_academy_api/internal/fees"
	"ease_academy_api/internal/middleware"
	"ease_academy_api/internal/models"
	"ease_academy_api/internal/notify"
	"ease_academy_api/internal/repository/memory"
)

const testSecret = "handler-test-secret"

type outbox struct {
	mu    sync.Mutex
	tasks []*models.ScheduledTask
}

func (o *outbox) Enqueue(ctx context.Context, task *models.ScheduledTask) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tasks = append(o.tasks, task)
	return nil
}

type prefStore struct {
	mu    sync.Mutex
	prefs map[string]models.UserNotifPreference
}

func (p *prefStore) Get(ctx context.Context, userID string) (models.UserNotifPreference, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pref, ok := p.prefs[userID]; ok {
		return pref, nil
	}
	return models.DefaultNotifPreference(userID), nil
}

func (p *prefStore) Save(ctx context.Context, pref models.UserNotifPreference) (models.UserNotifPreference, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefs[pref.UserID] = pref
	return pref, nil
}

type testServer struct {
	e        *echo.Echo
	db       *memory.DB
	outbox   *outbox
	branchID primitive.ObjectID
	admin    models.User
	parent   models.User
	teacher  models.User
	student  models.User
	template *models.FeeTemplate
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	db := memory.NewDB()
	users := memory.NewUserRepository(db)

	s := &testServer{db: db, outbox: &outbox{}, branchID: primitive.NewObjectID()}
	s.admin = s.addUser(t, models.User{FullName: "Admin", Email: "admin@example.com", Role: models.RoleBranchAdmin, BranchID: &s.branchID, IsActive: true})
	s.parent = s.addUser(t, models.User{FullName: "Parent", Email: "parent@example.com", Role: models.RoleParent, BranchID: &s.branchID, IsActive: true})
	s.teacher = s.addUser(t, models.User{FullName: "Teacher", Email: "teacher@example.com", Role: models.RoleTeacher, BranchID: &s.branchID, IsActive: true})
	parentID := s.parent.ID
	s.student = s.addUser(t, models.User{
		FullName: "Student",
		Email:    "student@example.com",
		Role:     models.RoleStudent,
		BranchID: &s.branchID,
		IsActive: true,
		StudentProfile: &models.StudentProfile{
			RegistrationNumber: "EA-001",
			ClassID:            primitive.NewObjectID(),
			ParentID:           &parentID,
		},
	})

	notifier := notify.NewService(memory.NewNotificationRepository(db), users, s.outbox, log)
	feeSvc := fees.NewService(fees.Deps{
		Vouchers:  memory.NewVoucherRepository(db),
		Templates: memory.NewTemplateRepository(db),
		Users:     users,
		Counters:  memory.NewCounterRepository(db),
		Notifier:  notifier,
		Log:       log,
	})
	attendanceSvc := attendance.NewService(memory.NewAttendanceRepository(db), users, memory.NewTimetableRepository(db), feeSvc, time.UTC, log)

	tmpl, err := feeSvc.CreateTemplate(context.Background(), s.actor(s.admin), fees.TemplateInput{Name: "Tuition", Amount: 5000})
	require.NoError(t, err)
	s.template = tmpl

	v := NewValidator()
	s.e = echo.New()
	s.e.Validator = v
	s.e.HTTPErrorHandler = middleware.NewErrorHandler(log, v.Translator())
	RegisterRoutes(s.e, Handlers{
		Auth:          NewAuthHandler(users, testSecret, time.Hour, log),
		Fees:          NewFeeHandler(feeSvc),
		Attendance:    NewAttendanceHandler(attendanceSvc),
		Students:      NewStudentHandler(users),
		Notifications: NewNotificationHandler(notifier),
		Preferences:   NewUserPreferenceHandler(&prefStore{prefs: map[string]models.UserNotifPreference{}}, log),
	}, testSecret)
	return s
}

func (s *testServer) addUser(t *testing.T, u models.User) models.User {
	t.Helper()
	require.NoError(t, u.SetPassword("secret123"))
	return s.db.AddUser(u)
}

func (s *testServer) actor(u models.User) models.Actor {
	a := models.Actor{UserID: u.ID, Role: u.Role}
	if u.BranchID != nil {
		a.BranchID = *u.BranchID
	}
	return a
}

func (s *testServer) token(t *testing.T, u models.User) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, &u, time.Hour, time.Now())
	require.NoError(t, err)
	return token
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func (s *testServer) do(t *testing.T, method, path string, as *models.User, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if as != nil {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token(t, *as))
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/auth/login", nil, echo.Map{"email": "ADMIN@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	actor, err := middleware.ParseToken(testSecret, data.Token)
	require.NoError(t, err)
	assert.Equal(t, s.admin.ID, actor.UserID)
	assert.Equal(t, s.branchID, actor.BranchID)
	assert.NotContains(t, rec.Body.String(), "password\":")

	rec, env = s.do(t, http.MethodPost, "/api/auth/login", nil, echo.Map{"email": "admin@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)

	rec, env = s.do(t, http.MethodPost, "/api/auth/login", nil, echo.Map{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Errors, "email")
	assert.Contains(t, env.Errors, "password")
}

func TestFeeVoucherFlow(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/branch-admin/fee-vouchers", &s.admin, echo.Map{
		"templateId": s.template.ID.Hex(),
		"studentIds": []string{s.student.ID.Hex()},
		"dueDate":    time.Now().Add(24 * time.Hour),
		"month":      3,
		"year":       2024,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var generated fees.GenerateResult
	require.NoError(t, json.Unmarshal(env.Data, &generated))
	require.Len(t, generated.Vouchers, 1)
	voucherID := generated.Vouchers[0].ID.Hex()

	rec, env = s.do(t, http.MethodPost, "/api/branch-admin/fee-vouchers/"+voucherID+"/manual-payment", &s.admin, echo.Map{"amount": 2000, "paymentMethod": "cash"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Payment recorded successfully", env.Message)
	var paid fees.ManualPaymentResult
	require.NoError(t, json.Unmarshal(env.Data, &paid))
	assert.Equal(t, models.VoucherStatusPartial, paid.UpdatedStatus)
	assert.Equal(t, int64(3000), paid.Voucher.RemainingAmount)

	rec, env = s.do(t, http.MethodPost, "/api/branch-admin/fee-vouchers/"+voucherID+"/manual-payment", &s.admin, echo.Map{"amount": 4000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	rec, _ = s.do(t, http.MethodPost, "/api/parent/fee-vouchers/"+voucherID+"/submit-payment", &s.parent, echo.Map{"amount": 3000, "paymentMethod": "bank_transfer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(t, http.MethodGet, "/api/branch-admin/pending-fees", &s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []models.FeeVoucher
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	require.Len(t, pending, 1)

	rec, env = s.do(t, http.MethodPost, "/api/branch-admin/pending-fees/approve", &s.admin, echo.Map{"voucherId": voucherID, "paymentIndex": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approved models.FeeVoucher
	require.NoError(t, json.Unmarshal(env.Data, &approved))
	assert.Equal(t, models.VoucherStatusPaid, approved.Status)

	rec, _ = s.do(t, http.MethodPost, "/api/branch-admin/pending-fees/approve", &s.admin, echo.Map{"voucherId": voucherID, "paymentIndex": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/parent/students/"+s.student.ID.Hex()+"/fee-vouchers", &s.parent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var children []models.FeeVoucher
	require.NoError(t, json.Unmarshal(env.Data, &children))
	assert.Len(t, children, 1)

	assert.NotEmpty(t, s.outbox.tasks)
}

func TestApproveRequiresPaymentIndex(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/branch-admin/pending-fees/approve", &s.admin, echo.Map{"voucherId": primitive.NewObjectID().Hex()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Errors, "paymentIndex")
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/api/branch-admin/fee-vouchers", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/branch-admin/fee-vouchers", &s.parent, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/super-admin/attendance/scan", &s.teacher, echo.Map{"qr": "EA-001"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScanEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/branch-admin/attendance/scan", &s.admin, echo.Map{
		"qr": echo.Map{"registrationNumber": "EA-001", "_id": s.student.ID.Hex()},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res attendance.ScanResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Len(t, res.Attendance.Records, 1)
	require.NotNil(t, res.FeeStatus)
	assert.Equal(t, fees.FeeStatusUnpaid, res.FeeStatus.Status)

	rec, _ = s.do(t, http.MethodPost, "/api/teacher/attendance/scan", &s.teacher, echo.Map{"qr": "EA-001"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/api/branch-admin/attendance/scan", &s.admin, echo.Map{"qr": "{broken"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	rec, env = s.do(t, http.MethodGet, "/api/branch-admin/attendance", &s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []models.Attendance
	require.NoError(t, json.Unmarshal(env.Data, &docs))
	assert.Len(t, docs, 1)
}

func TestStudentQRCode(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/api/branch-admin/students/"+s.student.ID.Hex()+"/qr", &s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec, _ = s.do(t, http.MethodGet, "/api/branch-admin/students/"+primitive.NewObjectID().Hex()+"/qr", &s.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationsAndPreferences(t *testing.T) {
	s := newTestServer(t)

	// a generated voucher notifies the parent
	rec, _ := s.do(t, http.MethodPost, "/api/branch-admin/fee-vouchers", &s.admin, echo.Map{
		"templateId": s.template.ID.Hex(),
		"studentIds": []string{s.student.ID.Hex()},
		"dueDate":    time.Now(),
		"month":      4,
		"year":       2024,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(t, http.MethodGet, "/api/notifications?unreadOnly=true", &s.parent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Notifications []models.Notification `json:"notifications"`
		UnreadCount   int64                 `json:"unreadCount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, int64(1), list.UnreadCount)

	rec, _ = s.do(t, http.MethodPost, "/api/notifications/"+list.Notifications[0].ID.Hex()+"/read", &s.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/notifications/"+list.Notifications[0].ID.Hex()+"/read", &s.parent, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/notifications/preferences", &s.parent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pref models.UserNotifPreference
	require.NoError(t, json.Unmarshal(env.Data, &pref))
	assert.Equal(t, models.NotificationChannelPush, pref.Channel)

	rec, _ = s.do(t, http.MethodPut, "/api/notifications/preferences", &s.parent, echo.Map{"channel": "fax"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(t, http.MethodPut, "/api/notifications/preferences", &s.parent, echo.Map{"channel": "whatsapp"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &pref))
	assert.Equal(t, models.NotificationChannelWhatsapp, pref.Channel)
	assert.Equal(t, models.WhatsappTargetTypePersonal, pref.WhatsappTargetType)
}
