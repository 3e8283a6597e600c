package fees

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ease_academy_api/internal/models"
	"ease_academy_api/internal/notify"
	"ease_academy_api/internal/repository/memory"
	"ease_academy_api/internal/services"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *recordingNotifier) Notify(ctx context.Context, msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *recordingNotifier) ofType(typ models.NotificationType) []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Message
	for _, m := range n.messages {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return services.ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (c *mapCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mapCache) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	c.mu.Lock()
	_, exists := c.data[key]
	c.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, c.Set(ctx, key, value, exp)
}

type fixture struct {
	db       *memory.DB
	svc      *Service
	notifier *recordingNotifier
	cache    *mapCache

	branchID primitive.ObjectID
	admin    models.Actor
	parent   models.User
	student  models.User
	template models.FeeTemplate
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:       memory.NewDB(),
		notifier: &recordingNotifier{},
		cache:    newMapCache(),
		branchID: primitive.NewObjectID(),
		now:      time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
	admin := f.db.AddUser(models.User{FullName: "Admin", Role: models.RoleBranchAdmin, BranchID: &f.branchID, IsActive: true})
	f.admin = models.Actor{UserID: admin.ID, Role: models.RoleBranchAdmin, BranchID: f.branchID}
	f.parent = f.db.AddUser(models.User{FullName: "Parent", Email: "parent@example.com", Role: models.RoleParent, BranchID: &f.branchID, IsActive: true})
	f.student = f.addStudent("EA-001")

	f.svc = NewService(Deps{
		Vouchers:  memory.NewVoucherRepository(f.db),
		Templates: memory.NewTemplateRepository(f.db),
		Users:     memory.NewUserRepository(f.db),
		Counters:  memory.NewCounterRepository(f.db),
		Notifier:  f.notifier,
		Cache:     f.cache,
		Log:       zap.NewNop(),
	})
	f.svc.now = func() time.Time { return f.now }

	tmpl, err := f.svc.CreateTemplate(context.Background(), f.admin, TemplateInput{Name: "Tuition", Amount: 5000})
	require.NoError(t, err)
	f.template = *tmpl
	return f
}

func (f *fixture) addStudent(regNo string) models.User {
	parentID := f.parent.ID
	return f.db.AddUser(models.User{
		FullName: "Student " + regNo,
		Email:    regNo + "@example.com",
		Role:     models.RoleStudent,
		BranchID: &f.branchID,
		IsActive: true,
		StudentProfile: &models.StudentProfile{
			RegistrationNumber: regNo,
			ClassID:            primitive.NewObjectID(),
			ParentID:           &parentID,
			Guardian:           models.Guardian{Email: "guardian@example.com"},
		},
	})
}

func (f *fixture) parentActor() models.Actor {
	return models.Actor{UserID: f.parent.ID, Role: models.RoleParent, BranchID: f.branchID}
}

func (f *fixture) generate(t *testing.T, students ...models.User) *GenerateResult {
	t.Helper()
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID.Hex())
	}
	res, err := f.svc.GenerateVouchers(context.Background(), f.admin, GenerateInput{
		TemplateID: f.template.ID.Hex(),
		StudentIDs: ids,
		DueDate:    time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
		Month:      3,
		Year:       2024,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) voucher(t *testing.T) *models.FeeVoucher {
	t.Helper()
	res := f.generate(t, f.student)
	require.Len(t, res.Vouchers, 1)
	return &res.Vouchers[0]
}

func intPtr(i int) *int { return &i }
