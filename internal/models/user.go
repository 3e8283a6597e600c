package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleBranchAdmin Role = "branch_admin"
	RoleTeacher     Role = "teacher"
	RoleParent      Role = "parent"
	RoleStudent     Role = "student"
)

// NormalizeRole maps the spellings found in stored tokens and documents
// (branch-admin, Branch_Admin) onto the canonical constants.
func NormalizeRole(role string) Role {
	r := strings.ToLower(strings.TrimSpace(role))
	r = strings.ReplaceAll(r, "-", "_")
	return Role(r)
}

type Guardian struct {
	Name  string `bson:"name,omitempty" json:"name,omitempty"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`
}

type StudentProfile struct {
	RegistrationNumber string              `bson:"registrationNumber" json:"registrationNumber"`
	ClassID            primitive.ObjectID  `bson:"classId" json:"classId"`
	Section            string              `bson:"section,omitempty" json:"section,omitempty"`
	RollNumber         string              `bson:"rollNumber,omitempty" json:"rollNumber,omitempty"`
	FeeDiscount        int64               `bson:"feeDiscount" json:"feeDiscount"`
	ParentID           *primitive.ObjectID `bson:"parentId,omitempty" json:"parentId,omitempty"`
	Guardian           Guardian            `bson:"guardian" json:"guardian"`
}

type User struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	FullName       string              `bson:"fullName" json:"fullName"`
	Email          string              `bson:"email" json:"email"`
	PasswordHash   string              `bson:"password" json:"-"`
	Role           Role                `bson:"role" json:"role"`
	BranchID       *primitive.ObjectID `bson:"branchId,omitempty" json:"branchId,omitempty"`
	Phone          string              `bson:"phone,omitempty" json:"phone,omitempty"`
	PushTokens     []string            `bson:"pushTokens,omitempty" json:"-"`
	IsActive       bool                `bson:"isActive" json:"isActive"`
	StudentProfile *StudentProfile     `bson:"studentProfile,omitempty" json:"studentProfile,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// InBranch reports whether the user belongs to branchID
func (u *User) InBranch(branchID primitive.ObjectID) bool {
	return u.BranchID != nil && *u.BranchID == branchID
}

// ContactEmails lists the student and guardian addresses, without duplicates
func (u *User) ContactEmails() []string {
	seen := map[string]bool{}
	var emails []string
	add := func(email string) {
		email = strings.TrimSpace(email)
		if email == "" || seen[strings.ToLower(email)] {
			return
		}
		seen[strings.ToLower(email)] = true
		emails = append(emails, email)
	}
	add(u.Email)
	if u.StudentProfile != nil {
		add(u.StudentProfile.Guardian.Email)
	}
	return emails
}

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID   primitive.ObjectID
	Role     Role
	BranchID primitive.ObjectID
}

func (a Actor) HasBranch() bool { return !a.BranchID.IsZero() }
