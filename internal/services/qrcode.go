package services

import (
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"ease_academy_api/internal/models"
)

// StudentQRPayload is the JSON printed on student ID cards
type StudentQRPayload struct {
	RegistrationNumber string `json:"registrationNumber"`
	ID                 string `json:"_id"`
}

// StudentQRCode renders the attendance QR code of a student as PNG
func StudentQRCode(student *models.User, size int) ([]byte, error) {
	if student.StudentProfile == nil {
		return nil, fmt.Errorf("user %s has no student profile", student.ID.Hex())
	}
	content, err := json.Marshal(StudentQRPayload{
		RegistrationNumber: student.StudentProfile.RegistrationNumber,
		ID:                 student.ID.Hex(),
	})
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(string(content), qrcode.Medium, size)
}
