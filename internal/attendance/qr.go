package attendance

import (
	"bytes"
	"encoding/json"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ease_academy_api/internal/apperrors"
)

type QRKind int

const (
	QRByRegistrationNumber QRKind = iota + 1
	QRByStudentID
)

// QRPayload identifies the scanned student. Exactly one of
// RegistrationNumber or StudentID is set, according to Kind.
type QRPayload struct {
	Kind               QRKind
	RegistrationNumber string
	StudentID          primitive.ObjectID
}

type qrDocument struct {
	RegistrationNumber interface{} `json:"registrationNumber"`
	ID                 string      `json:"_id"`
	StudentID          string      `json:"studentId"`
}

// ParseQRPayload accepts the raw qr field of a scan request: a JSON object,
// a JSON string holding either an object or a registration number, or the
// bare registration number itself. Text that does not decode as an object is
// taken as a registration number.
func ParseQRPayload(raw []byte) (QRPayload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return QRPayload{}, apperrors.InvalidInput("malformed QR payload")
		}
		raw = []byte(strings.TrimSpace(text))
	}
	if len(raw) == 0 || string(raw) == "null" {
		return QRPayload{}, apperrors.InvalidInput("QR code is required")
	}
	if raw[0] != '{' {
		return QRPayload{Kind: QRByRegistrationNumber, RegistrationNumber: string(raw)}, nil
	}

	var doc qrDocument
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		// registration numbers may themselves start with a brace
		return QRPayload{Kind: QRByRegistrationNumber, RegistrationNumber: string(raw)}, nil
	}

	id := strings.TrimSpace(doc.ID)
	if id == "" {
		id = strings.TrimSpace(doc.StudentID)
	}
	if id != "" {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return QRPayload{}, apperrors.InvalidInput("QR code holds an invalid student id")
		}
		return QRPayload{Kind: QRByStudentID, StudentID: oid}, nil
	}
	if reg := registrationText(doc.RegistrationNumber); reg != "" {
		return QRPayload{Kind: QRByRegistrationNumber, RegistrationNumber: reg}, nil
	}
	return QRPayload{}, apperrors.InvalidInput("QR code does not identify a student")
}

// registrationText accepts registration numbers printed as JSON strings or numbers
func registrationText(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
