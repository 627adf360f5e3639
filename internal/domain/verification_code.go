package domain

import "time"

// CodeType tags what a one-time code proves
type CodeType string

const (
	CodeTypeSMS           CodeType = "SMS"
	CodeTypeEmail         CodeType = "EMAIL"
	CodeTypePasswordReset CodeType = "PASSWORD_RESET"
)

// Channel is the delivery channel a code is bound to
type Channel string

const (
	ChannelPhone Channel = "phone"
	ChannelEmail Channel = "email"
)

// Subject is the phone number or email address a code was issued for
type Subject struct {
	Channel Channel
	Value   string
}

func PhoneSubject(phone string) Subject {
	return Subject{Channel: ChannelPhone, Value: phone}
}

func EmailSubject(email string) Subject {
	return Subject{Channel: ChannelEmail, Value: email}
}

// VerificationCode represents a one-time numeric code.
// Exactly one of PhoneNumber and Email is set.
type VerificationCode struct {
	ID          string    `json:"id" db:"id"`
	PhoneNumber *string   `json:"phone_number" db:"phone_number"`
	Email       *string   `json:"email" db:"email"`
	Code        string    `json:"-" db:"code"`
	Type        CodeType  `json:"type" db:"type"`
	IsUsed      bool      `json:"is_used" db:"is_used"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// NewVerificationCode builds an unused code for the subject
func NewVerificationCode(subject Subject, codeType CodeType, code string, expiresAt time.Time) *VerificationCode {
	vc := &VerificationCode{
		Code:      code,
		Type:      codeType,
		ExpiresAt: expiresAt,
	}

	value := subject.Value
	switch subject.Channel {
	case ChannelEmail:
		vc.Email = &value
	default:
		vc.PhoneNumber = &value
	}

	return vc
}

// IsExpired checks if the code is past its expiry at the given instant
func (c *VerificationCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
