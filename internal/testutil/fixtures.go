package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/bulksend/bulksend/internal/model"
)

var (
	FixedTime     = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	TestTopic     = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	TestContentID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

func NewTestContent() *model.EmailContent {
	return &model.EmailContent{
		ID:        TestContentID,
		Subject:   "Test Subject",
		HTMLBody:  "<p>Hello</p>",
		CreatedAt: FixedTime,
	}
}

func NewTestRequest() *model.EmailRequest {
	return &model.EmailRequest{
		ID:          uuid.New(),
		TopicID:     TestTopic,
		ContentID:   TestContentID,
		FromAddress: "sender@example.com",
		ToAddress:   "recipient@example.com",
		SendAt:      FixedTime,
		Status:      model.RequestStatusCreated,
		CreatedAt:   FixedTime,
	}
}

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string { return &s }

// BoolPtr returns a pointer to the given bool.
func BoolPtr(b bool) *bool { return &b }

// IntPtr returns a pointer to the given int.
func IntPtr(i int) *int { return &i }
