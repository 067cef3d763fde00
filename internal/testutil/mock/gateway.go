package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockGateway mocks the dispatcher's sender dependency (gateway.Gateway's
// Send method), so dispatcher tests never touch the real SES API.
type MockGateway struct{ mock.Mock }

func (m *MockGateway) Send(ctx context.Context, from, to, subject, htmlBody string) (string, error) {
	args := m.Called(ctx, from, to, subject, htmlBody)
	return args.String(0), args.Error(1)
}
