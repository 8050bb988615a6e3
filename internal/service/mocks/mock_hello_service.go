package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"helloapi/internal/model"
)

type MockHelloService struct {
	mock.Mock
}

func (m *MockHelloService) Hello(ctx context.Context) string {
	args := m.Called(ctx)
	return args.String(0)
}

func (m *MockHelloService) HelloDto(ctx context.Context, name string, amount int) (*model.HelloResponse, error) {
	args := m.Called(ctx, name, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HelloResponse), args.Error(1)
}
