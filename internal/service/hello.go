package service

import (
	"context"
	"errors"

	"helloapi/internal/model"
)

// Greeting is the fixed body returned by Hello.
const Greeting = "hello"

var ErrNameRequired = errors.New("name is required")

// HelloService defines the greeting use cases.
type HelloService interface {
	// Hello returns the fixed greeting.
	Hello(ctx context.Context) string

	// HelloDto echoes name and amount back as a response object.
	// name is passed through verbatim; it must not be empty.
	HelloDto(ctx context.Context, name string, amount int) (*model.HelloResponse, error)
}

type helloService struct{}

// NewHelloService constructs the default HelloService.
func NewHelloService() HelloService {
	return &helloService{}
}

func (s *helloService) Hello(_ context.Context) string {
	return Greeting
}

func (s *helloService) HelloDto(_ context.Context, name string, amount int) (*model.HelloResponse, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	return &model.HelloResponse{Name: name, Amount: amount}, nil
}
