// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/searchcheck/internal/browser"
)

// -- Page Mock --

// MockPage mocks browser.Page.
type MockPage struct {
	mock.Mock
}

var _ browser.Page = (*MockPage)(nil)

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockPage) Reload(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPage) WaitPresent(ctx context.Context, locator string) error {
	args := m.Called(ctx, locator)
	return args.Error(0)
}

func (m *MockPage) WaitVisible(ctx context.Context, locator string) error {
	args := m.Called(ctx, locator)
	return args.Error(0)
}

func (m *MockPage) WaitEnabled(ctx context.Context, locator string) error {
	args := m.Called(ctx, locator)
	return args.Error(0)
}

func (m *MockPage) WaitEditable(ctx context.Context, locator string) error {
	args := m.Called(ctx, locator)
	return args.Error(0)
}

func (m *MockPage) Click(ctx context.Context, locator string) error {
	args := m.Called(ctx, locator)
	return args.Error(0)
}

func (m *MockPage) Focus(ctx context.Context, locator string) error {
	args := m.Called(ctx, locator)
	return args.Error(0)
}

func (m *MockPage) Clear(ctx context.Context, locator string) error {
	args := m.Called(ctx, locator)
	return args.Error(0)
}

func (m *MockPage) TypeText(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

func (m *MockPage) Press(ctx context.Context, locator, key string) error {
	args := m.Called(ctx, locator, key)
	return args.Error(0)
}

func (m *MockPage) ScrollIntoView(ctx context.Context, locator string) error {
	args := m.Called(ctx, locator)
	return args.Error(0)
}

func (m *MockPage) Value(ctx context.Context, locator string) (string, error) {
	args := m.Called(ctx, locator)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Count(ctx context.Context, locator string) (int, error) {
	args := m.Called(ctx, locator)
	return args.Int(0), args.Error(1)
}

func (m *MockPage) Evaluate(ctx context.Context, script string, res any) error {
	args := m.Called(ctx, script, res)
	return args.Error(0)
}

func (m *MockPage) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	var buf []byte
	if b := args.Get(0); b != nil {
		buf = b.([]byte)
	}
	return buf, args.Error(1)
}

func (m *MockPage) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	args := m.Called(ctx, quiet)
	return args.Error(0)
}

// -- Browser Session Mock --

// MockBrowserSession mocks the browser handle owned by a fixture session.
type MockBrowserSession struct {
	mock.Mock
}

func (m *MockBrowserSession) Page() browser.Page {
	args := m.Called()
	if p := args.Get(0); p != nil {
		return p.(browser.Page)
	}
	return nil
}

func (m *MockBrowserSession) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
