package extract

import "github.com/stretchr/testify/mock"

// MockExtractor is a mock implementation of Extractor using testify/mock.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(data []byte, filename string) ([]Page, error) {
	args := m.Called(data, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Page), args.Error(1)
}
