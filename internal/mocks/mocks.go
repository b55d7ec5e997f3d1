// internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
	"github.com/stretchr/testify/mock"
)

// MockFeedSource mocks the FeedSource interface
type MockFeedSource struct {
	mock.Mock
}

func (m *MockFeedSource) Fetch(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockFeedProvider mocks the raw feed provider interface
type MockFeedProvider struct {
	mock.Mock
}

func (m *MockFeedProvider) FetchFeed(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockFeedParser mocks the FeedParser interface
type MockFeedParser struct {
	mock.Mock
}

func (m *MockFeedParser) Parse(raw []byte) (entity.Feed, error) {
	args := m.Called(raw)
	return args.Get(0).(entity.Feed), args.Error(1)
}

// MockFeedArchive mocks the FeedArchive interface
type MockFeedArchive struct {
	mock.Mock
}

func (m *MockFeedArchive) Store(ctx context.Context, snapshot *entity.FeedSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

// MockReportWriter mocks the report writer used when streaming a series
type MockReportWriter struct {
	mock.Mock
}

func (m *MockReportWriter) WriteSummary(summary entity.SeriesSummary) error {
	args := m.Called(summary)
	return args.Error(0)
}

func (m *MockReportWriter) WriteHeader() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockReportWriter) WriteRow(rate entity.ResolvedRate) error {
	args := m.Called(rate)
	return args.Error(0)
}

func (m *MockReportWriter) Flush() error {
	args := m.Called()
	return args.Error(0)
}

// MockLogger mocks the logger interface
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Info(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Fatal(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) WithField(key string, value interface{}) logger.Logger {
	args := m.Called(key, value)
	return args.Get(0).(logger.Logger)
}

func (m *MockLogger) WithFields(fields map[string]interface{}) logger.Logger {
	args := m.Called(fields)
	return args.Get(0).(logger.Logger)
}
