// Package mocks provides test doubles for the fred client.
package mocks

import (
	"context"
	"time"

	mock "github.com/stretchr/testify/mock"

	"github.com/sells-group/fred-refresh/internal/model"
)

// MockClient is a mock type for the fred.Client interface.
type MockClient struct {
	mock.Mock
}

// FetchObservations provides a mock function with given fields: ctx, seriesID, start
func (_m *MockClient) FetchObservations(ctx context.Context, seriesID string, start time.Time) ([]model.Observation, error) {
	ret := _m.Called(ctx, seriesID, start)

	if len(ret) == 0 {
		panic("no return value specified for FetchObservations")
	}

	var r0 []model.Observation
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Time) ([]model.Observation, error)); ok {
		return rf(ctx, seriesID, start)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Time) []model.Observation); ok {
		r0 = rf(ctx, seriesID, start)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.Observation)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, time.Time) error); ok {
		r1 = rf(ctx, seriesID, start)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// FetchMetadata provides a mock function with given fields: ctx, seriesID
func (_m *MockClient) FetchMetadata(ctx context.Context, seriesID string) map[string]string {
	ret := _m.Called(ctx, seriesID)

	if len(ret) == 0 {
		panic("no return value specified for FetchMetadata")
	}

	var r0 map[string]string
	if rf, ok := ret.Get(0).(func(context.Context, string) map[string]string); ok {
		r0 = rf(ctx, seriesID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(map[string]string)
		}
	}

	return r0
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
