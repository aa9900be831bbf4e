package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/airports"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/Domenick1991/flightbooking/internal/service/reservation"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFlightUseCase struct {
	mock.Mock
}

func (m *MockFlightUseCase) flight(args mock.Arguments) (*domain.Flight, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) CreateFlight(ctx context.Context, input flights.CreateFlightInput) (*domain.Flight, error) {
	return m.flight(m.Called(ctx, input))
}

func (m *MockFlightUseCase) List(ctx context.Context, filter flights.ListFilter) ([]domain.Flight, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return m.flight(m.Called(ctx, id))
}

func (m *MockFlightUseCase) GetByNumber(ctx context.Context, number string) (*domain.Flight, error) {
	return m.flight(m.Called(ctx, number))
}

func (m *MockFlightUseCase) UpdateStatus(ctx context.Context, id int64, status domain.FlightStatus) (*domain.Flight, error) {
	return m.flight(m.Called(ctx, id, status))
}

func (m *MockFlightUseCase) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockFlightUseCase) Reconcile(ctx context.Context, id int64, repair bool) (reservation.Reconciliation, error) {
	args := m.Called(ctx, id, repair)
	return args.Get(0).(reservation.Reconciliation), args.Error(1)
}

type MockAirportUseCase struct {
	mock.Mock
}

func (m *MockAirportUseCase) Create(ctx context.Context, input airports.CreateAirportInput) (*domain.Airport, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Airport), args.Error(1)
}

func (m *MockAirportUseCase) List(ctx context.Context) ([]domain.Airport, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Airport), args.Error(1)
}

func (m *MockAirportUseCase) GetByCode(ctx context.Context, code string) (*domain.Airport, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Airport), args.Error(1)
}

func (m *MockAirportUseCase) Exists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func TestFlightHandler_list(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService, &MockBookingUseCase{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/flights?from=svo&status=scheduled&min_seats=2", nil)

	expected := []domain.Flight{{ID: 1, FlightNumber: "SU100", AvailableSeats: 5}}
	filter := flights.ListFilter{From: "svo", Status: domain.FlightStatusScheduled, MinSeats: 2}
	mockService.On("List", c.Request.Context(), filter).Return(expected, nil)

	handler.list(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response []domain.Flight
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, expected[0].FlightNumber, response[0].FlightNumber)
	mockService.AssertExpectations(t)
}

func TestFlightHandler_list_BadFilter(t *testing.T) {
	for _, query := range []string{"min_seats=-1", "min_seats=many", "status=LANDED"} {
		t.Run(query, func(t *testing.T) {
			handler := NewFlightHandler(&MockFlightUseCase{}, &MockBookingUseCase{})
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/flights?"+query, nil)

			handler.list(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestFlightHandler_get(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService, &MockBookingUseCase{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/flights/1", nil)

	mockService.On("GetByID", c.Request.Context(), int64(1)).Return(&domain.Flight{ID: 1, FlightNumber: "SU100"}, nil)

	handler.get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response domain.Flight
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "SU100", response.FlightNumber)
	mockService.AssertExpectations(t)
}

func TestFlightHandler_get_NotFound(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService, &MockBookingUseCase{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "99"}}
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/flights/99", nil)

	mockService.On("GetByID", c.Request.Context(), int64(99)).Return(nil, domain.ErrFlightNotFound)

	handler.get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockService.AssertExpectations(t)
}

func TestFlightRoutes(t *testing.T) {
	testCases := []struct {
		name       string
		method     string
		path       string
		body       string
		setup      func(f *MockFlightUseCase, b *MockBookingUseCase, a *MockAirportUseCase)
		wantStatus int
	}{
		{
			name:   "by number",
			method: http.MethodGet,
			path:   "/api/v1/flights/number/SU100",
			setup: func(f *MockFlightUseCase, _ *MockBookingUseCase, _ *MockAirportUseCase) {
				f.On("GetByNumber", mock.Anything, "SU100").Return(&domain.Flight{ID: 1}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "create with unknown airport",
			method: http.MethodPost,
			path:   "/api/v1/flights",
			body:   `{"flight_number":"SU1","from_airport":"SVO","to_airport":"XXX","total_seats":10,"price_cents":100}`,
			setup: func(f *MockFlightUseCase, _ *MockBookingUseCase, _ *MockAirportUseCase) {
				f.On("CreateFlight", mock.Anything, mock.AnythingOfType("flights.CreateFlightInput")).Return(nil, domain.ErrInvalidAirport)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "status transition",
			method: http.MethodPatch,
			path:   "/api/v1/flights/1/status",
			body:   `{"status":"arrived"}`,
			setup: func(f *MockFlightUseCase, _ *MockBookingUseCase, _ *MockAirportUseCase) {
				f.On("UpdateStatus", mock.Anything, int64(1), domain.FlightStatusArrived).
					Return(&domain.Flight{ID: 1, Status: domain.FlightStatusArrived}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "delete with active bookings",
			method: http.MethodDelete,
			path:   "/api/v1/flights/1",
			setup: func(f *MockFlightUseCase, _ *MockBookingUseCase, _ *MockAirportUseCase) {
				f.On("Delete", mock.Anything, int64(1)).Return(domain.ErrFlightHasActiveBookings)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:   "bookings of flight",
			method: http.MethodGet,
			path:   "/api/v1/flights/1/bookings",
			setup: func(_ *MockFlightUseCase, b *MockBookingUseCase, _ *MockAirportUseCase) {
				b.On("ListByFlight", mock.Anything, int64(1)).Return([]domain.Booking{{ID: 1}}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "reconcile with repair",
			method: http.MethodPost,
			path:   "/api/v1/flights/1/reconcile?repair=true",
			setup: func(f *MockFlightUseCase, _ *MockBookingUseCase, _ *MockAirportUseCase) {
				f.On("Reconcile", mock.Anything, int64(1), true).Return(reservation.Reconciliation{FlightID: 1, Repaired: true}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "reconcile invalid flag",
			method:     http.MethodPost,
			path:       "/api/v1/flights/1/reconcile?repair=maybe",
			setup:      func(*MockFlightUseCase, *MockBookingUseCase, *MockAirportUseCase) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "invariant violation",
			method: http.MethodGet,
			path:   "/api/v1/flights/2",
			setup: func(f *MockFlightUseCase, _ *MockBookingUseCase, _ *MockAirportUseCase) {
				f.On("GetByID", mock.Anything, int64(2)).Return(nil, &domain.InvariantError{FlightID: 2, Available: 11, Total: 10})
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:   "create airport duplicate",
			method: http.MethodPost,
			path:   "/api/v1/airports",
			body:   `{"code":"SVO","name":"Sheremetyevo","city":"Moscow","country":"RU"}`,
			setup: func(_ *MockFlightUseCase, _ *MockBookingUseCase, a *MockAirportUseCase) {
				a.On("Create", mock.Anything, airports.CreateAirportInput{Code: "SVO", Name: "Sheremetyevo", City: "Moscow", Country: "RU"}).
					Return(nil, domain.ErrDuplicateAirportCode)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:   "list airports",
			method: http.MethodGet,
			path:   "/api/v1/airports",
			setup: func(_ *MockFlightUseCase, _ *MockBookingUseCase, a *MockAirportUseCase) {
				a.On("List", mock.Anything).Return([]domain.Airport{{Code: "SVO"}}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "missing airport",
			method: http.MethodGet,
			path:   "/api/v1/airports/JFK",
			setup: func(_ *MockFlightUseCase, _ *MockBookingUseCase, a *MockAirportUseCase) {
				a.On("GetByCode", mock.Anything, "JFK").Return(nil, domain.ErrAirportNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, b, a := &MockFlightUseCase{}, &MockBookingUseCase{}, &MockAirportUseCase{}
			tc.setup(f, b, a)
			router := NewRouter(Services{Airports: a, Flights: f, Bookings: b}, nil)

			req := httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			f.AssertExpectations(t)
			b.AssertExpectations(t)
			a.AssertExpectations(t)
		})
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	router := gin.New()
	router.GET("/boom", func(c *gin.Context) { writeError(c, errors.New("pq: password authentication failed")) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestWriteError_ValidationField(t *testing.T) {
	router := gin.New()
	router.GET("/bad", func(c *gin.Context) {
		writeError(c, &domain.ValidationError{Field: "email", Message: "is required"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bad", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "email", resp.Field)
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{domain.ErrBookingNotFound, http.StatusNotFound},
		{domain.ErrInvalidSeatCount, http.StatusBadRequest},
		{domain.ErrInvalidFlightStatus, http.StatusBadRequest},
		{domain.ErrBookingNotPending, http.StatusConflict},
		{domain.ErrFlightNotBookable, http.StatusConflict},
		{domain.ErrOverRelease, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
