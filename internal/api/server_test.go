package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/meetd/internal/api/problem"
	"github.com/ManuGH/meetd/internal/domain/recordings/coordinator"
	"github.com/ManuGH/meetd/internal/domain/recordings/model"
)

// fakeService answers from canned values and records the arguments it saw.
type fakeService struct {
	err       error
	info      *model.RecordingInfo
	room      *model.Room
	bulk      coordinator.BulkDeleteResult
	lastArg   string
	bulkIDs   []string
	listRoom  string
	createdIn model.Room
}

func (f *fakeService) StartRecording(_ context.Context, roomID string) (*model.RecordingInfo, error) {
	f.lastArg = roomID
	return f.info, f.err
}

func (f *fakeService) StopRecording(_ context.Context, id string) (*model.RecordingInfo, error) {
	f.lastArg = id
	return f.info, f.err
}

func (f *fakeService) DeleteRecording(_ context.Context, id string) (*model.RecordingInfo, error) {
	f.lastArg = id
	return f.info, f.err
}

func (f *fakeService) BulkDeleteRecordings(_ context.Context, ids []string) (coordinator.BulkDeleteResult, error) {
	f.bulkIDs = ids
	return f.bulk, f.err
}

func (f *fakeService) GetRecording(_ context.Context, id string) (*model.RecordingInfo, error) {
	f.lastArg = id
	return f.info, f.err
}

func (f *fakeService) ListRecordings(_ context.Context, roomID string) ([]model.RecordingInfo, error) {
	f.listRoom = roomID
	if f.err != nil {
		return nil, f.err
	}
	return []model.RecordingInfo{*f.info}, nil
}

func (f *fakeService) CreateRoom(_ context.Context, room model.Room) (*model.Room, error) {
	f.createdIn = room
	return f.room, f.err
}

func (f *fakeService) GetRoom(_ context.Context, roomID string) (*model.Room, error) {
	f.lastArg = roomID
	return f.room, f.err
}

func (f *fakeService) ListRooms(context.Context) ([]model.Room, error) {
	return []model.Room{*f.room}, f.err
}

func (f *fakeService) DeleteRoom(_ context.Context, roomID string) error {
	f.lastArg = roomID
	return f.err
}

func newTestService() *fakeService {
	return &fakeService{
		info: &model.RecordingInfo{RecordingID: "r1--EG_a--u", RoomID: "r1", Status: model.StatusActive},
		room: &model.Room{RoomID: "r1", RoomName: "Daily"},
	}
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problem.Details {
	t.Helper()
	require.Equal(t, problem.ContentType, rec.Header().Get("Content-Type"))
	var p problem.Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestRecordingRoutes(t *testing.T) {
	svc := newTestService()
	h := NewServer(svc, Config{}).Handler()

	rec := serve(t, h, http.MethodPost, "/api/v1/recordings", `{"roomId":"r1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "r1", svc.lastArg)
	var info model.RecordingInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "r1--EG_a--u", info.RecordingID)

	rec = serve(t, h, http.MethodPost, "/api/v1/recordings/r1--EG_a--u/stop", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "r1--EG_a--u", svc.lastArg)

	rec = serve(t, h, http.MethodGet, "/api/v1/recordings/r1--EG_a--u", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h, http.MethodGet, "/api/v1/recordings?roomId=r1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r1", svc.listRoom)

	rec = serve(t, h, http.MethodDelete, "/api/v1/recordings/r1--EG_a--u", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStartRecording_BadBodies(t *testing.T) {
	h := NewServer(newTestService(), Config{}).Handler()

	for _, body := range []string{`{`, `{"roomId":"r1","extra":1}`, `{}`} {
		rec := serve(t, h, http.MethodPost, "/api/v1/recordings", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, codeInvalidRequest, decodeProblem(t, rec).Code)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{model.RoomNotFound("r1"), http.StatusNotFound},
		{model.RecordingNotFound("x"), http.StatusNotFound},
		{model.RoomHasNoParticipants("r1"), http.StatusConflict},
		{model.RecordingAlreadyStarted("r1"), http.StatusConflict},
		{model.RecordingAlreadyStopped("x"), http.StatusConflict},
		{model.RecordingCannotBeStoppedWhileStarting("x"), http.StatusConflict},
		{model.RecordingNotStopped("x"), http.StatusConflict},
		{model.InvalidRecordingID("x", "expected 3 parts, got 1"), http.StatusBadRequest},
		{model.InvalidRoomID("a b"), http.StatusBadRequest},
		{model.RecordingStartTimeout("r1"), http.StatusServiceUnavailable},
		{model.Internal("list egress", errors.New("dial tcp: refused")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		code := model.CodeOf(tc.err)
		t.Run(string(code), func(t *testing.T) {
			svc := newTestService()
			svc.err = tc.err
			rec := serve(t, NewServer(svc, Config{}).Handler(), http.MethodPost, "/api/v1/recordings", `{"roomId":"r1"}`)

			assert.Equal(t, tc.status, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, string(code), p.Code)
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "internal error", p.Detail, "internal details stay in the logs")
			} else {
				assert.Equal(t, tc.err.Error(), p.Detail)
			}
		})
	}
}

func TestBulkDelete(t *testing.T) {
	svc := newTestService()
	svc.bulk = coordinator.BulkDeleteResult{
		Deleted:    []string{"a--EG_1--u"},
		NotDeleted: []coordinator.BulkDeleteFailure{{RecordingID: "b", Error: "invalid recording id 'b': expected 3 parts, got 1"}},
	}
	h := NewServer(svc, Config{}).Handler()

	rec := serve(t, h, http.MethodDelete, "/api/v1/recordings?recordingIds=a--EG_1--u,%20b,&recordingIds=c", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a--EG_1--u", "b", "c"}, svc.bulkIDs)
	assert.JSONEq(t, `{"deleted":["a--EG_1--u"],"notDeleted":[{"recordingId":"b","error":"invalid recording id 'b': expected 3 parts, got 1"}]}`, rec.Body.String())

	rec = serve(t, h, http.MethodDelete, "/api/v1/recordings", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoomRoutes(t *testing.T) {
	svc := newTestService()
	h := NewServer(svc, Config{}).Handler()

	rec := serve(t, h, http.MethodPost, "/api/v1/rooms", `{"roomName":"Daily","preferences":{"recording":{"enabled":true,"layout":"speaker"}}}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Daily", svc.createdIn.RoomName)
	assert.Equal(t, "speaker", svc.createdIn.Preferences.Recording.Layout)

	rec = serve(t, h, http.MethodGet, "/api/v1/rooms", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h, http.MethodDelete, "/api/v1/rooms/r1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "r1", svc.lastArg)

	svc.err = model.RoomNotFound("nope")
	rec = serve(t, h, http.MethodGet, "/api/v1/rooms/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, "room 'nope' does not exist", p.Detail)
	assert.Equal(t, "/api/v1/rooms/nope", p.Instance)
	assert.NotEmpty(t, p.RequestID)
}

func TestHealthAndMetrics(t *testing.T) {
	healthy := NewServer(newTestService(), Config{},
		WithHealthCheck("redis", func(context.Context) error { return nil })).Handler()
	rec := serve(t, healthy, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"redis":"ok"}}`, rec.Body.String())

	degraded := NewServer(newTestService(), Config{},
		WithHealthCheck("redis", func(context.Context) error { return errors.New("connection refused") })).Handler()
	rec = serve(t, degraded, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(t, healthy, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "meetd_http_requests_in_flight")
}

func TestWebhookMount(t *testing.T) {
	called := false
	hook := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	h := NewServer(newTestService(), Config{}, WithWebhookHandler(hook)).Handler()

	rec := serve(t, h, http.MethodPost, "/webhooks/livekit", "{}")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRateLimitAppliesToAPI(t *testing.T) {
	h := NewServer(newTestService(), Config{RateLimit: 1}).Handler()

	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodGet, "/api/v1/rooms", "").Code)
	rec := serve(t, h, http.MethodGet, "/api/v1/rooms", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decodeProblem(t, rec).Code)

	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodGet, "/healthz", "").Code, "health is not limited")
}
