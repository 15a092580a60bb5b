package lab_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetlabhq/vetnotify/modules/lab"
	"github.com/vetlabhq/vetnotify/pkg/notify"
)

func newTestServer(t *testing.T) (*httptest.Server, *fixture) {
	t.Helper()

	f := newFixture(t, "")
	srv := httptest.NewServer(lab.Router(f.svc, f.storage))
	t.Cleanup(srv.Close)
	return srv, f
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRouterSampleFlow(t *testing.T) {
	t.Parallel()

	srv, f := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/samples", receivedSample())
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var queued struct {
		DeliveryID string `json:"delivery_id"`
		TaskID     string `json:"task_id"`
	}
	decodeBody(t, resp, &queued)
	assert.NotEmpty(t, queued.DeliveryID)
	assert.NotEmpty(t, queued.TaskID)

	t.Run("get delivery by id", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/deliveries/"+queued.DeliveryID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var delivery notify.Delivery
		decodeBody(t, resp, &delivery)
		assert.Equal(t, notify.StatusQueued, delivery.Status)
		assert.Equal(t, notify.TypeSampleReceived, delivery.Type)
	})

	t.Run("list filters by status", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/deliveries?status=queued", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var deliveries []notify.Delivery
		decodeBody(t, resp, &deliveries)
		require.Len(t, deliveries, 1)

		resp = doJSON(t, http.MethodGet, srv.URL+"/deliveries?status=failed", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &deliveries)
		assert.Empty(t, deliveries)
	})

	t.Run("reject sample queues rejection notice", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/samples/s-1/reject", map[string]string{
			"reason": "hemolyzed specimen",
		})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		sample, err := f.store.GetSample("s-1")
		require.NoError(t, err)
		assert.Equal(t, lab.SampleStatusRejected, sample.Status)
	})

	t.Run("reject unknown sample", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/samples/nope/reject", map[string]string{"reason": "x"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown delivery id", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/deliveries/00000000-0000-0000-0000-000000000001", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp = doJSON(t, http.MethodGet, srv.URL+"/deliveries/not-a-uuid", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRouterPreferences(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	t.Run("get materializes defaults", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/preferences/vet-1", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var pref notify.Preference
		decodeBody(t, resp, &pref)
		assert.Equal(t, "vet-1", pref.RecipientRef)
		assert.True(t, pref.OnSampleReceived)
		assert.True(t, pref.IncludeAttachments)
	})

	t.Run("update then suppressed event", func(t *testing.T) {
		pref := notify.DefaultPreference("vet-1")
		pref.OnSampleReceived = false

		resp := doJSON(t, http.MethodPut, srv.URL+"/preferences/vet-1", pref)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var updated notify.Preference
		decodeBody(t, resp, &updated)
		assert.False(t, updated.OnSampleReceived)

		resp = doJSON(t, http.MethodPost, srv.URL+"/samples", receivedSample())
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]any
		decodeBody(t, resp, &result)
		assert.Equal(t, true, result["skipped"])
	})
}

func TestRouterRegisterVeterinarian(t *testing.T) {
	t.Parallel()

	srv, f := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/veterinarians", lab.Veterinarian{
		Name:   "Dr. Chen",
		Email:  "chen@clinic.example.com",
		Clinic: "Westside Animal Hospital",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var vet lab.Veterinarian
	decodeBody(t, resp, &vet)
	require.NotEmpty(t, vet.ID, "an id is assigned when absent")

	stored, err := f.store.GetVeterinarian(vet.ID)
	require.NoError(t, err)
	assert.Equal(t, "chen@clinic.example.com", stored.Email)
}
