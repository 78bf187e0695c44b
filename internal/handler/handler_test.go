package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Dan9191/wallet-service/internal/config"
	"github.com/Dan9191/wallet-service/internal/flow"
	"github.com/Dan9191/wallet-service/internal/models"
	"github.com/Dan9191/wallet-service/internal/repository"
	"github.com/Dan9191/wallet-service/internal/service"
	"github.com/Dan9191/wallet-service/internal/states"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	router *mux.Router
	states *states.Table
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	log := logrus.New()
	log.SetOutput(io.Discard)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := &config.Config{JWTSecret: "secret", AdminPasswordHash: string(hash), Currency: "EUR"}

	store, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)
	table := states.NewTable()
	svc := service.NewService(store, table, log, cfg, nil)
	flows := flow.NewManager(svc, time.Minute, log)
	env := &testEnv{router: NewRouter(NewHandler(svc, flows, table, cfg, log), cfg), states: table}

	rec := env.do(t, http.MethodPost, "/login", map[string]string{"password": "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	env.token = body["token"]
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func sensorPath(id string) string {
	return "/api/sensors/" + url.PathEscape(id)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	assert.NotEmpty(t, env.token)

	env.token = ""
	rec := env.do(t, http.MethodPost, "/login", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/sensors", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWizardToSensorsAndSetAmount(t *testing.T) {
	env := newTestEnv(t)
	env.states.Set("sensor.btc_eur", "20000", nil)

	rec := env.do(t, http.MethodPost, "/api/flows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res flow.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, flow.StepUser, res.StepID)

	rec = env.do(t, http.MethodPost, "/api/flows/"+res.FlowID, map[string]string{"name": "binance", "type": "crypto"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/flows/"+res.FlowID, map[string]interface{}{
		"item_name": "btc", "amount": "0.5", "entity_id": "sensor.btc_eur", "add_another": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, flow.ResultCreateEntry, res.Type)

	rec = env.do(t, http.MethodGet, sensorPath("wallet_binance_value btc"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var value models.SensorState
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&value))
	assert.Equal(t, "10000", value.State)

	rec = env.do(t, http.MethodPost, "/api/services/wallet/set_amount", map[string]interface{}{
		"entity_id": "wallet_binance_amount btc", "value": 1.25,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, sensorPath("wallet_binance_amount btc"), nil)
	var amount models.SensorState
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&amount))
	assert.Equal(t, "1.25", amount.State)

	rec = env.do(t, http.MethodPost, "/api/services/wallet/set_amount", map[string]interface{}{
		"entity_id": "wallet_binance_amount doge", "value": 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/entries", nil)
	var entries []models.ConfigEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.Len(t, entries, 1)

	rec = env.do(t, http.MethodDelete, "/api/entries/"+entries[0].EntryID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, sensorPath("wallet_binance_amount btc"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFlowNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/flows/missing", map[string]string{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStates(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/states/sensor.eth_eur", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/states/sensor.eth_eur", map[string]interface{}{
		"state": "1800.2", "attributes": map[string]string{"unit_of_measurement": "EUR"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/states/sensor.eth_eur", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var s states.State
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&s))
	assert.Equal(t, "1800.2", s.State)
	assert.Equal(t, "EUR", s.Attributes["unit_of_measurement"])
}

func TestSetAmountRequiresValue(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/flows", nil)
	var res flow.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	env.do(t, http.MethodPost, "/api/flows/"+res.FlowID, map[string]string{"name": "w", "type": "crypto"})
	rec = env.do(t, http.MethodPost, "/api/flows/"+res.FlowID, map[string]interface{}{
		"item_name": "btc", "amount": "5", "entity_id": "sensor.btc_eur",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/services/wallet/set_amount", map[string]interface{}{
		"entity_id": "wallet_w_amount btc",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "value is required")

	rec = env.do(t, http.MethodGet, sensorPath("wallet_w_amount btc"), nil)
	var amount models.SensorState
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&amount))
	assert.Equal(t, "5", amount.State)
}
