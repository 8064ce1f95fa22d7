package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serverAddress = "http://localhost:8080"

// Default operator credentials; the server must be started with matching
// FUND_API_KEY / FUND_API_SECRET / FUND_ADMIN_KEYS values.
const (
	defaultAPIKey    = "ops-api-key"
	defaultAPISecret = "ops-api-secret"
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// simulationClient handles HTTP communication with the transfer-agent API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// newSimulationClient creates a client and authenticates against the API
func newSimulationClient() (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	apiKey := os.Getenv("FUND_API_KEY")
	if apiKey == "" {
		apiKey = defaultAPIKey
	}
	apiSecret := os.Getenv("FUND_API_SECRET")
	if apiSecret == "" {
		apiSecret = defaultAPISecret
	}

	body, err := json.Marshal(map[string]string{
		"api_key":    apiKey,
		"api_secret": apiSecret,
	})
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var envelope struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", err
	}

	return envelope.Data.Token, nil
}

// post sends an authenticated POST request and decodes the response
// envelope into out when it is non-nil
func (sc *simulationClient) post(path string, payload interface{}, idempotencyKey string, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, sc.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sc.authToken)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s failed with status: %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Data, out)
}

// get sends an authenticated GET request and decodes the response
// envelope into out
func (sc *simulationClient) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, sc.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+sc.authToken)

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed with status: %d", path, resp.StatusCode)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Data, out)
}

// main drives a full transfer-agent cycle against a running server:
// whitelist accounts, submit purchase and liquidation requests, run an
// end-of-day batch and report the resulting balances and dividends.
func main() {
	sc, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create simulation client")
	}
	log.Info().Msg("authenticated with transfer-agent API")

	accounts := []string{
		"ACC_" + uuid.New().String(),
		"ACC_" + uuid.New().String(),
		"ACC_" + uuid.New().String(),
	}

	// Whitelist accounts
	for _, account := range accounts {
		if err := sc.post("/api/v1/internal/accounts", map[string]string{"account": account}, "", nil); err != nil {
			log.Fatal().Err(err).Str("account", account).Msg("failed to whitelist account")
		}
	}
	log.Info().Int("count", len(accounts)).Msg("whitelisted investor accounts")

	// Submit purchase requests
	for i, account := range accounts {
		payload := map[string]interface{}{
			"account": account,
			"type":    "CASH_PURCHASE",
			"amount":  uint64((i + 1) * 10_000_000),
		}
		if err := sc.post("/api/v1/transactions", payload, uuid.New().String(), nil); err != nil {
			log.Fatal().Err(err).Str("account", account).Msg("failed to submit purchase request")
		}
	}
	log.Info().Msg("submitted purchase requests")

	// Run end of day: settle purchases and distribute a dividend
	var result struct {
		AccountsProcessed   int `json:"accounts_processed"`
		TransactionsSettled int `json:"transactions_settled"`
		DividendsApplied    int `json:"dividends_applied"`
	}
	eod := map[string]interface{}{
		"accounts":    accounts,
		"cutoff_date": time.Now().Format(time.RFC3339),
		"rate":        25,
		"price":       10_000,
	}
	if err := sc.post("/api/v1/internal/end-of-day", eod, "", &result); err != nil {
		log.Fatal().Err(err).Msg("end of day batch failed")
	}
	log.Info().
		Int("accounts_processed", result.AccountsProcessed).
		Int("transactions_settled", result.TransactionsSettled).
		Int("dividends_applied", result.DividendsApplied).
		Msg("end of day batch completed")

	// Submit a liquidation for the first account and settle it
	liquidation := map[string]interface{}{
		"account": accounts[0],
		"type":    "FULL_LIQUIDATION",
	}
	if err := sc.post("/api/v1/transactions", liquidation, uuid.New().String(), nil); err != nil {
		log.Fatal().Err(err).Msg("failed to submit liquidation request")
	}

	settle := map[string]interface{}{
		"accounts":    accounts[:1],
		"cutoff_date": time.Now().Format(time.RFC3339),
		"price":       10_000,
	}
	if err := sc.post("/api/v1/internal/settlement", settle, "", &result); err != nil {
		log.Fatal().Err(err).Msg("settlement batch failed")
	}
	log.Info().
		Int("transactions_settled", result.TransactionsSettled).
		Msg("liquidation settled")

	// Report final balances and dividend history
	for _, account := range accounts {
		var balance struct {
			Shares    uint64 `json:"shares"`
			LastPrice uint64 `json:"last_price"`
		}
		if err := sc.get(fmt.Sprintf("/api/v1/accounts/%s/balance", account), &balance); err != nil {
			log.Fatal().Err(err).Str("account", account).Msg("failed to fetch balance")
		}

		var dividends []struct {
			ShareDelta uint64 `json:"share_delta"`
			CashAmount string `json:"cash_amount"`
		}
		if err := sc.get(fmt.Sprintf("/api/v1/accounts/%s/dividends", account), &dividends); err != nil {
			log.Fatal().Err(err).Str("account", account).Msg("failed to fetch dividends")
		}

		log.Info().
			Str("account", account).
			Uint64("shares", balance.Shares).
			Int("dividends", len(dividends)).
			Msg("final account state")
	}

	log.Info().Msg("simulation completed")
}
