package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vraagmijnoverheid/woo-web/internal/models"
)

// Backend is a JSON-over-HTTP client to the Woo backend. It owns the assistant, the persisted
// conversations and the request lifecycle; this client only relays.
type Backend struct {
	baseURL string
	client  *http.Client

	logger *slog.Logger
}

// APIError is returned for every non-2xx backend response.
type APIError struct {
	StatusCode int
	Message    string
}

type sendMessageRequest struct {
	ConversationID *int   `json:"conversation_id"`
	Message        string `json:"message"`
}

type finalizeRequest struct {
	Email string `json:"email,omitempty"`
}

type createQuestionRequest struct {
	Question string `json:"question"`
}

type createQuestionResponse struct {
	ID int `json:"id"`
}

type searchRequest struct {
	Query            string `json:"query"`
	IncludeNonPublic bool   `json:"include_non_public"`
}

type errorResponse struct {
	Error string `json:"error"`
}

const defaultBackendTimeout = 30 * time.Second

// NewBackend creates a client for the backend at baseURL, e.g. http://localhost:8000.
func NewBackend(baseURL string, logger *slog.Logger) Backend {
	return Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultBackendTimeout},
		logger:  logger.With(slog.String("module", "backend")),
	}
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// Conversation fetches a persisted conversation with its messages and request.
func (b Backend) Conversation(ctx context.Context, id int) (models.Conversation, error) {
	var conv models.Conversation
	if err := b.do(ctx, http.MethodGet, fmt.Sprintf("/api/conversations/%d/", id), nil, &conv); err != nil {
		return models.Conversation{}, fmt.Errorf("failed to get conversation %d: %w", id, err)
	}
	return conv, nil
}

// SendMessage posts a message and waits for the complete assistant turn. A conversationID of 0
// starts a new conversation.
func (b Backend) SendMessage(ctx context.Context, conversationID int, message string) (models.SendResult, error) {
	req := sendMessageRequest{Message: message}
	if conversationID != 0 {
		req.ConversationID = &conversationID
	}

	var res models.SendResult
	if err := b.do(ctx, http.MethodPost, "/api/conversations/send-message/", req, &res); err != nil {
		return models.SendResult{}, fmt.Errorf("failed to send message: %w", err)
	}
	return res, nil
}

// FinalizeRequest submits the request. The email is optional.
func (b Backend) FinalizeRequest(ctx context.Context, requestID int, email string) error {
	path := fmt.Sprintf("/api/woo-requests/%d/finalize/", requestID)
	if err := b.do(ctx, http.MethodPost, path, finalizeRequest{Email: email}, nil); err != nil {
		return fmt.Errorf("failed to finalize request %d: %w", requestID, err)
	}
	return nil
}

// CreateQuestion adds a question to a request and returns the id the backend assigned to it.
func (b Backend) CreateQuestion(ctx context.Context, requestID int, question string) (int, error) {
	path := fmt.Sprintf("/api/woo-requests/%d/questions/", requestID)
	var res createQuestionResponse
	if err := b.do(ctx, http.MethodPost, path, createQuestionRequest{Question: question}, &res); err != nil {
		return 0, fmt.Errorf("failed to create question: %w", err)
	}
	return res.ID, nil
}

// SearchDocuments runs a query against the backend's document index.
func (b Backend) SearchDocuments(ctx context.Context, query string, includeNonPublic bool) ([]models.SearchResult, error) {
	var res []models.SearchResult
	req := searchRequest{Query: query, IncludeNonPublic: includeNonPublic}
	if err := b.do(ctx, http.MethodPost, "/api/documents/search/", req, &res); err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	return res, nil
}

func (b Backend) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		b.logger.Debug("Request Body", slog.String("path", path), slog.String("body", string(jsonBody)))
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var res errorResponse
	if json.Unmarshal(body, &res) == nil && res.Error != "" {
		apiErr.Message = res.Error
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}
