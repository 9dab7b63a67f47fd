package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ventaflow/scheduling/internal/domain/entities"
	"github.com/ventaflow/scheduling/internal/domain/providers"
	apperrors "github.com/ventaflow/scheduling/pkg/errors"
)

// GoogleAdapter implements CalendarProvider against the Google Calendar
// REST API (freebusy for pulls, events for pushes).
type GoogleAdapter struct {
	accessToken string
	client      *http.Client
	baseURL     string
}

// NewGoogleAdapter creates a new Google Calendar adapter for one tenant's
// access token
func NewGoogleAdapter(accessToken string, timeout time.Duration) providers.CalendarProvider {
	return &GoogleAdapter{
		accessToken: accessToken,
		client:      &http.Client{Timeout: timeout},
		baseURL:     "https://www.googleapis.com/calendar/v3",
	}
}

// PullBusyIntervals enumerates busy periods via the events list endpoint,
// which exposes stable event identifiers (freebusy does not).
func (a *GoogleAdapter) PullBusyIntervals(ctx context.Context, ref providers.CalendarRef, window entities.Interval) ([]providers.BusyInterval, error) {
	url := fmt.Sprintf("%s/calendars/%s/events?timeMin=%s&timeMax=%s&singleEvents=true&orderBy=startTime",
		a.baseURL,
		ref.CalendarID,
		window.Start.UTC().Format(time.RFC3339),
		window.End.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build request", err)
	}
	a.addHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.NewUnavailableError("google calendar unreachable", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var result struct {
		Items []struct {
			ID           string `json:"id"`
			Status       string `json:"status"`
			Summary      string `json:"summary"`
			Transparency string `json:"transparency"`
			Start        struct {
				DateTime time.Time `json:"dateTime"`
			} `json:"start"`
			End struct {
				DateTime time.Time `json:"dateTime"`
			} `json:"end"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.NewExternalError("invalid google calendar response", err)
	}

	var busy []providers.BusyInterval
	for _, item := range result.Items {
		// Cancelled and free-transparency events do not obstruct
		if item.Status == "cancelled" || item.Transparency == "transparent" {
			continue
		}
		if item.Start.DateTime.IsZero() || item.End.DateTime.IsZero() {
			continue
		}
		busy = append(busy, providers.BusyInterval{
			ExternalID: item.ID,
			Start:      item.Start.DateTime.UTC(),
			End:        item.End.DateTime.UTC(),
			Summary:    item.Summary,
		})
	}
	return busy, nil
}

// PushEvent creates an event for the commitment and returns its id
func (a *GoogleAdapter) PushEvent(ctx context.Context, ref providers.CalendarRef, commitment *entities.Commitment) (string, error) {
	url := fmt.Sprintf("%s/calendars/%s/events", a.baseURL, ref.CalendarID)

	resp, err := a.doJSON(ctx, http.MethodPost, url, eventPayload(commitment))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", apperrors.NewExternalError("invalid google calendar response", err)
	}
	if created.ID == "" {
		return "", apperrors.NewExternalError("google calendar returned no event id", nil)
	}
	return created.ID, nil
}

// UpdateEvent moves or edits an existing event
func (a *GoogleAdapter) UpdateEvent(ctx context.Context, ref providers.CalendarRef, externalID string, commitment *entities.Commitment) error {
	url := fmt.Sprintf("%s/calendars/%s/events/%s", a.baseURL, ref.CalendarID, externalID)

	resp, err := a.doJSON(ctx, http.MethodPut, url, eventPayload(commitment))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return classifyStatus(resp.StatusCode)
}

// DeleteEvent removes an event; a 404/410 is treated as already deleted
func (a *GoogleAdapter) DeleteEvent(ctx context.Context, ref providers.CalendarRef, externalID string) error {
	url := fmt.Sprintf("%s/calendars/%s/events/%s", a.baseURL, ref.CalendarID, externalID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to build request", err)
	}
	a.addHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return apperrors.NewUnavailableError("google calendar unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil
	}
	return classifyStatus(resp.StatusCode)
}

func (a *GoogleAdapter) doJSON(ctx context.Context, method, url string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build request", err)
	}
	a.addHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.NewUnavailableError("google calendar unreachable", err)
	}
	return resp, nil
}

func (a *GoogleAdapter) addHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", a.accessToken))
	req.Header.Set("Content-Type", "application/json")
}

func eventPayload(commitment *entities.Commitment) map[string]interface{} {
	summary := "VentaFlow booking"
	if commitment.ContactRef != "" {
		summary = fmt.Sprintf("VentaFlow booking: %s", commitment.ContactRef)
	}
	return map[string]interface{}{
		"summary":     summary,
		"description": commitment.Notes,
		"start":       map[string]string{"dateTime": commitment.StartAt.UTC().Format(time.RFC3339)},
		"end":         map[string]string{"dateTime": commitment.EndAt.UTC().Format(time.RFC3339)},
	}
}

// classifyStatus maps provider HTTP statuses onto the error taxonomy:
// 401/403 unauthorized, 429 rate limited, 5xx unavailable.
func classifyStatus(statusCode int) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return apperrors.NewUnauthorizedError("google calendar grant rejected")
	case statusCode == http.StatusTooManyRequests:
		return apperrors.NewRateLimitedError("google calendar rate limited", nil)
	case statusCode >= 500:
		return apperrors.NewUnavailableError(fmt.Sprintf("google calendar error: status %d", statusCode), nil)
	default:
		return apperrors.NewExternalError(fmt.Sprintf("google calendar error: status %d", statusCode), nil)
	}
}
