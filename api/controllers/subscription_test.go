package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/clouddrivehq/clouddrive-backend/internal/subscriptions"
	pkgerrors "github.com/clouddrivehq/clouddrive-backend/pkg/errors"
)

type testQuotaService struct {
	reserveFn func(ctx context.Context, userID uuid.UUID, sizeBytes int64) error
	releaseFn func(ctx context.Context, userID uuid.UUID, sizeBytes int64) error
	usageFn   func(ctx context.Context, userID uuid.UUID) (*subscriptions.Usage, error)
}

func (s *testQuotaService) CheckAndReserve(ctx context.Context, userID uuid.UUID, sizeBytes int64) error {
	if s.reserveFn != nil {
		return s.reserveFn(ctx, userID, sizeBytes)
	}
	return nil
}

func (s *testQuotaService) Release(ctx context.Context, userID uuid.UUID, sizeBytes int64) error {
	if s.releaseFn != nil {
		return s.releaseFn(ctx, userID, sizeBytes)
	}
	return nil
}

func (s *testQuotaService) Usage(ctx context.Context, userID uuid.UUID) (*subscriptions.Usage, error) {
	if s.usageFn != nil {
		return s.usageFn(ctx, userID)
	}
	return nil, nil
}

func TestQuotaReserveSuccess(t *testing.T) {
	userID := uuid.New()
	var gotSize int64
	svc := &testQuotaService{
		reserveFn: func(ctx context.Context, uid uuid.UUID, sizeBytes int64) error {
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			gotSize = sizeBytes
			return nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/quota/reserve", `{"size_bytes":1048576}`, userID.String())
	resp := httptest.NewRecorder()
	QuotaReserve(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotSize != 1048576 {
		t.Fatalf("unexpected size %d", gotSize)
	}
	var envelope struct {
		Data map[string]float64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["reserved_bytes"] != 1048576 {
		t.Fatalf("unexpected body %+v", envelope.Data)
	}
}

func TestQuotaReserveRejectsZeroSize(t *testing.T) {
	req := authedRequest(http.MethodPost, "/api/v1/quota/reserve", `{"size_bytes":0}`, uuid.NewString())
	resp := httptest.NewRecorder()
	QuotaReserve(&testQuotaService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestQuotaReserveQuotaExceeded(t *testing.T) {
	svc := &testQuotaService{
		reserveFn: func(ctx context.Context, uid uuid.UUID, sizeBytes int64) error {
			return pkgerrors.New(pkgerrors.CodeQuotaExceeded, "storage quota exceeded")
		},
	}
	req := authedRequest(http.MethodPost, "/api/v1/quota/reserve", `{"size_bytes":99}`, uuid.NewString())
	resp := httptest.NewRecorder()
	QuotaReserve(svc, testLogger())(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestQuotaReleaseSuccess(t *testing.T) {
	userID := uuid.New()
	var gotSize int64
	svc := &testQuotaService{
		releaseFn: func(ctx context.Context, uid uuid.UUID, sizeBytes int64) error {
			gotSize = sizeBytes
			return nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/quota/release", `{"size_bytes":2048}`, userID.String())
	resp := httptest.NewRecorder()
	QuotaRelease(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotSize != 2048 {
		t.Fatalf("unexpected size %d", gotSize)
	}
}

func TestSubscriptionUsageSuccess(t *testing.T) {
	userID := uuid.New()
	svc := &testQuotaService{
		usageFn: func(ctx context.Context, uid uuid.UUID) (*subscriptions.Usage, error) {
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			return &subscriptions.Usage{PlanID: "pro", StorageUsedBytes: 100, StorageBytes: 1000}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/subscription/usage", "", userID.String())
	resp := httptest.NewRecorder()
	SubscriptionUsage(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data subscriptions.Usage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.StorageUsedBytes != 100 || envelope.Data.StorageBytes != 1000 {
		t.Fatalf("unexpected usage %+v", envelope.Data)
	}
}

func TestSubscriptionUsageMissingAuth(t *testing.T) {
	req := authedRequest(http.MethodGet, "/api/v1/subscription/usage", "", "")
	resp := httptest.NewRecorder()
	SubscriptionUsage(&testQuotaService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
