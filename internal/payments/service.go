package payments

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/clouddrivehq/clouddrive-backend/internal/notifications"
	"github.com/clouddrivehq/clouddrive-backend/pkg/config"
	"github.com/clouddrivehq/clouddrive-backend/pkg/db"
	"github.com/clouddrivehq/clouddrive-backend/pkg/db/models"
	"github.com/clouddrivehq/clouddrive-backend/pkg/enums"
	pkgerrors "github.com/clouddrivehq/clouddrive-backend/pkg/errors"
	"github.com/clouddrivehq/clouddrive-backend/pkg/pagination"
	"github.com/clouddrivehq/clouddrive-backend/pkg/upi"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Bank UTRs run 10 to 22 alphanumeric characters depending on the rail.
var referencePattern = regexp.MustCompile(`^[A-Za-z0-9]{10,22}$`)

const externalReferenceConstraint = "uq_payment_intents_external_reference"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type plansCatalog interface {
	GetPlan(ctx context.Context, id string) (*models.StoragePlan, error)
}

type subscriptionUpgrader interface {
	ApplyPlanUpgrade(ctx context.Context, tx *gorm.DB, userID uuid.UUID, planID string, cycle enums.BillingCycle, now time.Time) error
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) error
}

type paymentCounter interface {
	IncOutcome(status string)
	IncSubmitRetry()
}

type noopCounter struct{}

func (noopCounter) IncOutcome(string) {}
func (noopCounter) IncSubmitRetry()   {}

// Service drives the payment intent lifecycle from creation through admin
// resolution.
type Service interface {
	CreateIntent(ctx context.Context, userID uuid.UUID, input CreateIntentInput) (*models.PaymentIntent, error)
	GetIntent(ctx context.Context, userID, intentID uuid.UUID) (*models.PaymentIntent, error)
	QRPayload(ctx context.Context, userID, intentID uuid.UUID) (*QRPayload, error)
	SubmitReference(ctx context.Context, userID, intentID uuid.UUID, input SubmitReferenceInput) (*models.PaymentIntent, error)
	SubmitReferenceWithRetry(ctx context.Context, userID, intentID uuid.UUID, input SubmitReferenceInput) (*models.PaymentIntent, error)
	Cancel(ctx context.Context, userID, intentID uuid.UUID) (*models.PaymentIntent, error)
	ListForUser(ctx context.Context, params ListParams) (*ListResult, error)
	ListPending(ctx context.Context, limit int, cursor string) (*ListResult, error)
	FindByReference(ctx context.Context, reference string) (*models.PaymentIntent, error)
	ResolveVerification(ctx context.Context, adminID, intentID uuid.UUID, input ResolveInput) (*models.PaymentIntent, error)
	Refund(ctx context.Context, adminID, intentID uuid.UUID, note string) (*models.PaymentIntent, error)
	ExpireStale(ctx context.Context, now time.Time, batchSize int) (int, error)
}

// CreateIntentInput selects the plan being purchased.
type CreateIntentInput struct {
	PlanID       string
	BillingCycle enums.BillingCycle
}

// SubmitReferenceInput carries the payer's UTR and the UPI app it came from.
type SubmitReferenceInput struct {
	Reference string
	Channel   enums.PaymentChannel
	ProofURL  string
}

// ResolveInput records an admin verification decision.
type ResolveInput struct {
	Approve bool
	Note    string
}

// QRPayload is everything a client needs to render the pay screen.
type QRPayload struct {
	IntentID  uuid.UUID `json:"intent_id"`
	DeepLink  string    `json:"deep_link"`
	QRCodeURL string    `json:"qr_code_url"`
	PayeeVPA  string    `json:"payee_vpa"`
	PayeeName string    `json:"payee_name"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Note      string    `json:"note"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ListParams configures pagination for a user's payment history.
type ListParams struct {
	UserID uuid.UUID
	Status *enums.PaymentStatus
	Limit  int
	Cursor string
}

// ListResult wraps returned intents and the cursor for the next page.
type ListResult struct {
	Items  []models.PaymentIntent `json:"items"`
	Cursor string                 `json:"cursor"`
}

type service struct {
	repo          Repository
	plans         plansCatalog
	subscriptions subscriptionUpgrader
	notifier      notifier
	tx            txRunner
	metrics       paymentCounter
	cfg           config.PaymentsConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// ServiceParams wires payment service dependencies.
type ServiceParams struct {
	Repo          Repository
	Plans         plansCatalog
	Subscriptions subscriptionUpgrader
	Notifier      notifier
	Tx            txRunner
	Metrics       paymentCounter
	Config        config.PaymentsConfig
}

// NewService builds the payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if params.Plans == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "plans catalog required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscription upgrader required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Config.PayeeVPA == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payee vpa not configured")
	}

	metrics := params.Metrics
	if metrics == nil {
		metrics = noopCounter{}
	}

	return &service{
		repo:          params.Repo,
		plans:         params.Plans,
		subscriptions: params.Subscriptions,
		notifier:      params.Notifier,
		tx:            params.Tx,
		metrics:       metrics,
		cfg:           params.Config,
		now:           func() time.Time { return time.Now().UTC() },
		sleep:         sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *service) CreateIntent(ctx context.Context, userID uuid.UUID, input CreateIntentInput) (*models.PaymentIntent, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if strings.TrimSpace(input.PlanID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id required")
	}
	if !input.BillingCycle.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid billing cycle")
	}

	plan, err := s.plans.GetPlan(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.Status != enums.PlanStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan is not available for purchase")
	}
	if plan.IsFree() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan has no charge")
	}

	now := s.now()
	intent := &models.PaymentIntent{
		UserID:       userID,
		PlanID:       plan.ID,
		BillingCycle: input.BillingCycle,
		Amount:       plan.PriceFor(input.BillingCycle),
		CurrencyCode: s.cfg.Currency,
		Status:       enums.PaymentStatusCreated,
		PayeeVPA:     s.cfg.PayeeVPA,
		ExpiresAt:    now.Add(s.cfg.IntentTTL),
	}
	if err := s.repo.Create(ctx, intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	s.metrics.IncOutcome(enums.PaymentStatusCreated.String())
	intent.Plan = plan
	return intent, nil
}

func (s *service) GetIntent(ctx context.Context, userID, intentID uuid.UUID) (*models.PaymentIntent, error) {
	if userID == uuid.Nil || intentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and intent id required")
	}
	intent, err := s.repo.FindByIDForUser(ctx, intentID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment intent")
	}
	return intent, nil
}

func (s *service) QRPayload(ctx context.Context, userID, intentID uuid.UUID) (*QRPayload, error) {
	intent, err := s.GetIntent(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status.IsTerminal() || intent.Status == enums.PaymentStatusVerified {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is already resolved")
	}
	if s.now().After(intent.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment window has expired")
	}

	note := "CloudDrive upgrade"
	if intent.Plan != nil {
		note = "Upgrade to " + intent.Plan.Name
	}
	payment := upi.Payment{
		PayeeVPA:  intent.PayeeVPA,
		PayeeName: s.cfg.PayeeName,
		Amount:    intent.Amount,
		Currency:  intent.CurrencyCode,
		Note:      note,
	}
	link, err := upi.DeepLink(payment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build upi deep link")
	}
	qrURL, err := upi.QRCodeURL(payment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build qr code url")
	}

	return &QRPayload{
		IntentID:  intent.ID,
		DeepLink:  link,
		QRCodeURL: qrURL,
		PayeeVPA:  intent.PayeeVPA,
		PayeeName: s.cfg.PayeeName,
		Amount:    intent.Amount.StringFixed(2),
		Currency:  intent.CurrencyCode,
		Note:      note,
		ExpiresAt: intent.ExpiresAt,
	}, nil
}

// SubmitReference attaches the payer's UTR to the intent and moves it to
// pending_verification. Exactly one submission wins; replays with the same
// reference are answered with the stored intent.
func (s *service) SubmitReference(ctx context.Context, userID, intentID uuid.UUID, input SubmitReferenceInput) (*models.PaymentIntent, error) {
	reference := strings.ToUpper(strings.TrimSpace(input.Reference))
	if !referencePattern.MatchString(reference) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference must be 10 to 22 alphanumeric characters")
	}
	if !input.Channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment channel")
	}

	intent, err := s.GetIntent(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}
	if resolved := s.replayedSubmission(intent, reference); resolved != nil {
		return resolved, nil
	}
	if !intent.Status.CanTransitionTo(enums.PaymentStatusPendingVerification) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not awaiting a reference")
	}
	now := s.now()
	if now.After(intent.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment window has expired")
	}
	if s.cfg.MaxSubmitAttempts > 0 && intent.SubmitAttempts >= s.cfg.MaxSubmitAttempts {
		return nil, pkgerrors.New(pkgerrors.CodeRetriesExhausted, "submission attempts exhausted for this payment")
	}

	channel := input.Channel
	updates := map[string]any{
		"external_reference": reference,
		"channel":            channel,
		"submitted_at":       now,
		"submit_attempts":    gorm.Expr("submit_attempts + 1"),
	}
	proofURL := strings.TrimSpace(input.ProofURL)
	if proofURL != "" {
		updates["proof_url"] = proofURL
	}
	var won bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).UpdateStatusFrom(ctx, intent.ID, enums.PaymentStatusCreated, enums.PaymentStatusPendingVerification, updates)
		if err != nil {
			if db.IsUniqueViolation(err, externalReferenceConstraint) {
				return pkgerrors.New(pkgerrors.CodeDuplicateReference, "payment reference already used by another payment")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit payment reference")
		}
		won = ok
		if !ok {
			return nil
		}
		return s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			UserID:  intent.UserID,
			Type:    enums.NotificationTypePaymentSubmitted,
			Title:   "Payment submitted",
			Message: "We received your payment reference and will verify it shortly.",
		})
	})
	if err != nil {
		if pe := pkgerrors.As(err); pe != nil && pe.Code() == pkgerrors.CodeDuplicateReference {
			s.recordFailedAttempt(ctx, intent.ID)
		}
		return nil, err
	}
	if !won {
		// Lost the race. Reload and treat a matching reference as a replay.
		current, err := s.GetIntent(ctx, userID, intentID)
		if err != nil {
			return nil, err
		}
		if resolved := s.replayedSubmission(current, reference); resolved != nil {
			return resolved, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not awaiting a reference")
	}

	s.metrics.IncOutcome(enums.PaymentStatusPendingVerification.String())
	intent.Status = enums.PaymentStatusPendingVerification
	intent.ExternalReference = &reference
	intent.Channel = &channel
	intent.SubmittedAt = &now
	intent.SubmitAttempts++
	if proofURL != "" {
		intent.ProofURL = &proofURL
	}
	return intent, nil
}

// replayedSubmission returns the intent when it already carries the same
// reference, so retried submissions are idempotent.
func (s *service) replayedSubmission(intent *models.PaymentIntent, reference string) *models.PaymentIntent {
	if intent.Status != enums.PaymentStatusPendingVerification {
		return nil
	}
	if intent.ExternalReference != nil && *intent.ExternalReference == reference {
		return intent
	}
	return nil
}

// recordFailedAttempt burns one unit of the submission budget when a reference
// is refused without moving the intent. Best effort; the caller already holds
// the refusal.
func (s *service) recordFailedAttempt(ctx context.Context, intentID uuid.UUID) {
	_, _ = s.repo.UpdateStatusFrom(ctx, intentID, enums.PaymentStatusCreated, enums.PaymentStatusCreated, map[string]any{
		"submit_attempts": gorm.Expr("submit_attempts + 1"),
	})
}

// SubmitReferenceWithRetry retries transient submission failures with a
// doubling backoff, bounded by the configured attempt budget and timeout.
func (s *service) SubmitReferenceWithRetry(ctx context.Context, userID, intentID uuid.UUID, input SubmitReferenceInput) (*models.PaymentIntent, error) {
	attempts := s.cfg.MaxSubmitAttempts
	if attempts <= 0 {
		attempts = 1
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	defer cancel()

	var lastErr error
	backoff := s.cfg.BackoffBase
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, backoff); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeRetriesExhausted, lastErr, "submission timed out")
			}
			backoff *= 2
			s.metrics.IncSubmitRetry()
		}

		intent, err := s.SubmitReference(ctx, userID, intentID, input)
		if err == nil {
			return intent, nil
		}
		if !pkgerrors.Retryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeRetriesExhausted, lastErr, "submission retries exhausted")
}

// Cancel lets the owner abandon an intent before it is verified.
func (s *service) Cancel(ctx context.Context, userID, intentID uuid.UUID) (*models.PaymentIntent, error) {
	intent, err := s.GetIntent(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status == enums.PaymentStatusRejected {
		return intent, nil
	}
	if !intent.Status.CanTransitionTo(enums.PaymentStatusRejected) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment can no longer be cancelled")
	}

	now := s.now()
	reason := "cancelled by user"
	ok, err := s.repo.UpdateStatusFrom(ctx, intent.ID, intent.Status, enums.PaymentStatusRejected, map[string]any{
		"rejected_at":    now,
		"failure_reason": reason,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel payment intent")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment can no longer be cancelled")
	}

	s.metrics.IncOutcome(enums.PaymentStatusRejected.String())
	intent.Status = enums.PaymentStatusRejected
	intent.RejectedAt = &now
	intent.FailureReason = &reason
	return intent, nil
}

func (s *service) ListForUser(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status filter")
	}

	query := listIntentsParams{
		UserID: params.UserID,
		Status: params.Status,
		Limit:  params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListByUser(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment intents")
	}
	return listResult(rows, next), nil
}

// ListPending returns the admin verification queue.
func (s *service) ListPending(ctx context.Context, limit int, cursor string) (*ListResult, error) {
	var parsed *pagination.Cursor
	if cursor != "" {
		c, err := pagination.ParseCursor(cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		parsed = c
	}

	rows, next, err := s.repo.ListByStatus(ctx, enums.PaymentStatusPendingVerification, limit, parsed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending payments")
	}
	return listResult(rows, next), nil
}

// FindByReference lets an admin trace a bank UTR back to its payment, the
// usual starting point when reconciling against a bank statement.
func (s *service) FindByReference(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	normalized := strings.ToUpper(strings.TrimSpace(reference))
	if !referencePattern.MatchString(normalized) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference must be 10 to 22 alphanumeric characters")
	}

	intent, err := s.repo.FindByReference(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment found for reference")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find payment by reference")
	}
	return intent, nil
}

func listResult(rows []models.PaymentIntent, next *pagination.Cursor) *ListResult {
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}
}

// ResolveVerification applies an admin decision. Approval swaps the user's
// plan and marks the intent verified in one transaction, so a replay after a
// crash cannot upgrade without the matching verified row. Re-resolving with
// the same outcome is a no-op.
func (s *service) ResolveVerification(ctx context.Context, adminID, intentID uuid.UUID, input ResolveInput) (*models.PaymentIntent, error) {
	if adminID == uuid.Nil || intentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin and intent id required")
	}

	intent, err := s.repo.FindByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment intent")
	}

	if resolved, err := s.replayedResolution(intent, input); resolved != nil || err != nil {
		return resolved, err
	}
	if intent.Status != enums.PaymentStatusPendingVerification {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not awaiting verification")
	}

	now := s.now()
	note := strings.TrimSpace(input.Note)

	if input.Approve {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.subscriptions.ApplyPlanUpgrade(ctx, tx, intent.UserID, intent.PlanID, intent.BillingCycle, now); err != nil {
				return err
			}
			updates := map[string]any{
				"verified_at": now,
				"resolved_by": adminID,
			}
			if note != "" {
				updates["resolution_note"] = note
			}
			ok, err := s.repo.WithTx(tx).UpdateStatusFrom(ctx, intent.ID, enums.PaymentStatusPendingVerification, enums.PaymentStatusVerified, updates)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment verified")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "payment was resolved concurrently")
			}
			return s.notifier.Notify(ctx, tx, notifications.NotifyInput{
				UserID:  intent.UserID,
				Type:    enums.NotificationTypePaymentVerified,
				Title:   "Payment verified",
				Message: "Your storage upgrade is now active.",
			})
		})
		if err != nil {
			return nil, err
		}

		s.metrics.IncOutcome(enums.PaymentStatusVerified.String())
		intent.Status = enums.PaymentStatusVerified
		intent.VerifiedAt = &now
	} else {
		reason := note
		if reason == "" {
			reason = "rejected by admin"
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			updates := map[string]any{
				"rejected_at":    now,
				"resolved_by":    adminID,
				"failure_reason": reason,
			}
			if note != "" {
				updates["resolution_note"] = note
			}
			ok, err := s.repo.WithTx(tx).UpdateStatusFrom(ctx, intent.ID, enums.PaymentStatusPendingVerification, enums.PaymentStatusRejected, updates)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment rejected")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "payment was resolved concurrently")
			}
			return s.notifier.Notify(ctx, tx, notifications.NotifyInput{
				UserID:  intent.UserID,
				Type:    enums.NotificationTypePaymentRejected,
				Title:   "Payment rejected",
				Message: "We could not verify your payment. " + reason,
			})
		})
		if err != nil {
			return nil, err
		}

		s.metrics.IncOutcome(enums.PaymentStatusRejected.String())
		intent.Status = enums.PaymentStatusRejected
		intent.RejectedAt = &now
		intent.FailureReason = &reason
	}

	intent.ResolvedBy = &adminID
	if note != "" {
		intent.ResolutionNote = &note
	}
	return intent, nil
}

// replayedResolution answers a repeated resolution call. The same outcome
// returns the stored intent; a contradicting outcome is a conflict.
func (s *service) replayedResolution(intent *models.PaymentIntent, input ResolveInput) (*models.PaymentIntent, error) {
	switch intent.Status {
	case enums.PaymentStatusVerified, enums.PaymentStatusRefunded:
		if input.Approve {
			return intent, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment was already approved")
	case enums.PaymentStatusRejected:
		if !input.Approve {
			return intent, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment was already rejected")
	default:
		return nil, nil
	}
}

// Refund marks a verified payment refunded. The subscription is left alone;
// downgrades are a separate admin action.
func (s *service) Refund(ctx context.Context, adminID, intentID uuid.UUID, note string) (*models.PaymentIntent, error) {
	if adminID == uuid.Nil || intentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin and intent id required")
	}

	intent, err := s.repo.FindByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment intent")
	}
	if intent.Status == enums.PaymentStatusRefunded {
		return intent, nil
	}
	if !intent.Status.CanTransitionTo(enums.PaymentStatusRefunded) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only verified payments can be refunded")
	}

	now := s.now()
	trimmed := strings.TrimSpace(note)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updates := map[string]any{
			"refunded_at": now,
			"resolved_by": adminID,
		}
		if trimmed != "" {
			updates["resolution_note"] = trimmed
		}
		ok, err := s.repo.WithTx(tx).UpdateStatusFrom(ctx, intent.ID, enums.PaymentStatusVerified, enums.PaymentStatusRefunded, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment was resolved concurrently")
		}
		return s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			UserID:  intent.UserID,
			Type:    enums.NotificationTypePaymentRefunded,
			Title:   "Payment refunded",
			Message: "Your payment has been refunded.",
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncOutcome(enums.PaymentStatusRefunded.String())
	intent.Status = enums.PaymentStatusRefunded
	intent.RefundedAt = &now
	intent.ResolvedBy = &adminID
	if trimmed != "" {
		intent.ResolutionNote = &trimmed
	}
	return intent, nil
}

// ExpireStale rejects intents whose payment window lapsed before a reference
// was submitted and notifies their owners. Intents already awaiting
// verification are left alone, that wait has no deadline. Returns the number
// of intents expired.
func (s *service) ExpireStale(ctx context.Context, now time.Time, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	stale, err := s.repo.ListExpired(ctx, now, batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired intents")
	}

	expired := 0
	reason := "payment window expired"
	var errs []error
	for _, intent := range stale {
		intent := intent
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := s.repo.WithTx(tx).UpdateStatusFrom(ctx, intent.ID, intent.Status, enums.PaymentStatusRejected, map[string]any{
				"rejected_at":    now,
				"failure_reason": reason,
			})
			if err != nil {
				return err
			}
			if !ok {
				// Resolved between listing and expiry. Leave it alone.
				return nil
			}
			expired++
			s.metrics.IncOutcome("expired")
			return s.notifier.Notify(ctx, tx, notifications.NotifyInput{
				UserID:  intent.UserID,
				Type:    enums.NotificationTypePaymentExpired,
				Title:   "Payment expired",
				Message: "Your payment window lapsed before a reference was submitted.",
			})
		})
		if err != nil {
			// One stuck intent must not stall the rest of the sweep.
			errs = append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire payment intent"))
		}
	}
	return expired, multierr.Combine(errs...)
}
