package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/pkg/paystack"
)

const testWebhookSecret = "sk_test_webhook"

type gatewayStub struct {
	mu           sync.Mutex
	initCalls    int
	verifyCalls  int
	lastInit     paystack.InitializeRequest
	initErr      error
	verification *paystack.Verification
	verifyErr    error
}

func (g *gatewayStub) InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls++
	g.lastInit = req
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &paystack.Checkout{
		AuthorizationURL: "https://checkout.paystack.test/" + req.Reference,
		AccessCode:       "ac_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *gatewayStub) VerifyTransaction(ctx context.Context, reference string) (*paystack.Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if g.verification == nil {
		return &paystack.Verification{Reference: reference, Status: paystack.StatusPending}, nil
	}
	v := *g.verification
	v.Reference = reference
	return &v, nil
}

func (g *gatewayStub) VerifySignature(body []byte, signature string) bool {
	return paystack.ValidSignature(testWebhookSecret, body, signature)
}

func (g *gatewayStub) succeed(amountKobo int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	paidAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g.verification = &paystack.Verification{
		Status:     paystack.StatusSuccess,
		AmountKobo: amountKobo,
		Channel:    "card",
		PaidAt:     &paidAt,
		Raw:        []byte(`{"status":"success"}`),
	}
}

func (g *gatewayStub) counts() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initCalls, g.verifyCalls
}

type receiptStub struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *receiptStub) Generate(ctx context.Context, data domain.ReceiptData) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return "https://receipts.test/" + data.Reference + ".pdf", nil
}

func (r *receiptStub) Document(ctx context.Context, data domain.ReceiptData, receiptURL string) ([]byte, error) {
	return []byte("%PDF-1.3"), nil
}

type publisherStub struct {
	mu     sync.Mutex
	keys   []string
	events []interface{}
}

func (p *publisherStub) Publish(ctx context.Context, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	p.events = append(p.events, body)
	return nil
}

func (p *publisherStub) Close() {}

func (p *publisherStub) last(key string) interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.keys) - 1; i >= 0; i-- {
		if p.keys[i] == key {
			return p.events[i]
		}
	}
	return nil
}

func (p *publisherStub) published(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, k := range p.keys {
		if k == key {
			n++
		}
	}
	return n
}

type engineFixture struct {
	repo      *memoryRepo
	gateway   *gatewayStub
	receipts  *receiptStub
	publisher *publisherStub
	engine    *PaymentEngine
	student   *domain.User
	feeA      *domain.FeeCategory
	feeB      *domain.FeeCategory
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	repo := newMemoryRepo()
	f := &engineFixture{
		repo:      repo,
		gateway:   &gatewayStub{},
		receipts:  &receiptStub{},
		publisher: &publisherStub{},
		student:   repo.addStudent("ada@students.test"),
		feeA:      repo.addFee("Departmental dues", 5000, true),
		feeB:      repo.addFee("Faculty levy", 3000, true),
	}
	f.engine = NewPaymentEngine(repo, f.gateway, f.receipts, NewDispatcher(repo, nil), f.publisher, nil, PaymentEngineConfig{
		CallbackURL:    "https://paxify.test/payments/callback",
		GatewayTimeout: time.Second,
	})
	return f
}

func (f *engineFixture) initialize(t *testing.T, feeIDs ...uuid.UUID) *domain.PaymentResult {
	t.Helper()
	result, err := f.engine.Initialize(context.Background(), domain.InitializePaymentInput{UserID: f.student.ID, FeeIDs: feeIDs})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return result
}

func signedWebhook(reference string) ([]byte, string) {
	body := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"status":"success"}}`, reference))
	return body, hex.EncodeToString(paystack.Sign(testWebhookSecret, body))
}

func TestInitialize_SnapshotsItemsAndChargesTheirSum(t *testing.T) {
	f := newEngineFixture(t)

	result := f.initialize(t, f.feeA.ID, f.feeB.ID)

	if result.Status != domain.PaymentPending {
		t.Fatalf("expected pending, got %s", result.Status)
	}
	if !result.TotalAmount.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("expected total 8000, got %s", result.TotalAmount)
	}
	if result.AuthorizationURL == nil || *result.AuthorizationURL == "" {
		t.Fatal("expected an authorization url")
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	if got := f.gateway.lastInit.Amount; !got.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("gateway charged %s, want 8000", got)
	}
	if f.gateway.lastInit.Reference != result.Reference {
		t.Fatalf("gateway reference %q differs from intent %q", f.gateway.lastInit.Reference, result.Reference)
	}

	stored := f.repo.onlyPayment()
	if !stored.TotalAmount.Equal(stored.ItemsTotal()) {
		t.Fatalf("stored total %s does not equal item sum %s", stored.TotalAmount, stored.ItemsTotal())
	}
	if stored.Checkout().AuthorizationURL != *result.AuthorizationURL {
		t.Fatal("expected checkout details to be persisted for replays")
	}
}

func TestInitialize_FeeOrderDoesNotMatter(t *testing.T) {
	f := newEngineFixture(t)

	first := f.initialize(t, f.feeA.ID, f.feeB.ID)
	second := f.initialize(t, f.feeB.ID, f.feeA.ID)

	if first.Reference != second.Reference {
		t.Fatalf("expected same reference, got %s and %s", first.Reference, second.Reference)
	}
	if !second.Replayed {
		t.Fatal("expected second call to be a replay")
	}
	if second.AuthorizationURL == nil || *second.AuthorizationURL != *first.AuthorizationURL {
		t.Fatal("expected replay to return the stored authorization url")
	}
	if f.repo.paymentCount() != 1 {
		t.Fatalf("expected 1 payment, got %d", f.repo.paymentCount())
	}
	if inits, _ := f.gateway.counts(); inits != 1 {
		t.Fatalf("expected 1 gateway initialize, got %d", inits)
	}
}

func TestInitialize_DuplicateFeeIDsAreCollapsed(t *testing.T) {
	f := newEngineFixture(t)

	result := f.initialize(t, f.feeA.ID, f.feeA.ID, f.feeB.ID)

	if len(result.Items) != 2 || !result.TotalAmount.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("expected 2 items totalling 8000, got %d items totalling %s", len(result.Items), result.TotalAmount)
	}
}

func TestInitialize_ConcurrentRequestsShareOneIntent(t *testing.T) {
	f := newEngineFixture(t)

	const callers = 16
	var wg sync.WaitGroup
	refs := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids := []uuid.UUID{f.feeA.ID, f.feeB.ID}
			if i%2 == 1 {
				ids = []uuid.UUID{f.feeB.ID, f.feeA.ID}
			}
			result, err := f.engine.Initialize(context.Background(), domain.InitializePaymentInput{UserID: f.student.ID, FeeIDs: ids})
			errs[i] = err
			if result != nil {
				refs[i] = result.Reference
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
		if refs[i] != refs[0] {
			t.Fatalf("caller %d got reference %s, want %s", i, refs[i], refs[0])
		}
	}
	if f.repo.paymentCount() != 1 {
		t.Fatalf("expected exactly 1 payment row, got %d", f.repo.paymentCount())
	}
	if inits, _ := f.gateway.counts(); inits != 1 {
		t.Fatalf("expected exactly 1 gateway initialize, got %d", inits)
	}
}

func TestInitialize_RejectsInactiveOrUnknownFees(t *testing.T) {
	f := newEngineFixture(t)
	inactive := f.repo.addFee("Old levy", 1000, false)

	cases := []struct {
		name string
		ids  []uuid.UUID
	}{
		{"empty", nil},
		{"inactive", []uuid.UUID{f.feeA.ID, inactive.ID}},
		{"unknown", []uuid.UUID{uuid.New()}},
		{"nil id", []uuid.UUID{uuid.Nil}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Initialize(context.Background(), domain.InitializePaymentInput{UserID: f.student.ID, FeeIDs: tc.ids})
			if !errors.Is(err, ErrInvalidFeeSelection) {
				t.Fatalf("expected ErrInvalidFeeSelection, got %v", err)
			}
			if !IsValidation(err) {
				t.Fatalf("expected a validation error, got %T", err)
			}
		})
	}
	if f.repo.paymentCount() != 0 {
		t.Fatalf("expected no payments, got %d", f.repo.paymentCount())
	}
}

func TestInitialize_ClientKeyOwnedByAnotherUserConflicts(t *testing.T) {
	f := newEngineFixture(t)
	other := f.repo.addStudent("bola@students.test")

	if _, err := f.engine.Initialize(context.Background(), domain.InitializePaymentInput{
		UserID: f.student.ID, FeeIDs: []uuid.UUID{f.feeA.ID}, IdempotencyKey: "checkout-1",
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	_, err := f.engine.Initialize(context.Background(), domain.InitializePaymentInput{
		UserID: other.ID, FeeIDs: []uuid.UUID{f.feeA.ID}, IdempotencyKey: "checkout-1",
	})
	if !errors.Is(err, ErrIdempotencyKeyConflict) {
		t.Fatalf("expected ErrIdempotencyKeyConflict, got %v", err)
	}
}

func TestInitialize_GatewayFailureLeavesOneFailedIntent(t *testing.T) {
	f := newEngineFixture(t)
	f.gateway.initErr = errors.New("connection reset")

	_, err := f.engine.Initialize(context.Background(), domain.InitializePaymentInput{UserID: f.student.ID, FeeIDs: []uuid.UUID{f.feeA.ID}})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if f.repo.paymentCount() != 1 {
		t.Fatalf("expected 1 payment row, got %d", f.repo.paymentCount())
	}
	if status := f.repo.onlyPayment().Status; status != domain.PaymentFailed {
		t.Fatalf("expected failed intent, got %s", status)
	}
}

func TestInitialize_RetryAfterFailureCreatesNewIntent(t *testing.T) {
	f := newEngineFixture(t)
	f.gateway.initErr = errors.New("timeout")
	if _, err := f.engine.Initialize(context.Background(), domain.InitializePaymentInput{UserID: f.student.ID, FeeIDs: []uuid.UUID{f.feeA.ID}}); err == nil {
		t.Fatal("expected first attempt to fail")
	}
	failed := f.repo.onlyPayment()

	f.gateway.initErr = nil
	retry := f.initialize(t, f.feeA.ID)

	if retry.Reference == failed.Reference {
		t.Fatal("expected retry to use a new reference")
	}
	if retry.Status != domain.PaymentPending {
		t.Fatalf("expected pending retry, got %s", retry.Status)
	}
	if f.repo.paymentCount() != 2 {
		t.Fatalf("expected 2 payment rows, got %d", f.repo.paymentCount())
	}
	again, _ := f.repo.FindPaymentByID(context.Background(), failed.ID)
	if again.Status != domain.PaymentFailed {
		t.Fatalf("failed intent changed to %s", again.Status)
	}
}

func TestInitialize_ResubmitAfterRetryReplaysTheRetry(t *testing.T) {
	f := newEngineFixture(t)
	f.gateway.initErr = errors.New("timeout")
	if _, err := f.engine.Initialize(context.Background(), domain.InitializePaymentInput{UserID: f.student.ID, FeeIDs: []uuid.UUID{f.feeA.ID}}); err == nil {
		t.Fatal("expected first attempt to fail")
	}
	f.gateway.initErr = nil
	retry := f.initialize(t, f.feeA.ID)

	pending := f.initialize(t, f.feeA.ID)
	if !pending.Replayed || pending.Reference != retry.Reference {
		t.Fatalf("expected replay of pending retry %s, got %s (replayed=%v)", retry.Reference, pending.Reference, pending.Replayed)
	}

	f.gateway.succeed(500000)
	if _, err := f.engine.ReconcileByReference(context.Background(), retry.Reference); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	again := f.initialize(t, f.feeA.ID)
	if !again.Replayed || again.Reference != retry.Reference {
		t.Fatalf("expected replay of completed retry %s, got %s (replayed=%v)", retry.Reference, again.Reference, again.Replayed)
	}
	if again.Status != domain.PaymentCompleted || again.AuthorizationURL != nil {
		t.Fatalf("expected completed replay without checkout url, got %+v", again)
	}
	if f.repo.paymentCount() != 2 {
		t.Fatalf("expected 2 payment rows, got %d", f.repo.paymentCount())
	}
	if inits, _ := f.gateway.counts(); inits != 2 {
		t.Fatalf("expected 2 gateway initializes, got %d", inits)
	}
}

func TestInitialize_RetryThatFailsAgainGetsAnotherIntent(t *testing.T) {
	f := newEngineFixture(t)
	f.gateway.initErr = errors.New("timeout")
	for i := 0; i < 2; i++ {
		if _, err := f.engine.Initialize(context.Background(), domain.InitializePaymentInput{UserID: f.student.ID, FeeIDs: []uuid.UUID{f.feeA.ID}}); !errors.Is(err, ErrGatewayUnavailable) {
			t.Fatalf("attempt %d: expected ErrGatewayUnavailable, got %v", i+1, err)
		}
	}
	f.gateway.initErr = nil

	result := f.initialize(t, f.feeA.ID)
	if result.Replayed || result.Status != domain.PaymentPending {
		t.Fatalf("expected a fresh pending intent, got %+v", result)
	}
	if f.repo.paymentCount() != 3 {
		t.Fatalf("expected 3 payment rows, got %d", f.repo.paymentCount())
	}
}

func TestInitialize_ReferenceCollisionIsRegenerated(t *testing.T) {
	f := newEngineFixture(t)
	first := f.initialize(t, f.feeA.ID)

	calls := 0
	f.engine.newReference = func(now time.Time) (string, error) {
		calls++
		if calls == 1 {
			return first.Reference, nil
		}
		return NewPaymentReference(now)
	}

	second := f.initialize(t, f.feeB.ID)
	if second.Reference == first.Reference {
		t.Fatal("expected a regenerated reference")
	}
	if calls != 2 {
		t.Fatalf("expected 2 reference draws, got %d", calls)
	}
}

func TestWebhook_CompletesPaymentEndToEnd(t *testing.T) {
	f := newEngineFixture(t)
	intent := f.initialize(t, f.feeA.ID, f.feeB.ID)
	f.gateway.succeed(800000)

	body, signature := signedWebhook(intent.Reference)
	if err := f.engine.HandleWebhook(context.Background(), body, signature); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	stored, _ := f.repo.FindPaymentByReference(context.Background(), intent.Reference)
	if stored.Status != domain.PaymentCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
	if stored.PaidAt == nil {
		t.Fatal("expected paid_at to be set")
	}
	if stored.ReceiptURL == nil || *stored.ReceiptURL == "" {
		t.Fatal("expected a receipt url")
	}
	if f.publisher.published(domain.EventPaymentCompleted) != 1 {
		t.Fatal("expected one payment.completed event")
	}
	if len(f.repo.notifications) != 1 || f.repo.notifications[0].Type != domain.NotificationPaymentCompleted {
		t.Fatalf("expected one PAYMENT_COMPLETED notification, got %+v", f.repo.notifications)
	}
	found := false
	for _, action := range f.repo.auditActions() {
		if action == "payment_completed" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a payment_completed audit entry")
	}
}

func TestWebhook_InvalidSignatureChangesNothing(t *testing.T) {
	f := newEngineFixture(t)
	intent := f.initialize(t, f.feeA.ID)
	f.gateway.succeed(500000)

	body, _ := signedWebhook(intent.Reference)
	err := f.engine.HandleWebhook(context.Background(), body, "deadbeef")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if _, verifies := f.gateway.counts(); verifies != 0 {
		t.Fatalf("expected no gateway verify, got %d", verifies)
	}
	if status := f.repo.onlyPayment().Status; status != domain.PaymentPending {
		t.Fatalf("expected pending, got %s", status)
	}
}

func TestWebhook_IgnoresOtherEventsAndUnknownReferences(t *testing.T) {
	f := newEngineFixture(t)

	bodies := [][]byte{
		[]byte(`{"event":"transfer.success","data":{"reference":"x"}}`),
		[]byte(`not json`),
	}
	unknown, _ := signedWebhook("PAX-0-unknown")
	bodies = append(bodies, unknown)

	for _, body := range bodies {
		sig := hex.EncodeToString(paystack.Sign(testWebhookSecret, body))
		if err := f.engine.HandleWebhook(context.Background(), body, sig); err != nil {
			t.Fatalf("expected acknowledgement for %s, got %v", body, err)
		}
	}
}

func TestReconcile_IsIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	intent := f.initialize(t, f.feeA.ID)
	f.gateway.succeed(500000)

	first, err := f.engine.VerifyForUser(context.Background(), f.student.ID, intent.Reference)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	second, err := f.engine.VerifyForUser(context.Background(), f.student.ID, intent.Reference)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}

	if first.Status != domain.PaymentCompleted || second.Status != domain.PaymentCompleted {
		t.Fatalf("expected completed twice, got %s and %s", first.Status, second.Status)
	}
	if !first.PaidAt.Equal(*second.PaidAt) {
		t.Fatal("paid_at changed on second reconcile")
	}
	if *first.ReceiptURL != *second.ReceiptURL {
		t.Fatal("receipt url changed on second reconcile")
	}
	if f.receipts.calls != 1 {
		t.Fatalf("expected 1 receipt generation, got %d", f.receipts.calls)
	}
	if f.publisher.published(domain.EventPaymentCompleted) != 1 {
		t.Fatal("expected completion side effects to run once")
	}
}

func TestReconcile_ReceiptFailureKeepsPaymentCompleted(t *testing.T) {
	f := newEngineFixture(t)
	f.repo.assignments = append(f.repo.assignments, domain.FeeAssignment{
		ID:            uuid.New(),
		UserID:        f.student.ID,
		FeeCategoryID: f.feeA.ID,
		Status:        domain.AssignmentPending,
	})
	intent := f.initialize(t, f.feeA.ID)
	f.receipts.err = errors.New("object storage unreachable")
	f.gateway.succeed(500000)

	result, err := f.engine.ReconcileByReference(context.Background(), intent.Reference)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Status != domain.PaymentCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}

	stored := f.repo.onlyPayment()
	if stored.Status != domain.PaymentCompleted || stored.PaidAt == nil {
		t.Fatalf("expected completed with paid_at, got %s (paid_at=%v)", stored.Status, stored.PaidAt)
	}
	if stored.ReceiptURL != nil {
		t.Fatalf("expected no receipt url, got %q", *stored.ReceiptURL)
	}
	if f.receipts.calls != 1 {
		t.Fatalf("expected 1 receipt attempt, got %d", f.receipts.calls)
	}
	if status := f.repo.assignments[0].Status; status != domain.AssignmentPaid {
		t.Fatalf("expected assignment paid, got %s", status)
	}
	found := false
	for _, action := range f.repo.auditActions() {
		if action == "payment_completed" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a payment_completed audit entry")
	}
	if f.publisher.published(domain.EventPaymentCompleted) != 1 {
		t.Fatal("expected one payment.completed event")
	}
	event, ok := f.publisher.last(domain.EventPaymentCompleted).(domain.PaymentCompletedEvent)
	if !ok || event.ReceiptURL != "" {
		t.Fatalf("expected event without receipt url, got %+v", event)
	}
}

func TestReconcile_ConcurrentCompletionRunsSideEffectsOnce(t *testing.T) {
	f := newEngineFixture(t)
	intent := f.initialize(t, f.feeA.ID)
	f.gateway.succeed(500000)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.engine.ReconcileByReference(context.Background(), intent.Reference)
		}()
	}
	wg.Wait()

	if f.publisher.published(domain.EventPaymentCompleted) != 1 {
		t.Fatalf("expected one completion event, got %d", f.publisher.published(domain.EventPaymentCompleted))
	}
}

func TestReconcile_FailedIntentIsNeverRevived(t *testing.T) {
	f := newEngineFixture(t)
	intent := f.initialize(t, f.feeA.ID)
	f.gateway.verification = &paystack.Verification{Status: paystack.StatusFailed, Raw: []byte(`{"status":"failed"}`)}

	result, err := f.engine.ReconcileByReference(context.Background(), intent.Reference)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Status != domain.PaymentFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}

	f.gateway.succeed(500000)
	result, err = f.engine.ReconcileByReference(context.Background(), intent.Reference)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Status != domain.PaymentFailed {
		t.Fatalf("failed intent revived to %s", result.Status)
	}
	if f.publisher.published(domain.EventPaymentCompleted) != 0 {
		t.Fatal("expected no completion event")
	}
}

func TestReconcile_AmountMismatchFailsIntent(t *testing.T) {
	f := newEngineFixture(t)
	intent := f.initialize(t, f.feeA.ID)
	f.gateway.succeed(100)

	result, err := f.engine.ReconcileByReference(context.Background(), intent.Reference)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Status != domain.PaymentFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
}

func TestReconcile_GatewayErrorLeavesIntentPending(t *testing.T) {
	f := newEngineFixture(t)
	intent := f.initialize(t, f.feeA.ID)
	f.gateway.verifyErr = context.DeadlineExceeded

	_, err := f.engine.ReconcileByReference(context.Background(), intent.Reference)
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if status := f.repo.onlyPayment().Status; status != domain.PaymentPending {
		t.Fatalf("expected pending, got %s", status)
	}
}

func TestReconcile_NonFinalStatusLeavesIntentPending(t *testing.T) {
	statuses := []string{
		paystack.StatusAbandoned,
		paystack.StatusOngoing,
		paystack.StatusPending,
		paystack.StatusProcessing,
		paystack.StatusQueued,
	}
	for _, status := range statuses {
		t.Run(status, func(t *testing.T) {
			f := newEngineFixture(t)
			intent := f.initialize(t, f.feeA.ID)
			f.gateway.verification = &paystack.Verification{Status: status}

			result, err := f.engine.ReconcileByReference(context.Background(), intent.Reference)
			if err != nil {
				t.Fatalf("reconcile: %v", err)
			}
			if result.Status != domain.PaymentPending {
				t.Fatalf("expected pending, got %s", result.Status)
			}
		})
	}
}

func TestVerifyForUser_HidesOtherUsersPayments(t *testing.T) {
	f := newEngineFixture(t)
	intent := f.initialize(t, f.feeA.ID)
	other := f.repo.addStudent("chidi@students.test")

	if _, err := f.engine.VerifyForUser(context.Background(), other.ID, intent.Reference); err == nil {
		t.Fatal("expected an error for a foreign payment")
	}
}

func TestReceiptPDF_RequiresCompletedPayment(t *testing.T) {
	f := newEngineFixture(t)
	intent := f.initialize(t, f.feeA.ID)

	if _, _, err := f.engine.ReceiptPDF(context.Background(), f.student.ID, intent.PaymentID); !errors.Is(err, ErrReceiptUnavailable) {
		t.Fatalf("expected ErrReceiptUnavailable, got %v", err)
	}

	f.gateway.succeed(500000)
	if _, err := f.engine.ReconcileByReference(context.Background(), intent.Reference); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	doc, filename, err := f.engine.ReceiptPDF(context.Background(), f.student.ID, intent.PaymentID)
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if len(doc) == 0 || filename != "receipt-"+intent.Reference+".pdf" {
		t.Fatalf("unexpected receipt %q (%d bytes)", filename, len(doc))
	}
}

func TestReconcileStalePayments_ResolvesOldIntents(t *testing.T) {
	f := newEngineFixture(t)
	intent := f.initialize(t, f.feeA.ID)
	f.gateway.succeed(500000)
	f.engine.now = func() time.Time { return time.Now().Add(time.Hour) }

	resolved, err := f.engine.ReconcileStalePayments(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("reconcile stale: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("expected 1 resolved payment, got %d", resolved)
	}
	stored, _ := f.repo.FindPaymentByReference(context.Background(), intent.Reference)
	if stored.Status != domain.PaymentCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
}
