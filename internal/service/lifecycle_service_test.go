package service

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"pterodactyl-service/internal/checkout"
	"pterodactyl-service/internal/models"
	"pterodactyl-service/internal/panel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	orders   map[int64]*models.Order
	packages map[int64]*models.Package
	accounts map[int64]*models.PanelAccount

	payments        []*models.Payment
	unpaidPayment   *models.Payment
	deletedPayments []int64

	cancelCalls    int
	cancelledAt    time.Time
	cancelReason   string
	uncancelCalls  int
	extendedDays   int
	statusUpdates  []string
	storedPassword string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:   make(map[int64]*models.Order),
		packages: make(map[int64]*models.Package),
		accounts: make(map[int64]*models.PanelAccount),
	}
}

func (f *fakeStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	return order, nil
}

func (f *fakeStore) GetPackageByID(ctx context.Context, id int64) (*models.Package, error) {
	pkg, ok := f.packages[id]
	if !ok {
		return nil, fmt.Errorf("package not found: %d", id)
	}
	return pkg, nil
}

func (f *fakeStore) CancelOrder(ctx context.Context, orderID int64, cancelledAt time.Time, reason string) error {
	f.cancelCalls++
	f.cancelledAt = cancelledAt
	f.cancelReason = reason
	f.orders[orderID].Status = models.OrderStatusCancelled
	return nil
}

func (f *fakeStore) UncancelOrder(ctx context.Context, orderID int64) error {
	f.uncancelCalls++
	f.orders[orderID].Status = models.OrderStatusActive
	return nil
}

func (f *fakeStore) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	f.statusUpdates = append(f.statusUpdates, status)
	f.orders[orderID].Status = status
	return nil
}

func (f *fakeStore) ExtendOrderDueDate(ctx context.Context, orderID int64, days int) error {
	f.extendedDays = days
	return nil
}

func (f *fakeStore) GetPanelAccount(ctx context.Context, userID int64) (*models.PanelAccount, error) {
	return f.accounts[userID], nil
}

func (f *fakeStore) CreatePanelAccount(ctx context.Context, account *models.PanelAccount) error {
	f.accounts[account.UserID] = account
	return nil
}

func (f *fakeStore) UpdatePanelAccountPassword(ctx context.Context, userID int64, password string) error {
	f.storedPassword = password
	return nil
}

func (f *fakeStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	payment.ID = int64(len(f.payments) + 1)
	f.payments = append(f.payments, payment)
	return nil
}

func (f *fakeStore) GetUnpaidPaymentByDueDate(ctx context.Context, orderID int64, dueDate time.Time) (*models.Payment, error) {
	return f.unpaidPayment, nil
}

func (f *fakeStore) DeletePayment(ctx context.Context, paymentID int64) error {
	f.deletedPayments = append(f.deletedPayments, paymentID)
	return nil
}

type fakePanel struct {
	server       *panel.Server
	createErr    error
	buildErr     error
	suspendErr   error
	deleteErr    error
	updateErr    error
	ssoURL       string
	ssoErr       error
	remoteUser   *panel.User
	createdUser  *panel.CreateUserRequest
	createCalls  int
	buildCalls   int
	suspendCalls int
	deleteCalls  int
	updateCalls  int
}

func (f *fakePanel) CreateServer(ctx context.Context, req *panel.CreateServerRequest) (*panel.Server, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &panel.Server{ID: 42, ExternalID: req.ExternalID}, nil
}

func (f *fakePanel) GetServerByExternalID(ctx context.Context, orderID int64) (*panel.Server, error) {
	if f.server == nil {
		return nil, &panel.APIError{StatusCode: http.StatusNotFound, Message: "not found"}
	}
	return f.server, nil
}

func (f *fakePanel) BuildServer(ctx context.Context, serverID int64, req *panel.BuildServerRequest) error {
	f.buildCalls++
	return f.buildErr
}

func (f *fakePanel) SuspendServer(ctx context.Context, serverID int64) error {
	f.suspendCalls++
	return f.suspendErr
}

func (f *fakePanel) UnsuspendServer(ctx context.Context, serverID int64) error {
	return nil
}

func (f *fakePanel) DeleteServer(ctx context.Context, serverID int64) error {
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakePanel) GetUserByEmail(ctx context.Context, email string) (*panel.User, error) {
	return f.remoteUser, nil
}

func (f *fakePanel) CreateUser(ctx context.Context, req *panel.CreateUserRequest) (*panel.User, error) {
	f.createdUser = req
	return &panel.User{ID: 7, Email: req.Email, Username: req.Username}, nil
}

func (f *fakePanel) UpdateUser(ctx context.Context, userID int64, req *panel.UpdateUserRequest) error {
	f.updateCalls++
	return f.updateErr
}

func (f *fakePanel) SSOLoginURL(ctx context.Context, panelUserID int64) (string, error) {
	if f.ssoErr != nil {
		return "", f.ssoErr
	}
	return f.ssoURL, nil
}

type fakeInventory struct {
	location     *models.Location
	resolveErr   error
	reserveErr   error
	reserveCalls int
	releaseCalls int
	available    []checkout.LocationOption
}

func (f *fakeInventory) ResolveLocation(ctx context.Context, order *models.Order) (*models.Location, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.location, nil
}

func (f *fakeInventory) Reserve(ctx context.Context, loc *models.Location) error {
	f.reserveCalls++
	return f.reserveErr
}

func (f *fakeInventory) Release(ctx context.Context, loc *models.Location) error {
	f.releaseCalls++
	return nil
}

func (f *fakeInventory) ListAvailable(ctx context.Context, pkg *models.Package) ([]checkout.LocationOption, error) {
	return f.available, nil
}

type fakePublisher struct {
	provisioned     int
	provisionFailed int
	serverStates    []string
	orderCancelled  int
	renewalInvoiced int
}

func (f *fakePublisher) PublishServerProvisioned(ctx context.Context, event *models.ServerProvisionedEvent) error {
	f.provisioned++
	return nil
}

func (f *fakePublisher) PublishProvisionFailed(ctx context.Context, event *models.ProvisionFailedEvent) error {
	f.provisionFailed++
	return nil
}

func (f *fakePublisher) PublishServerState(ctx context.Context, event *models.ServerStateEvent) error {
	f.serverStates = append(f.serverStates, event.EventType)
	return nil
}

func (f *fakePublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	f.orderCancelled++
	return nil
}

func (f *fakePublisher) PublishRenewalInvoiced(ctx context.Context, event *models.RenewalInvoicedEvent) error {
	f.renewalInvoiced++
	return nil
}

type fixture struct {
	store     *fakeStore
	panel     *fakePanel
	inventory *fakeInventory
	publisher *fakePublisher
	service   *LifecycleService
}

func newFixture() *fixture {
	store := newFakeStore()
	panelAPI := &fakePanel{}
	inventory := &fakeInventory{
		location: &models.Location{ID: 1, Name: "Frankfurt", Stock: 5},
	}
	publisher := &fakePublisher{}

	return &fixture{
		store:     store,
		panel:     panelAPI,
		inventory: inventory,
		publisher: publisher,
		service:   NewLifecycleService(store, panelAPI, inventory, NewPaymentService(store), publisher),
	}
}

func activeOrder() *models.Order {
	return &models.Order{
		ID:        10,
		UserID:    20,
		PackageID: 30,
		Name:      "Minecraft Server",
		Status:    models.OrderStatusActive,
		DueDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Options:   models.JSONMap{},
	}
}

func TestRenewValidatesFrequency(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()

	for _, frequency := range []int{0, -1, 13} {
		_, err := fx.service.Renew(context.Background(), 10, frequency)

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr, "frequency %d", frequency)
	}

	assert.Empty(t, fx.store.payments, "no payment may be generated for invalid input")
}

func TestRenewGeneratesInvoice(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.store.packages[30] = &models.Package{ID: 30, RenewalPrice: 10, PeriodDays: 30}

	payment, err := fx.service.Renew(context.Background(), 10, 3)
	require.NoError(t, err)

	assert.Equal(t, int64(30), payment.Amount)
	assert.Equal(t, "90", payment.Options["period"])
	assert.Equal(t, models.PaymentStatusUnpaid, payment.Status)

	extendedTo := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 90)
	assert.Contains(t, payment.Description, extendedTo.Format("02 Jan 2006"))

	// Renewal never moves the due date directly; settlement does.
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), fx.store.orders[10].DueDate)
	assert.Zero(t, fx.store.extendedDays)
	assert.Equal(t, 1, fx.publisher.renewalInvoiced)
}

func TestRenewRemovesDuplicateUnpaidInvoice(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.store.packages[30] = &models.Package{ID: 30, RenewalPrice: 10, PeriodDays: 30}
	fx.store.unpaidPayment = &models.Payment{ID: 99, OrderID: 10, Status: models.PaymentStatusUnpaid}

	_, err := fx.service.Renew(context.Background(), 10, 1)
	require.NoError(t, err)

	assert.Equal(t, []int64{99}, fx.store.deletedPayments)
	require.Len(t, fx.store.payments, 1)
}

func TestCancelAlreadyCancelled(t *testing.T) {
	fx := newFixture()
	order := activeOrder()
	order.Status = models.OrderStatusCancelled
	fx.store.orders[10] = order

	_, err := fx.service.Cancel(context.Background(), 10, time.Now(), "changed my mind")

	var conflictErr *StateConflictError
	require.ErrorAs(t, err, &conflictErr)

	assert.Zero(t, fx.store.cancelCalls, "no mutation on state conflict")
	assert.Empty(t, fx.store.payments)
	assert.Zero(t, fx.panel.deleteCalls, "panel must not be called")
}

func TestCancelWithoutFee(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.store.packages[30] = &models.Package{ID: 30, CancellationFee: 0}

	cancelledAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err := fx.service.Cancel(context.Background(), 10, cancelledAt, "no longer needed")
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Zero(t, result.FeePaymentID)
	assert.Equal(t, 1, fx.store.cancelCalls)
	assert.Equal(t, cancelledAt, fx.store.cancelledAt)
	assert.Equal(t, "no longer needed", fx.store.cancelReason)
	assert.Equal(t, models.OrderStatusCancelled, fx.store.orders[10].Status)
	assert.Empty(t, fx.store.payments, "no payment for fee-less cancellation")
	assert.Equal(t, 1, fx.publisher.orderCancelled)
}

func TestCancelWithFeeDefersCancellation(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.store.packages[30] = &models.Package{ID: 30, CancellationFee: 500}

	result, err := fx.service.Cancel(context.Background(), 10, time.Now(), "too expensive")
	require.NoError(t, err)

	assert.False(t, result.Cancelled)
	require.NotZero(t, result.FeePaymentID)

	require.Len(t, fx.store.payments, 1)
	assert.Equal(t, int64(500), fx.store.payments[0].Amount)
	assert.Equal(t, "too expensive", fx.store.payments[0].Options["cancel_reason"])

	assert.Zero(t, fx.store.cancelCalls, "order stays active until the fee settles")
	assert.Equal(t, models.OrderStatusActive, fx.store.orders[10].Status)
}

func TestUndoCancelOnlyFromCancelled(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()

	err := fx.service.UndoCancel(context.Background(), 10)

	var conflictErr *StateConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Zero(t, fx.store.uncancelCalls)
}

func TestUndoCancelRevertsToActive(t *testing.T) {
	fx := newFixture()
	order := activeOrder()
	order.Status = models.OrderStatusCancelled
	fx.store.orders[10] = order

	err := fx.service.UndoCancel(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, fx.store.uncancelCalls)
	assert.Equal(t, models.OrderStatusActive, fx.store.orders[10].Status)
}

func TestProvisionCreatesServer(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.store.packages[30] = &models.Package{ID: 30, Data: models.PackageData{
		EggID:       5,
		MemoryLimit: 2048,
		DiskLimit:   10240,
	}}
	fx.store.accounts[20] = &models.PanelAccount{UserID: 20, ExternalID: 7, Username: "user@example.com"}

	server, err := fx.service.Provision(context.Background(), 10, UserInfo{})
	require.NoError(t, err)

	assert.Equal(t, int64(42), server.ID)
	assert.Equal(t, "10", server.ExternalID)
	assert.Equal(t, 1, fx.inventory.reserveCalls)
	assert.Zero(t, fx.inventory.releaseCalls)
	assert.Equal(t, 1, fx.publisher.provisioned)
}

func TestProvisionReleasesReservationOnPanelFailure(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.store.packages[30] = &models.Package{ID: 30}
	fx.store.accounts[20] = &models.PanelAccount{UserID: 20, ExternalID: 7, Username: "user@example.com"}
	fx.panel.createErr = &panel.APIError{StatusCode: 500, Message: "no allocations available"}

	_, err := fx.service.Provision(context.Background(), 10, UserInfo{})
	require.Error(t, err)

	assert.Equal(t, 1, fx.inventory.reserveCalls)
	assert.Equal(t, 1, fx.inventory.releaseCalls, "reservation must be released on create failure")
	assert.Equal(t, 1, fx.publisher.provisionFailed)
	assert.Zero(t, fx.publisher.provisioned)
}

func TestProvisionRejectsSecondServer(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.store.packages[30] = &models.Package{ID: 30}
	fx.panel.server = &panel.Server{ID: 42, ExternalID: "10"}

	_, err := fx.service.Provision(context.Background(), 10, UserInfo{})

	var conflictErr *StateConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Zero(t, fx.inventory.reserveCalls)
	assert.Zero(t, fx.panel.createCalls)
}

func TestProvisionCreatesPanelUserOnFirstContact(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.store.packages[30] = &models.Package{ID: 30}

	_, err := fx.service.Provision(context.Background(), 10, UserInfo{
		Email:     "fresh@example.com",
		FirstName: "Fresh",
		LastName:  "User",
	})
	require.NoError(t, err)

	require.NotNil(t, fx.panel.createdUser)
	assert.Equal(t, "fresh@example.com", fx.panel.createdUser.Email)
	require.NotNil(t, fx.store.accounts[20])
	assert.Equal(t, int64(7), fx.store.accounts[20].ExternalID)
}

func TestProvisionWithoutEmailFailsWhenNoAccount(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.store.packages[30] = &models.Package{ID: 30}

	_, err := fx.service.Provision(context.Background(), 10, UserInfo{})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, 1, fx.inventory.releaseCalls, "reservation released when account creation fails")
}

func TestUpgradeRebuildsResourceEnvelope(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.store.packages[31] = &models.Package{ID: 31, Data: models.PackageData{
		MemoryLimit:   4096,
		DiskLimit:     20480,
		DatabaseLimit: 2,
	}}
	fx.panel.server = &panel.Server{ID: 42, Allocation: 3}

	err := fx.service.Upgrade(context.Background(), 10, 31)
	require.NoError(t, err)

	assert.Equal(t, 1, fx.panel.buildCalls)
	assert.Equal(t, models.OrderStatusActive, fx.store.orders[10].Status, "upgrade never touches local status")
}

func TestTerminatePropagatesPanelError(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.panel.server = &panel.Server{ID: 42}
	fx.panel.deleteErr = &panel.APIError{StatusCode: 409, Message: "server is installing"}

	err := fx.service.Terminate(context.Background(), 10)

	var apiErr *panel.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.StatusCode)
	assert.Equal(t, 1, fx.panel.deleteCalls)
}

func TestSuspendPublishesEvent(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.panel.server = &panel.Server{ID: 42}

	err := fx.service.Suspend(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, fx.panel.suspendCalls)
	assert.Equal(t, []string{models.EventTypeServerSuspended}, fx.publisher.serverStates)
}

func TestChangePasswordLeavesLocalOnRemoteFailure(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.store.accounts[20] = &models.PanelAccount{UserID: 20, ExternalID: 7, Username: "user@example.com"}
	fx.panel.remoteUser = &panel.User{ID: 7, Email: "user@example.com", Username: "user"}
	fx.panel.updateErr = &panel.APIError{StatusCode: 422, Message: "password too weak"}

	err := fx.service.ChangePassword(context.Background(), 10, UserInfo{}, "new-password-123")
	require.Error(t, err)

	assert.Empty(t, fx.store.storedPassword, "local credentials untouched on remote failure")
}

func TestChangePasswordUpdatesRemoteThenLocal(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.store.accounts[20] = &models.PanelAccount{UserID: 20, ExternalID: 7, Username: "user@example.com"}
	fx.panel.remoteUser = &panel.User{ID: 7, Email: "user@example.com", Username: "user"}

	err := fx.service.ChangePassword(context.Background(), 10, UserInfo{}, "new-password-123")
	require.NoError(t, err)

	assert.Equal(t, 1, fx.panel.updateCalls)
	assert.Equal(t, "new-password-123", fx.store.storedPassword)
}

func TestLoginURLRequiresPanelAccount(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()

	_, err := fx.service.LoginURL(context.Background(), 10)

	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestLoginURLReturnsRedirect(t *testing.T) {
	fx := newFixture()
	fx.store.orders[10] = activeOrder()
	fx.store.accounts[20] = &models.PanelAccount{UserID: 20, ExternalID: 7}
	fx.panel.ssoURL = "https://panel.example.com/auth/sso?token=abc"

	url, err := fx.service.LoginURL(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "https://panel.example.com/auth/sso?token=abc", url)
}

func TestExtendDueDateLiftsSuspension(t *testing.T) {
	fx := newFixture()
	order := activeOrder()
	order.Status = models.OrderStatusSuspended
	fx.store.orders[10] = order
	fx.panel.server = &panel.Server{ID: 42}

	err := fx.service.ExtendDueDate(context.Background(), 10, 30)
	require.NoError(t, err)

	assert.Equal(t, 30, fx.store.extendedDays)
	assert.Equal(t, []string{models.EventTypeServerUnsuspended}, fx.publisher.serverStates)
	assert.Equal(t, models.OrderStatusActive, fx.store.orders[10].Status)
}
