package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pterodactyl-service/internal/checkout"
	"pterodactyl-service/internal/models"
	"pterodactyl-service/internal/panel"
	"pterodactyl-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Renewal frequency bounds (billing periods per invoice)
const (
	minRenewalFrequency = 1
	maxRenewalFrequency = 12
)

// PanelAPI is the slice of the panel client the lifecycle service needs
type PanelAPI interface {
	CreateServer(ctx context.Context, req *panel.CreateServerRequest) (*panel.Server, error)
	GetServerByExternalID(ctx context.Context, orderID int64) (*panel.Server, error)
	BuildServer(ctx context.Context, serverID int64, req *panel.BuildServerRequest) error
	SuspendServer(ctx context.Context, serverID int64) error
	UnsuspendServer(ctx context.Context, serverID int64) error
	DeleteServer(ctx context.Context, serverID int64) error
	GetUserByEmail(ctx context.Context, email string) (*panel.User, error)
	CreateUser(ctx context.Context, req *panel.CreateUserRequest) (*panel.User, error)
	UpdateUser(ctx context.Context, userID int64, req *panel.UpdateUserRequest) error
	SSOLoginURL(ctx context.Context, panelUserID int64) (string, error)
}

// OrderStore is the slice of the store the lifecycle service needs
type OrderStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetPackageByID(ctx context.Context, id int64) (*models.Package, error)
	CancelOrder(ctx context.Context, orderID int64, cancelledAt time.Time, reason string) error
	UncancelOrder(ctx context.Context, orderID int64) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	ExtendOrderDueDate(ctx context.Context, orderID int64, days int) error
	GetPanelAccount(ctx context.Context, userID int64) (*models.PanelAccount, error)
	CreatePanelAccount(ctx context.Context, account *models.PanelAccount) error
	UpdatePanelAccountPassword(ctx context.Context, userID int64, password string) error
}

// Inventory resolves and accounts for deployment targets
type Inventory interface {
	ResolveLocation(ctx context.Context, order *models.Order) (*models.Location, error)
	Reserve(ctx context.Context, loc *models.Location) error
	Release(ctx context.Context, loc *models.Location) error
	ListAvailable(ctx context.Context, pkg *models.Package) ([]checkout.LocationOption, error)
}

// Publisher emits lifecycle events for the billing host
type Publisher interface {
	PublishServerProvisioned(ctx context.Context, event *models.ServerProvisionedEvent) error
	PublishProvisionFailed(ctx context.Context, event *models.ProvisionFailedEvent) error
	PublishServerState(ctx context.Context, event *models.ServerStateEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishRenewalInvoiced(ctx context.Context, event *models.RenewalInvoicedEvent) error
}

// UserInfo carries the billing-host user details needed to create the
// panel-side account on first contact.
type UserInfo struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CancelResult reports how a cancellation request was resolved
type CancelResult struct {
	Cancelled    bool  `json:"cancelled"`
	FeePaymentID int64 `json:"fee_payment_id,omitempty"`
}

// LifecycleService sequences panel calls against local order and inventory
// state for every order lifecycle operation.
type LifecycleService struct {
	store     OrderStore
	panel     PanelAPI
	inventory Inventory
	payments  *PaymentService
	publisher Publisher
	logger    *zap.Logger
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(
	store OrderStore,
	panelAPI PanelAPI,
	inventory Inventory,
	payments *PaymentService,
	publisher Publisher,
) *LifecycleService {
	return &LifecycleService{
		store:     store,
		panel:     panelAPI,
		inventory: inventory,
		payments:  payments,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CheckoutConfig builds the client-facing checkout form schema for a package
func (ls *LifecycleService) CheckoutConfig(ctx context.Context, packageID int64) ([]models.FormField, error) {
	ctx, span := util.StartSpan(ctx, "LifecycleService.CheckoutConfig")
	defer span.End()

	pkg, err := ls.store.GetPackageByID(ctx, packageID)
	if err != nil {
		return nil, &NotFoundError{Resource: "package", ID: packageID}
	}

	locations, err := ls.inventory.ListAvailable(ctx, pkg)
	if err != nil {
		return nil, err
	}

	return checkout.BuildSchema(pkg, locations)
}

// Provision creates the remote server for an order. Exactly one server may
// exist per order; the reservation is released if the remote create fails.
func (ls *LifecycleService) Provision(ctx context.Context, orderID int64, info UserInfo) (*panel.Server, error) {
	ctx, span := util.StartSpan(ctx, "LifecycleService.Provision")
	defer span.End()

	order, err := ls.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, &NotFoundError{Resource: "order", ID: orderID}
	}

	pkg, err := ls.store.GetPackageByID(ctx, order.PackageID)
	if err != nil {
		return nil, &NotFoundError{Resource: "package", ID: order.PackageID}
	}

	if existing, err := ls.getServer(ctx, orderID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, &StateConflictError{Message: fmt.Sprintf("order %d already has a server", orderID)}
	}

	loc, err := ls.inventory.ResolveLocation(ctx, order)
	if err != nil {
		util.ProvisionFailedTotal.WithLabelValues("no_location").Inc()
		return nil, err
	}

	if err := ls.inventory.Reserve(ctx, loc); err != nil {
		util.ProvisionFailedTotal.WithLabelValues("reservation_failed").Inc()
		return nil, err
	}

	server, err := ls.createRemote(ctx, order, pkg, loc, info)
	if err != nil {
		// Compensate: the reserved unit goes back before the error
		// surfaces, so a failed create cannot leak stock.
		if relErr := ls.inventory.Release(ctx, loc); relErr != nil {
			ls.logger.Error("Failed to release reservation after create failure",
				zap.Int64("order_id", orderID),
				zap.Int64("location_id", loc.ID),
				zap.Error(relErr))
		}
		util.ProvisionFailedTotal.WithLabelValues("panel_error").Inc()
		ls.publishProvisionFailed(ctx, orderID, err)
		return nil, err
	}

	util.ServersProvisionedTotal.Inc()
	ls.logger.Info("Server provisioned",
		zap.Int64("order_id", orderID),
		zap.Int64("server_id", server.ID),
		zap.Int64("location_id", loc.ID))

	event := &models.ServerProvisionedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeServerProvisioned),
		OrderID:    orderID,
		UserID:     order.UserID,
		ServerID:   server.ID,
		LocationID: loc.ID,
	}
	if err := ls.publisher.PublishServerProvisioned(ctx, event); err != nil {
		ls.logger.Error("Failed to publish ServerProvisioned event", zap.Error(err))
	}

	return server, nil
}

// createRemote resolves the panel account and issues the server create call
func (ls *LifecycleService) createRemote(ctx context.Context, order *models.Order, pkg *models.Package, loc *models.Location, info UserInfo) (*panel.Server, error) {
	account, err := ls.ensurePanelAccount(ctx, order.UserID, info)
	if err != nil {
		return nil, err
	}

	environment, err := buildEnvironment(pkg, order)
	if err != nil {
		return nil, err
	}

	req := &panel.CreateServerRequest{
		Name:           order.Name,
		User:           account.ExternalID,
		Egg:            pkg.Data.EggID,
		DockerImage:    pkg.Data.DockerImage,
		Startup:        pkg.Data.StartupCommand,
		Environment:    environment,
		Limits:         packageLimits(pkg),
		FeatureLimits:  packageFeatureLimits(pkg),
		Deploy:         panel.Deploy{Locations: []int64{loc.ID}, PortRange: []string{}},
		ExternalID:     strconv.FormatInt(order.ID, 10),
		StartOnInstall: true,
	}

	return ls.panel.CreateServer(ctx, req)
}

// Renew validates the requested frequency and generates the renewal
// invoice. The order's due date is only extended once the billing host
// reports the invoice settled.
func (ls *LifecycleService) Renew(ctx context.Context, orderID int64, frequency int) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "LifecycleService.Renew")
	defer span.End()

	if frequency < minRenewalFrequency || frequency > maxRenewalFrequency {
		return nil, &ValidationError{
			Field:   "frequency",
			Message: fmt.Sprintf("must be between %d and %d", minRenewalFrequency, maxRenewalFrequency),
		}
	}

	order, err := ls.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, &NotFoundError{Resource: "order", ID: orderID}
	}

	pkg, err := ls.store.GetPackageByID(ctx, order.PackageID)
	if err != nil {
		return nil, &NotFoundError{Resource: "package", ID: order.PackageID}
	}

	amount := pkg.RenewalPrice * int64(frequency)
	periodDays := pkg.PeriodDays * frequency

	payment, err := ls.payments.GenerateRenewalInvoice(ctx, order, amount, periodDays)
	if err != nil {
		return nil, err
	}

	event := &models.RenewalInvoicedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeRenewalInvoiced),
		OrderID:    orderID,
		PaymentID:  payment.ID,
		Amount:     amount,
		PeriodDays: periodDays,
	}
	if err := ls.publisher.PublishRenewalInvoiced(ctx, event); err != nil {
		ls.logger.Error("Failed to publish RenewalInvoiced event", zap.Error(err))
	}

	return payment, nil
}

// Cancel cancels an active order. When the package carries a cancellation
// fee the order stays active and a fee invoice is returned instead; the
// actual cancellation happens once the fee settles.
func (ls *LifecycleService) Cancel(ctx context.Context, orderID int64, cancelledAt time.Time, reason string) (*CancelResult, error) {
	ctx, span := util.StartSpan(ctx, "LifecycleService.Cancel")
	defer span.End()

	order, err := ls.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, &NotFoundError{Resource: "order", ID: orderID}
	}

	if order.Status != models.OrderStatusActive {
		return nil, &StateConflictError{Message: "service is already cancelled"}
	}

	pkg, err := ls.store.GetPackageByID(ctx, order.PackageID)
	if err != nil {
		return nil, &NotFoundError{Resource: "package", ID: order.PackageID}
	}

	if pkg.CancellationFee > 0 {
		options := models.JSONMap{
			"cancelled_at":  cancelledAt.Format(time.RFC3339),
			"cancel_reason": reason,
		}
		payment, err := ls.payments.GenerateCancellationInvoice(ctx, order, pkg.CancellationFee, options)
		if err != nil {
			return nil, err
		}
		return &CancelResult{FeePaymentID: payment.ID}, nil
	}

	if err := ls.cancelNow(ctx, orderID, cancelledAt, reason); err != nil {
		return nil, err
	}
	return &CancelResult{Cancelled: true}, nil
}

// FinalizeCancellation cancels an order whose cancellation fee has been
// settled by the billing host. The fee check is already behind us.
func (ls *LifecycleService) FinalizeCancellation(ctx context.Context, orderID int64, cancelledAt time.Time, reason string) error {
	ctx, span := util.StartSpan(ctx, "LifecycleService.FinalizeCancellation")
	defer span.End()

	order, err := ls.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return &NotFoundError{Resource: "order", ID: orderID}
	}
	if order.Status != models.OrderStatusActive {
		return &StateConflictError{Message: "service is already cancelled"}
	}

	return ls.cancelNow(ctx, orderID, cancelledAt, reason)
}

func (ls *LifecycleService) cancelNow(ctx context.Context, orderID int64, cancelledAt time.Time, reason string) error {
	if err := ls.store.CancelOrder(ctx, orderID, cancelledAt, reason); err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	util.OrdersCancelledTotal.Inc()
	ls.logger.Info("Order cancelled",
		zap.Int64("order_id", orderID),
		zap.String("reason", reason))

	event := &models.OrderCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   orderID,
		Reason:    reason,
	}
	if err := ls.publisher.PublishOrderCancelled(ctx, event); err != nil {
		ls.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	return nil
}

// UndoCancel reverts a cancelled order to active and clears the
// cancellation metadata. Only valid from the cancelled state.
func (ls *LifecycleService) UndoCancel(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "LifecycleService.UndoCancel")
	defer span.End()

	order, err := ls.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return &NotFoundError{Resource: "order", ID: orderID}
	}

	if order.Status != models.OrderStatusCancelled {
		return &StateConflictError{Message: "service is not cancelled"}
	}

	if err := ls.store.UncancelOrder(ctx, orderID); err != nil {
		return fmt.Errorf("failed to undo cancellation: %w", err)
	}

	ls.logger.Info("Order cancellation undone", zap.Int64("order_id", orderID))
	return nil
}

// Upgrade rebuilds the server's resource envelope to match a new package.
// Local order state and inventory are untouched.
func (ls *LifecycleService) Upgrade(ctx context.Context, orderID, newPackageID int64) error {
	ctx, span := util.StartSpan(ctx, "LifecycleService.Upgrade")
	defer span.End()

	newPkg, err := ls.store.GetPackageByID(ctx, newPackageID)
	if err != nil {
		return &NotFoundError{Resource: "package", ID: newPackageID}
	}

	server, err := ls.requireServer(ctx, orderID)
	if err != nil {
		return err
	}

	req := &panel.BuildServerRequest{
		Allocation:    server.Allocation,
		Limits:        packageLimits(newPkg),
		FeatureLimits: packageFeatureLimits(newPkg),
	}

	if err := ls.panel.BuildServer(ctx, server.ID, req); err != nil {
		return err
	}

	util.ServersUpgradedTotal.Inc()
	ls.logger.Info("Server upgraded",
		zap.Int64("order_id", orderID),
		zap.Int64("server_id", server.ID),
		zap.Int64("package_id", newPackageID))
	return nil
}

// Suspend suspends the order's server on the panel
func (ls *LifecycleService) Suspend(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "LifecycleService.Suspend")
	defer span.End()

	server, err := ls.requireServer(ctx, orderID)
	if err != nil {
		return err
	}

	if err := ls.panel.SuspendServer(ctx, server.ID); err != nil {
		return err
	}

	util.ServersSuspendedTotal.Inc()
	ls.publishServerState(ctx, models.EventTypeServerSuspended, orderID, server.ID)
	return nil
}

// Unsuspend unsuspends the order's server on the panel
func (ls *LifecycleService) Unsuspend(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "LifecycleService.Unsuspend")
	defer span.End()

	server, err := ls.requireServer(ctx, orderID)
	if err != nil {
		return err
	}

	if err := ls.panel.UnsuspendServer(ctx, server.ID); err != nil {
		return err
	}

	ls.publishServerState(ctx, models.EventTypeServerUnsuspended, orderID, server.ID)
	return nil
}

// Terminate deletes the order's server from the panel. The error is
// returned for the caller to present; nothing retries it here.
func (ls *LifecycleService) Terminate(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "LifecycleService.Terminate")
	defer span.End()

	server, err := ls.requireServer(ctx, orderID)
	if err != nil {
		return err
	}

	if err := ls.panel.DeleteServer(ctx, server.ID); err != nil {
		return err
	}

	util.ServersTerminatedTotal.Inc()
	ls.logger.Info("Server terminated",
		zap.Int64("order_id", orderID),
		zap.Int64("server_id", server.ID))
	ls.publishServerState(ctx, models.EventTypeServerTerminated, orderID, server.ID)
	return nil
}

// ChangePassword pushes new credentials to the panel and mirrors them
// locally. A failed remote update leaves the account link in place.
func (ls *LifecycleService) ChangePassword(ctx context.Context, orderID int64, info UserInfo, newPassword string) error {
	ctx, span := util.StartSpan(ctx, "LifecycleService.ChangePassword")
	defer span.End()

	if newPassword == "" {
		return &ValidationError{Field: "password", Message: "must not be empty"}
	}

	order, err := ls.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return &NotFoundError{Resource: "order", ID: orderID}
	}

	account, err := ls.ensurePanelAccount(ctx, order.UserID, info)
	if err != nil {
		return err
	}

	remote, err := ls.panel.GetUserByEmail(ctx, account.Username)
	if err != nil {
		return err
	}
	if remote == nil {
		return &NotFoundError{Resource: "panel user", ID: account.ExternalID}
	}

	req := &panel.UpdateUserRequest{
		Email:     remote.Email,
		Username:  remote.Username,
		FirstName: remote.FirstName,
		LastName:  remote.LastName,
		Password:  newPassword,
	}
	if err := ls.panel.UpdateUser(ctx, remote.ID, req); err != nil {
		return err
	}

	if err := ls.store.UpdatePanelAccountPassword(ctx, order.UserID, newPassword); err != nil {
		return fmt.Errorf("failed to store new panel credentials: %w", err)
	}

	ls.logger.Info("Panel password changed", zap.Int64("order_id", orderID))
	return nil
}

// ExtendDueDate advances the order's due date after a renewal invoice
// settles, and lifts a suspension if one is in place.
func (ls *LifecycleService) ExtendDueDate(ctx context.Context, orderID int64, periodDays int) error {
	ctx, span := util.StartSpan(ctx, "LifecycleService.ExtendDueDate")
	defer span.End()

	order, err := ls.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return &NotFoundError{Resource: "order", ID: orderID}
	}

	if err := ls.store.ExtendOrderDueDate(ctx, orderID, periodDays); err != nil {
		return fmt.Errorf("failed to extend due date: %w", err)
	}

	if order.Status == models.OrderStatusSuspended {
		if err := ls.Unsuspend(ctx, orderID); err != nil {
			return err
		}
		if err := ls.store.UpdateOrderStatus(ctx, orderID, models.OrderStatusActive); err != nil {
			return fmt.Errorf("failed to reactivate order: %w", err)
		}
	}

	ls.logger.Info("Due date extended",
		zap.Int64("order_id", orderID),
		zap.Int("days", periodDays))
	return nil
}

// LoginURL exchanges the SSO secret for a one-time panel login URL for the
// order's owner.
func (ls *LifecycleService) LoginURL(ctx context.Context, orderID int64) (string, error) {
	ctx, span := util.StartSpan(ctx, "LifecycleService.LoginURL")
	defer span.End()

	order, err := ls.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", &NotFoundError{Resource: "order", ID: orderID}
	}

	account, err := ls.store.GetPanelAccount(ctx, order.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to load panel account: %w", err)
	}
	if account == nil {
		return "", &NotFoundError{Resource: "panel account", ID: order.UserID}
	}

	url, err := ls.panel.SSOLoginURL(ctx, account.ExternalID)
	if err != nil {
		util.SSOLoginsTotal.WithLabelValues("failure").Inc()
		return "", err
	}

	util.SSOLoginsTotal.WithLabelValues("success").Inc()
	return url, nil
}

// ensurePanelAccount resolves the local-to-panel user link, creating the
// panel user on first contact.
func (ls *LifecycleService) ensurePanelAccount(ctx context.Context, userID int64, info UserInfo) (*models.PanelAccount, error) {
	account, err := ls.store.GetPanelAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load panel account: %w", err)
	}
	if account != nil {
		return account, nil
	}

	if info.Email == "" {
		return nil, &ValidationError{Field: "email", Message: "required to create a panel account"}
	}

	user, err := ls.panel.GetUserByEmail(ctx, info.Email)
	if err != nil {
		return nil, err
	}

	password := ""
	if user == nil {
		password = uuid.New().String()
		user, err = ls.panel.CreateUser(ctx, &panel.CreateUserRequest{
			Email:     info.Email,
			Username:  usernameFromEmail(info.Email, userID),
			FirstName: info.FirstName,
			LastName:  info.LastName,
			Password:  password,
		})
		if err != nil {
			return nil, err
		}
	}

	account = &models.PanelAccount{
		UserID:     userID,
		ExternalID: user.ID,
		Username:   user.Email,
		Password:   password,
	}
	if err := ls.store.CreatePanelAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to store panel account link: %w", err)
	}

	return account, nil
}

// getServer looks up the order's server, mapping the panel's 404 to nil
func (ls *LifecycleService) getServer(ctx context.Context, orderID int64) (*panel.Server, error) {
	server, err := ls.panel.GetServerByExternalID(ctx, orderID)
	if err != nil {
		var apiErr *panel.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return server, nil
}

// requireServer looks up the order's server and fails with NotFound when
// no server exists.
func (ls *LifecycleService) requireServer(ctx context.Context, orderID int64) (*panel.Server, error) {
	server, err := ls.getServer(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if server == nil {
		return nil, &NotFoundError{Resource: "server", ID: orderID}
	}
	return server, nil
}

func (ls *LifecycleService) publishServerState(ctx context.Context, eventType string, orderID, serverID int64) {
	event := &models.ServerStateEvent{
		BaseEvent: newBaseEvent(eventType),
		OrderID:   orderID,
		ServerID:  serverID,
	}
	if err := ls.publisher.PublishServerState(ctx, event); err != nil {
		ls.logger.Error("Failed to publish server state event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

func (ls *LifecycleService) publishProvisionFailed(ctx context.Context, orderID int64, cause error) {
	event := &models.ProvisionFailedEvent{
		BaseEvent: newBaseEvent(models.EventTypeProvisionFailed),
		OrderID:   orderID,
		Reason:    cause.Error(),
	}
	if err := ls.publisher.PublishProvisionFailed(ctx, event); err != nil {
		ls.logger.Error("Failed to publish ProvisionFailed event", zap.Error(err))
	}
}

// buildEnvironment composes the server environment: egg defaults,
// overridden by admin presets, overridden by checkout selections.
func buildEnvironment(pkg *models.Package, order *models.Order) (map[string]string, error) {
	environment := make(map[string]string)

	if len(pkg.Data.Egg) > 0 {
		var egg models.Egg
		if err := json.Unmarshal(pkg.Data.Egg, &egg); err != nil {
			return nil, fmt.Errorf("parse egg descriptor: %w", err)
		}
		for _, variable := range egg.Variables() {
			environment[variable.EnvVariable] = variable.DefaultValue
		}
	}

	for key, value := range pkg.Data.Environment {
		environment[key] = value
	}

	for key, value := range order.Options {
		if key == "location" {
			continue
		}
		if _, known := environment[key]; known {
			environment[key] = value
		}
	}

	return environment, nil
}

func packageLimits(pkg *models.Package) panel.Limits {
	io := pkg.Data.BlockIOWeight
	if io == 0 {
		io = 500
	}
	cpu := pkg.Data.CPULimit
	if cpu == 0 {
		cpu = 100
	}
	return panel.Limits{
		Memory: pkg.Data.MemoryLimit,
		Swap:   pkg.Data.SwapLimit,
		Disk:   pkg.Data.DiskLimit,
		IO:     io,
		CPU:    cpu,
	}
}

func packageFeatureLimits(pkg *models.Package) panel.FeatureLimits {
	return panel.FeatureLimits{
		Databases:   pkg.Data.DatabaseLimit,
		Backups:     pkg.Data.BackupLimit,
		Allocations: pkg.Data.AllocationLimit,
	}
}

func usernameFromEmail(email string, userID int64) string {
	local := email
	if i := strings.Index(email, "@"); i > 0 {
		local = email[:i]
	}
	return fmt.Sprintf("%s_%d", local, userID)
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
