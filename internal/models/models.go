package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Order statuses
const (
	OrderStatusActive    = "active"
	OrderStatusSuspended = "suspended"
	OrderStatusCancelled = "cancelled"
)

// Payment statuses
const (
	PaymentStatusUnpaid    = "unpaid"
	PaymentStatusPaid      = "paid"
	PaymentStatusCancelled = "cancelled"
)

// JSONMap stores arbitrary key/value options as JSONB
type JSONMap map[string]string

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = JSONMap{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unexpected type for JSONMap: %T", src)
	}
	return json.Unmarshal(b, m)
}

// Order is the service-local projection of a purchased server instance.
// The billing host owns the canonical record; we track the fields the
// lifecycle operations read and mutate.
type Order struct {
	ID           int64          `db:"id" json:"id"`
	UserID       int64          `db:"user_id" json:"user_id"`
	PackageID    int64          `db:"package_id" json:"package_id"`
	Name         string         `db:"name" json:"name"`
	Status       string         `db:"status" json:"status"`
	DueDate      time.Time      `db:"due_date" json:"due_date"`
	Options      JSONMap        `db:"options" json:"options"`
	CancelledAt  sql.NullTime   `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason sql.NullString `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// LocationID returns the checkout-selected location, if any.
func (o *Order) LocationID() (int64, bool) {
	raw, ok := o.Options["location"]
	if !ok || raw == "" {
		return 0, false
	}
	var id int64
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil {
		return 0, false
	}
	return id, true
}

// PackageData holds the admin-configured values for a package: the
// serialized egg descriptor, deployable locations, resource limits and
// preset environment values.
type PackageData struct {
	Egg               json.RawMessage   `json:"egg,omitempty"`
	Locations         []int64           `json:"locations,omitempty"`
	ExcludedVariables []string          `json:"excluded_variables,omitempty"`
	Environment       map[string]string `json:"environment,omitempty"`
	MemoryLimit       int               `json:"memory_limit,omitempty"`
	SwapLimit         int               `json:"swap_limit,omitempty"`
	DiskLimit         int               `json:"disk_limit,omitempty"`
	BlockIOWeight     int               `json:"block_io_weight,omitempty"`
	CPULimit          int               `json:"cpu_limit,omitempty"`
	DatabaseLimit     int               `json:"database_limit,omitempty"`
	BackupLimit       int               `json:"backup_limit,omitempty"`
	AllocationLimit   int               `json:"allocation_limit,omitempty"`
	DockerImage       string            `json:"docker_image,omitempty"`
	StartupCommand    string            `json:"startup,omitempty"`
	EggID             int64             `json:"egg_id,omitempty"`
	NestID            int64             `json:"nest_id,omitempty"`
}

func (d PackageData) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *PackageData) Scan(src interface{}) error {
	if src == nil {
		*d = PackageData{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unexpected type for PackageData: %T", src)
	}
	return json.Unmarshal(b, d)
}

// Package is a sellable server product
type Package struct {
	ID              int64       `db:"id" json:"id"`
	Name            string      `db:"name" json:"name"`
	RenewalPrice    int64       `db:"renewal_price" json:"renewal_price"`
	PeriodDays      int         `db:"period_days" json:"period_days"`
	CancellationFee int64       `db:"cancellation_fee" json:"cancellation_fee"`
	Data            PackageData `db:"data" json:"data"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
}

// Location is a deployment zone with a stock counter.
// Stock -1 means unlimited, 0 means unavailable.
type Location struct {
	ID    int64  `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Stock int    `db:"stock" json:"stock"`
}

// InStock reports whether servers can still be deployed here.
func (l *Location) InStock() bool {
	return l.Stock != 0
}

// StockLabel renders the remaining-stock suffix shown at checkout.
func (l *Location) StockLabel() string {
	if l.Stock == -1 {
		return "Unlimited"
	}
	return fmt.Sprintf("%d in stock", l.Stock)
}

// Node is a host within a location with finite resource capacity
type Node struct {
	ID              int64  `db:"id" json:"id"`
	LocationID      int64  `db:"location_id" json:"location_id"`
	Name            string `db:"name" json:"name"`
	Memory          int    `db:"memory" json:"memory"`
	MemoryAllocated int    `db:"memory_allocated" json:"memory_allocated"`
	Disk            int    `db:"disk" json:"disk"`
	DiskAllocated   int    `db:"disk_allocated" json:"disk_allocated"`
}

// CheckResource reports whether the node can fit the requested memory and
// disk. A zero capacity means the dimension is not constrained.
func (n *Node) CheckResource(memory, disk int) bool {
	if n.Memory > 0 && n.Memory-n.MemoryAllocated < memory {
		return false
	}
	if n.Disk > 0 && n.Disk-n.DiskAllocated < disk {
		return false
	}
	return true
}

// Payment is an invoice handed back to the billing host for collection
type Payment struct {
	ID          int64     `db:"id" json:"id"`
	OrderID     int64     `db:"order_id" json:"order_id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Status      string    `db:"status" json:"status"`
	Amount      int64     `db:"amount" json:"amount"`
	Description string    `db:"description" json:"description"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	Options     JSONMap   `db:"options" json:"options"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PanelAccount links a billing-host user to their panel user
type PanelAccount struct {
	UserID     int64     `db:"user_id" json:"user_id"`
	ExternalID int64     `db:"external_id" json:"external_id"`
	Username   string    `db:"username" json:"username"`
	Password   string    `db:"password" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Egg mirrors the panel's egg export format, which nests configurable
// variables under relationships.variables.data[].attributes.
type Egg struct {
	Relationships struct {
		Variables struct {
			Data []struct {
				Attributes EggVariable `json:"attributes"`
			} `json:"data"`
		} `json:"variables"`
	} `json:"relationships"`
}

// EggVariable is a panel-supplied descriptor for a configurable field
type EggVariable struct {
	EnvVariable  string `json:"env_variable"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	UserViewable bool   `json:"user_viewable"`
	DefaultValue string `json:"default_value"`
	Rules        string `json:"rules"`
}

// Variables flattens the egg's variable list.
func (e *Egg) Variables() []EggVariable {
	vars := make([]EggVariable, 0, len(e.Relationships.Variables.Data))
	for _, d := range e.Relationships.Variables.Data {
		vars = append(vars, d.Attributes)
	}
	return vars
}

// Form field types
const (
	FieldTypeText   = "text"
	FieldTypeBool   = "bool"
	FieldTypeSelect = "select"
	FieldTypeNumber = "number"
)

// SelectOption is a single choice in a select field
type SelectOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FormField is one entry of the checkout form schema. It is derived from
// egg metadata and never persisted; a rendering layer outside this service
// consumes it.
type FormField struct {
	Key          string         `json:"key"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Type         string         `json:"type"`
	DefaultValue string         `json:"default_value,omitempty"`
	Rules        []string       `json:"rules,omitempty"`
	Required     bool           `json:"required"`
	Options      []SelectOption `json:"options,omitempty"`
	Min          string         `json:"min,omitempty"`
	Max          string         `json:"max,omitempty"`
	Disabled     bool           `json:"disabled,omitempty"`
}

// ProcessedEvent for idempotent event consumption
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
