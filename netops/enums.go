package netops

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/99designs/gqlgen/graphql"
)

type enum interface {
	~string
	IsValid() bool
}

func unmarshalEnumGQL[T enum](e *T, v any, name string) error {
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("enums must be strings")
	}
	return setEnum(e, str, name)
}

func unmarshalEnumJSON[T enum](e *T, b []byte, name string) error {
	if string(b) == "null" {
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return setEnum(e, str, name)
}

func setEnum[T enum](e *T, str, name string) error {
	v := T(str)
	if !v.IsValid() {
		return fmt.Errorf("%s is not a valid %s", str, name)
	}
	*e = v
	return nil
}

var (
	_ graphql.Marshaler   = CustomerStatus("")
	_ graphql.Unmarshaler = (*CustomerStatus)(nil)
	_ graphql.Marshaler   = WorkflowStatus("")
	_ graphql.Unmarshaler = (*WorkflowStatus)(nil)
)

type CustomerStatus string

const (
	CustomerStatusActive    CustomerStatus = "ACTIVE"
	CustomerStatusPending   CustomerStatus = "PENDING"
	CustomerStatusSuspended CustomerStatus = "SUSPENDED"
	CustomerStatusCancelled CustomerStatus = "CANCELLED"
)

var AllCustomerStatus = []CustomerStatus{
	CustomerStatusActive,
	CustomerStatusPending,
	CustomerStatusSuspended,
	CustomerStatusCancelled,
}

func (e CustomerStatus) IsValid() bool {
	switch e {
	case CustomerStatusActive, CustomerStatusPending, CustomerStatusSuspended, CustomerStatusCancelled:
		return true
	}
	return false
}

func (e CustomerStatus) String() string {
	return string(e)
}

func (e *CustomerStatus) UnmarshalGQL(v any) error {
	return unmarshalEnumGQL(e, v, "CustomerStatus")
}

func (e CustomerStatus) MarshalGQL(w io.Writer) {
	fmt.Fprint(w, strconv.Quote(e.String()))
}

func (e *CustomerStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnumJSON(e, b, "CustomerStatus")
}

type ServiceType string

const (
	ServiceTypeFiber    ServiceType = "FIBER"
	ServiceTypeWireless ServiceType = "WIRELESS"
)

var AllServiceType = []ServiceType{
	ServiceTypeFiber,
	ServiceTypeWireless,
}

func (e ServiceType) IsValid() bool {
	switch e {
	case ServiceTypeFiber, ServiceTypeWireless:
		return true
	}
	return false
}

func (e ServiceType) String() string {
	return string(e)
}

func (e *ServiceType) UnmarshalGQL(v any) error {
	return unmarshalEnumGQL(e, v, "ServiceType")
}

func (e ServiceType) MarshalGQL(w io.Writer) {
	fmt.Fprint(w, strconv.Quote(e.String()))
}

func (e *ServiceType) UnmarshalJSON(b []byte) error {
	return unmarshalEnumJSON(e, b, "ServiceType")
}

type DeviceType string

const (
	DeviceTypeOlt         DeviceType = "OLT"
	DeviceTypeOnt         DeviceType = "ONT"
	DeviceTypeAccessPoint DeviceType = "ACCESS_POINT"
	DeviceTypeCpe         DeviceType = "CPE"
	DeviceTypeRouter      DeviceType = "ROUTER"
	DeviceTypeSwitch      DeviceType = "SWITCH"
)

var AllDeviceType = []DeviceType{
	DeviceTypeOlt,
	DeviceTypeOnt,
	DeviceTypeAccessPoint,
	DeviceTypeCpe,
	DeviceTypeRouter,
	DeviceTypeSwitch,
}

func (e DeviceType) IsValid() bool {
	switch e {
	case DeviceTypeOlt, DeviceTypeOnt, DeviceTypeAccessPoint, DeviceTypeCpe, DeviceTypeRouter, DeviceTypeSwitch:
		return true
	}
	return false
}

func (e DeviceType) String() string {
	return string(e)
}

func (e *DeviceType) UnmarshalGQL(v any) error {
	return unmarshalEnumGQL(e, v, "DeviceType")
}

func (e DeviceType) MarshalGQL(w io.Writer) {
	fmt.Fprint(w, strconv.Quote(e.String()))
}

func (e *DeviceType) UnmarshalJSON(b []byte) error {
	return unmarshalEnumJSON(e, b, "DeviceType")
}

type DeviceStatus string

const (
	DeviceStatusOnline       DeviceStatus = "ONLINE"
	DeviceStatusOffline      DeviceStatus = "OFFLINE"
	DeviceStatusDegraded     DeviceStatus = "DEGRADED"
	DeviceStatusProvisioning DeviceStatus = "PROVISIONING"
	DeviceStatusMaintenance  DeviceStatus = "MAINTENANCE"
)

var AllDeviceStatus = []DeviceStatus{
	DeviceStatusOnline,
	DeviceStatusOffline,
	DeviceStatusDegraded,
	DeviceStatusProvisioning,
	DeviceStatusMaintenance,
}

func (e DeviceStatus) IsValid() bool {
	switch e {
	case DeviceStatusOnline, DeviceStatusOffline, DeviceStatusDegraded, DeviceStatusProvisioning, DeviceStatusMaintenance:
		return true
	}
	return false
}

func (e DeviceStatus) String() string {
	return string(e)
}

func (e *DeviceStatus) UnmarshalGQL(v any) error {
	return unmarshalEnumGQL(e, v, "DeviceStatus")
}

func (e DeviceStatus) MarshalGQL(w io.Writer) {
	fmt.Fprint(w, strconv.Quote(e.String()))
}

func (e *DeviceStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnumJSON(e, b, "DeviceStatus")
}

type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "INFO"
	AlertSeverityWarning  AlertSeverity = "WARNING"
	AlertSeverityMajor    AlertSeverity = "MAJOR"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

var AllAlertSeverity = []AlertSeverity{
	AlertSeverityInfo,
	AlertSeverityWarning,
	AlertSeverityMajor,
	AlertSeverityCritical,
}

func (e AlertSeverity) IsValid() bool {
	switch e {
	case AlertSeverityInfo, AlertSeverityWarning, AlertSeverityMajor, AlertSeverityCritical:
		return true
	}
	return false
}

func (e AlertSeverity) String() string {
	return string(e)
}

func (e *AlertSeverity) UnmarshalGQL(v any) error {
	return unmarshalEnumGQL(e, v, "AlertSeverity")
}

func (e AlertSeverity) MarshalGQL(w io.Writer) {
	fmt.Fprint(w, strconv.Quote(e.String()))
}

func (e *AlertSeverity) UnmarshalJSON(b []byte) error {
	return unmarshalEnumJSON(e, b, "AlertSeverity")
}

type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "ACTIVE"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
)

var AllAlertStatus = []AlertStatus{
	AlertStatusActive,
	AlertStatusAcknowledged,
	AlertStatusResolved,
}

func (e AlertStatus) IsValid() bool {
	switch e {
	case AlertStatusActive, AlertStatusAcknowledged, AlertStatusResolved:
		return true
	}
	return false
}

func (e AlertStatus) String() string {
	return string(e)
}

func (e *AlertStatus) UnmarshalGQL(v any) error {
	return unmarshalEnumGQL(e, v, "AlertStatus")
}

func (e AlertStatus) MarshalGQL(w io.Writer) {
	fmt.Fprint(w, strconv.Quote(e.String()))
}

func (e *AlertStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnumJSON(e, b, "AlertStatus")
}

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "PENDING"
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusSuspended SubscriptionStatus = "SUSPENDED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
)

var AllSubscriptionStatus = []SubscriptionStatus{
	SubscriptionStatusPending,
	SubscriptionStatusActive,
	SubscriptionStatusSuspended,
	SubscriptionStatusCancelled,
}

func (e SubscriptionStatus) IsValid() bool {
	switch e {
	case SubscriptionStatusPending, SubscriptionStatusActive, SubscriptionStatusSuspended, SubscriptionStatusCancelled:
		return true
	}
	return false
}

func (e SubscriptionStatus) String() string {
	return string(e)
}

func (e *SubscriptionStatus) UnmarshalGQL(v any) error {
	return unmarshalEnumGQL(e, v, "SubscriptionStatus")
}

func (e SubscriptionStatus) MarshalGQL(w io.Writer) {
	fmt.Fprint(w, strconv.Quote(e.String()))
}

func (e *SubscriptionStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnumJSON(e, b, "SubscriptionStatus")
}

type NetworkStatus string

const (
	NetworkStatusUp       NetworkStatus = "UP"
	NetworkStatusDegraded NetworkStatus = "DEGRADED"
	NetworkStatusDown     NetworkStatus = "DOWN"
)

var AllNetworkStatus = []NetworkStatus{
	NetworkStatusUp,
	NetworkStatusDegraded,
	NetworkStatusDown,
}

func (e NetworkStatus) IsValid() bool {
	switch e {
	case NetworkStatusUp, NetworkStatusDegraded, NetworkStatusDown:
		return true
	}
	return false
}

func (e NetworkStatus) String() string {
	return string(e)
}

func (e *NetworkStatus) UnmarshalGQL(v any) error {
	return unmarshalEnumGQL(e, v, "NetworkStatus")
}

func (e NetworkStatus) MarshalGQL(w io.Writer) {
	fmt.Fprint(w, strconv.Quote(e.String()))
}

func (e *NetworkStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnumJSON(e, b, "NetworkStatus")
}

type WorkflowStatus string

const (
	WorkflowStatusPending     WorkflowStatus = "PENDING"
	WorkflowStatusRunning     WorkflowStatus = "RUNNING"
	WorkflowStatusCompleted   WorkflowStatus = "COMPLETED"
	WorkflowStatusFailed      WorkflowStatus = "FAILED"
	WorkflowStatusCancelled   WorkflowStatus = "CANCELLED"
	WorkflowStatusRollingBack WorkflowStatus = "ROLLING_BACK"
	WorkflowStatusRolledBack  WorkflowStatus = "ROLLED_BACK"
)

var AllWorkflowStatus = []WorkflowStatus{
	WorkflowStatusPending,
	WorkflowStatusRunning,
	WorkflowStatusCompleted,
	WorkflowStatusFailed,
	WorkflowStatusCancelled,
	WorkflowStatusRollingBack,
	WorkflowStatusRolledBack,
}

func (e WorkflowStatus) IsValid() bool {
	switch e {
	case WorkflowStatusPending, WorkflowStatusRunning, WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled, WorkflowStatusRollingBack, WorkflowStatusRolledBack:
		return true
	}
	return false
}

func (e WorkflowStatus) String() string {
	return string(e)
}

func (e *WorkflowStatus) UnmarshalGQL(v any) error {
	return unmarshalEnumGQL(e, v, "WorkflowStatus")
}

func (e WorkflowStatus) MarshalGQL(w io.Writer) {
	fmt.Fprint(w, strconv.Quote(e.String()))
}

func (e *WorkflowStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnumJSON(e, b, "WorkflowStatus")
}

type WorkflowStepStatus string

const (
	WorkflowStepStatusPending      WorkflowStepStatus = "PENDING"
	WorkflowStepStatusRunning      WorkflowStepStatus = "RUNNING"
	WorkflowStepStatusCompleted    WorkflowStepStatus = "COMPLETED"
	WorkflowStepStatusFailed       WorkflowStepStatus = "FAILED"
	WorkflowStepStatusSkipped      WorkflowStepStatus = "SKIPPED"
	WorkflowStepStatusCompensating WorkflowStepStatus = "COMPENSATING"
	WorkflowStepStatusCompensated  WorkflowStepStatus = "COMPENSATED"
)

var AllWorkflowStepStatus = []WorkflowStepStatus{
	WorkflowStepStatusPending,
	WorkflowStepStatusRunning,
	WorkflowStepStatusCompleted,
	WorkflowStepStatusFailed,
	WorkflowStepStatusSkipped,
	WorkflowStepStatusCompensating,
	WorkflowStepStatusCompensated,
}

func (e WorkflowStepStatus) IsValid() bool {
	switch e {
	case WorkflowStepStatusPending, WorkflowStepStatusRunning, WorkflowStepStatusCompleted, WorkflowStepStatusFailed, WorkflowStepStatusSkipped, WorkflowStepStatusCompensating, WorkflowStepStatusCompensated:
		return true
	}
	return false
}

func (e WorkflowStepStatus) String() string {
	return string(e)
}

func (e *WorkflowStepStatus) UnmarshalGQL(v any) error {
	return unmarshalEnumGQL(e, v, "WorkflowStepStatus")
}

func (e WorkflowStepStatus) MarshalGQL(w io.Writer) {
	fmt.Fprint(w, strconv.Quote(e.String()))
}

func (e *WorkflowStepStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnumJSON(e, b, "WorkflowStepStatus")
}

// IsTerminal reports whether the workflow will not change status again
// without a retry.
func (e WorkflowStatus) IsTerminal() bool {
	switch e {
	case WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled, WorkflowStatusRolledBack:
		return true
	}
	return false
}

func (e WorkflowStatus) IsRetryable() bool {
	return e == WorkflowStatusFailed || e == WorkflowStatusRolledBack
}

func (e WorkflowStatus) IsCancellable() bool {
	return e == WorkflowStatusPending || e == WorkflowStatusRunning
}

func (e WorkflowStepStatus) IsTerminal() bool {
	switch e {
	case WorkflowStepStatusCompleted, WorkflowStepStatusFailed, WorkflowStepStatusSkipped, WorkflowStepStatusCompensated:
		return true
	}
	return false
}

// Rank orders severities from INFO (0) to CRITICAL (3). Unknown values rank -1.
func (e AlertSeverity) Rank() int {
	for i, s := range AllAlertSeverity {
		if s == e {
			return i
		}
	}
	return -1
}

// AtLeast reports whether e is as severe as threshold or more.
func (e AlertSeverity) AtLeast(threshold AlertSeverity) bool {
	return e.IsValid() && e.Rank() >= threshold.Rank()
}
