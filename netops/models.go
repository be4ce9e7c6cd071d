package netops

import (
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"

	"github.com/netopsio/netopsgql/scalars"
)

type Address struct {
	Street     string   `json:"street"`
	City       string   `json:"city"`
	PostalCode string   `json:"postalCode"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

// CustomerSubscription is a service plan a customer pays for. The schema calls it Subscription.
type CustomerSubscription struct {
	ID           string             `json:"id"`
	PlanName     string             `json:"planName"`
	Status       SubscriptionStatus `json:"status"`
	DownloadMbps int                `json:"downloadMbps"`
	UploadMbps   int                `json:"uploadMbps"`
	MonthlyPrice float64            `json:"monthlyPrice"`
	StartedAt    *scalars.DateTime  `json:"startedAt"`
}

type Device struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Type              DeviceType        `json:"type"`
	Status            DeviceStatus      `json:"status"`
	SerialNumber      string            `json:"serialNumber"`
	IPAddress         *string           `json:"ipAddress"`
	FirmwareVersion   *string           `json:"firmwareVersion"`
	CustomerID        *string           `json:"customerId"`
	SignalStrengthDbm *float64          `json:"signalStrengthDbm"`
	LastSeenAt        *scalars.DateTime `json:"lastSeenAt"`
	Metrics           scalars.JSON      `json:"metrics"`
}

func (t *Device) GetID() string {
	if t == nil {
		t = &Device{}
	}
	return t.ID
}

func (t *Device) GetName() string {
	if t == nil {
		t = &Device{}
	}
	return t.Name
}

func (t *Device) GetType() DeviceType {
	if t == nil {
		t = &Device{}
	}
	return t.Type
}

func (t *Device) GetStatus() DeviceStatus {
	if t == nil {
		t = &Device{}
	}
	return t.Status
}

func (t *Device) GetSerialNumber() string {
	if t == nil {
		t = &Device{}
	}
	return t.SerialNumber
}

func (t *Device) GetIPAddress() *string {
	if t == nil {
		t = &Device{}
	}
	return t.IPAddress
}

func (t *Device) GetFirmwareVersion() *string {
	if t == nil {
		t = &Device{}
	}
	return t.FirmwareVersion
}

func (t *Device) GetCustomerID() *string {
	if t == nil {
		t = &Device{}
	}
	return t.CustomerID
}

func (t *Device) GetSignalStrengthDbm() *float64 {
	if t == nil {
		t = &Device{}
	}
	return t.SignalStrengthDbm
}

func (t *Device) GetLastSeenAt() *scalars.DateTime {
	if t == nil {
		t = &Device{}
	}
	return t.LastSeenAt
}

func (t *Device) GetMetrics() scalars.JSON {
	if t == nil {
		t = &Device{}
	}
	return t.Metrics
}

type Customer struct {
	ID            string                  `json:"id"`
	AccountNumber string                  `json:"accountNumber"`
	Name          string                  `json:"name"`
	Email         string                  `json:"email"`
	Phone         *string                 `json:"phone"`
	Status        CustomerStatus          `json:"status"`
	ServiceType   ServiceType             `json:"serviceType"`
	Address       *Address                `json:"address"`
	Subscriptions []*CustomerSubscription `json:"subscriptions"`
	Devices       []*Device               `json:"devices"`
	CreatedAt     scalars.DateTime        `json:"createdAt"`
}

func (t *Customer) GetID() string {
	if t == nil {
		t = &Customer{}
	}
	return t.ID
}

func (t *Customer) GetAccountNumber() string {
	if t == nil {
		t = &Customer{}
	}
	return t.AccountNumber
}

func (t *Customer) GetName() string {
	if t == nil {
		t = &Customer{}
	}
	return t.Name
}

func (t *Customer) GetEmail() string {
	if t == nil {
		t = &Customer{}
	}
	return t.Email
}

func (t *Customer) GetPhone() *string {
	if t == nil {
		t = &Customer{}
	}
	return t.Phone
}

func (t *Customer) GetStatus() CustomerStatus {
	if t == nil {
		t = &Customer{}
	}
	return t.Status
}

func (t *Customer) GetServiceType() ServiceType {
	if t == nil {
		t = &Customer{}
	}
	return t.ServiceType
}

func (t *Customer) GetAddress() *Address {
	if t == nil {
		t = &Customer{}
	}
	return t.Address
}

func (t *Customer) GetSubscriptions() []*CustomerSubscription {
	if t == nil {
		t = &Customer{}
	}
	return t.Subscriptions
}

func (t *Customer) GetDevices() []*Device {
	if t == nil {
		t = &Customer{}
	}
	return t.Devices
}

func (t *Customer) GetCreatedAt() scalars.DateTime {
	if t == nil {
		t = &Customer{}
	}
	return t.CreatedAt
}

type PageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

type CustomerConnection struct {
	Nodes      []*Customer `json:"nodes"`
	TotalCount int         `json:"totalCount"`
	PageInfo   PageInfo    `json:"pageInfo"`
}

func (t *CustomerConnection) GetNodes() []*Customer {
	if t == nil {
		t = &CustomerConnection{}
	}
	return t.Nodes
}

func (t *CustomerConnection) GetTotalCount() int {
	if t == nil {
		t = &CustomerConnection{}
	}
	return t.TotalCount
}

func (t *CustomerConnection) GetPageInfo() *PageInfo {
	if t == nil {
		t = &CustomerConnection{}
	}
	return &t.PageInfo
}

type NetworkAlert struct {
	ID             string            `json:"id"`
	Severity       AlertSeverity     `json:"severity"`
	Status         AlertStatus       `json:"status"`
	Title          string            `json:"title"`
	Message        string            `json:"message"`
	DeviceID       *string           `json:"deviceId"`
	RaisedAt       scalars.DateTime  `json:"raisedAt"`
	AcknowledgedAt *scalars.DateTime `json:"acknowledgedAt"`
	ResolvedAt     *scalars.DateTime `json:"resolvedAt"`
}

func (t *NetworkAlert) GetID() string {
	if t == nil {
		t = &NetworkAlert{}
	}
	return t.ID
}

func (t *NetworkAlert) GetSeverity() AlertSeverity {
	if t == nil {
		t = &NetworkAlert{}
	}
	return t.Severity
}

func (t *NetworkAlert) GetStatus() AlertStatus {
	if t == nil {
		t = &NetworkAlert{}
	}
	return t.Status
}

func (t *NetworkAlert) GetTitle() string {
	if t == nil {
		t = &NetworkAlert{}
	}
	return t.Title
}

func (t *NetworkAlert) GetMessage() string {
	if t == nil {
		t = &NetworkAlert{}
	}
	return t.Message
}

func (t *NetworkAlert) GetDeviceID() *string {
	if t == nil {
		t = &NetworkAlert{}
	}
	return t.DeviceID
}

func (t *NetworkAlert) GetRaisedAt() scalars.DateTime {
	if t == nil {
		t = &NetworkAlert{}
	}
	return t.RaisedAt
}

func (t *NetworkAlert) GetAcknowledgedAt() *scalars.DateTime {
	if t == nil {
		t = &NetworkAlert{}
	}
	return t.AcknowledgedAt
}

func (t *NetworkAlert) GetResolvedAt() *scalars.DateTime {
	if t == nil {
		t = &NetworkAlert{}
	}
	return t.ResolvedAt
}

type NetworkOverview struct {
	TotalCustomers       int              `json:"totalCustomers"`
	ActiveCustomers      int              `json:"activeCustomers"`
	TotalDevices         int              `json:"totalDevices"`
	OnlineDevices        int              `json:"onlineDevices"`
	OfflineDevices       int              `json:"offlineDevices"`
	DegradedDevices      int              `json:"degradedDevices"`
	ActiveAlerts         int              `json:"activeAlerts"`
	CriticalAlerts       int              `json:"criticalAlerts"`
	AverageUptimePercent float64          `json:"averageUptimePercent"`
	UpdatedAt            scalars.DateTime `json:"updatedAt"`
}

type PonPortUtilization struct {
	OltID              string  `json:"oltId"`
	PortID             string  `json:"portId"`
	OntCount           int     `json:"ontCount"`
	UtilizationPercent float64 `json:"utilizationPercent"`
}

type FiberDashboard struct {
	OltCount               int                   `json:"oltCount"`
	OntCount               int                   `json:"ontCount"`
	OntsOnline             int                   `json:"ontsOnline"`
	AverageOpticalPowerDbm *float64              `json:"averageOpticalPowerDbm"`
	PonPorts               []*PonPortUtilization `json:"ponPorts"`
	ActiveAlarms           int                   `json:"activeAlarms"`
	UpdatedAt              scalars.DateTime      `json:"updatedAt"`
}

type SectorStats struct {
	SectorID                  string  `json:"sectorId"`
	AccessPointID             string  `json:"accessPointId"`
	ConnectedClients          int     `json:"connectedClients"`
	ChannelUtilizationPercent float64 `json:"channelUtilizationPercent"`
}

type WirelessDashboard struct {
	AccessPointCount int              `json:"accessPointCount"`
	CpeCount         int              `json:"cpeCount"`
	CpesOnline       int              `json:"cpesOnline"`
	AverageSignalDbm *float64         `json:"averageSignalDbm"`
	AverageSnrDb     *float64         `json:"averageSnrDb"`
	Sectors          []*SectorStats   `json:"sectors"`
	UpdatedAt        scalars.DateTime `json:"updatedAt"`
}

type WorkflowStep struct {
	Name        string             `json:"name"`
	Position    int                `json:"position"`
	Status      WorkflowStepStatus `json:"status"`
	Attempts    int                `json:"attempts"`
	Error       *string            `json:"error"`
	StartedAt   *scalars.DateTime  `json:"startedAt"`
	CompletedAt *scalars.DateTime  `json:"completedAt"`
}

type Workflow struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Status      WorkflowStatus    `json:"status"`
	CustomerID  *string           `json:"customerId"`
	Attempt     int               `json:"attempt"`
	Steps       []*WorkflowStep   `json:"steps"`
	Error       *string           `json:"error"`
	CreatedAt   scalars.DateTime  `json:"createdAt"`
	UpdatedAt   scalars.DateTime  `json:"updatedAt"`
	CompletedAt *scalars.DateTime `json:"completedAt"`
}

func (t *Workflow) GetID() string {
	if t == nil {
		t = &Workflow{}
	}
	return t.ID
}

func (t *Workflow) GetType() string {
	if t == nil {
		t = &Workflow{}
	}
	return t.Type
}

func (t *Workflow) GetStatus() WorkflowStatus {
	if t == nil {
		t = &Workflow{}
	}
	return t.Status
}

func (t *Workflow) GetCustomerID() *string {
	if t == nil {
		t = &Workflow{}
	}
	return t.CustomerID
}

func (t *Workflow) GetAttempt() int {
	if t == nil {
		t = &Workflow{}
	}
	return t.Attempt
}

func (t *Workflow) GetSteps() []*WorkflowStep {
	if t == nil {
		t = &Workflow{}
	}
	return t.Steps
}

func (t *Workflow) GetError() *string {
	if t == nil {
		t = &Workflow{}
	}
	return t.Error
}

func (t *Workflow) GetCreatedAt() scalars.DateTime {
	if t == nil {
		t = &Workflow{}
	}
	return t.CreatedAt
}

func (t *Workflow) GetUpdatedAt() scalars.DateTime {
	if t == nil {
		t = &Workflow{}
	}
	return t.UpdatedAt
}

func (t *Workflow) GetCompletedAt() *scalars.DateTime {
	if t == nil {
		t = &Workflow{}
	}
	return t.CompletedAt
}

type ProvisionSubscriberPayload struct {
	Workflow Workflow  `json:"workflow"`
	Customer *Customer `json:"customer"`
}

func (t *ProvisionSubscriberPayload) GetWorkflow() *Workflow {
	if t == nil {
		t = &ProvisionSubscriberPayload{}
	}
	return &t.Workflow
}

func (t *ProvisionSubscriberPayload) GetCustomer() *Customer {
	if t == nil {
		t = &ProvisionSubscriberPayload{}
	}
	return t.Customer
}

type CustomerNetworkStatus struct {
	CustomerID    string           `json:"customerId"`
	Status        NetworkStatus    `json:"status"`
	OnlineDevices int              `json:"onlineDevices"`
	TotalDevices  int              `json:"totalDevices"`
	UpdatedAt     scalars.DateTime `json:"updatedAt"`
}

func (t *CustomerNetworkStatus) GetCustomerID() string {
	if t == nil {
		t = &CustomerNetworkStatus{}
	}
	return t.CustomerID
}

func (t *CustomerNetworkStatus) GetStatus() NetworkStatus {
	if t == nil {
		t = &CustomerNetworkStatus{}
	}
	return t.Status
}

func (t *CustomerNetworkStatus) GetOnlineDevices() int {
	if t == nil {
		t = &CustomerNetworkStatus{}
	}
	return t.OnlineDevices
}

func (t *CustomerNetworkStatus) GetTotalDevices() int {
	if t == nil {
		t = &CustomerNetworkStatus{}
	}
	return t.TotalDevices
}

func (t *CustomerNetworkStatus) GetUpdatedAt() scalars.DateTime {
	if t == nil {
		t = &CustomerNetworkStatus{}
	}
	return t.UpdatedAt
}

// CurrentStep returns the first step that has not reached a terminal status,
// or nil when every step is done.
func (t *Workflow) CurrentStep() *WorkflowStep {
	for _, step := range t.GetSteps() {
		if step != nil && !step.Status.IsTerminal() {
			return step
		}
	}
	return nil
}

type CustomerFilter struct {
	Status      *CustomerStatus `json:"status,omitempty"`
	ServiceType *ServiceType    `json:"serviceType,omitempty"`
	Search      *string         `json:"search,omitempty"`
}

type AddressInput struct {
	Street     string   `json:"street"`
	City       string   `json:"city"`
	PostalCode string   `json:"postalCode"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

type ProvisionSubscriberInput struct {
	Name               string       `json:"name"`
	Email              string       `json:"email"`
	Phone              *string      `json:"phone,omitempty"`
	Address            AddressInput `json:"address"`
	PlanID             string       `json:"planId"`
	ServiceType        ServiceType  `json:"serviceType"`
	DeviceSerialNumber *string      `json:"deviceSerialNumber,omitempty"`
}

// ErrInvalidInput is returned before any request is sent when arguments are
// rejected locally.
var ErrInvalidInput = errors.New("invalid input")

// Validate checks the fields the server would reject anyway.
func (in *ProvisionSubscriberInput) Validate() error {
	var problems []string
	required := func(field, v string) {
		if strings.TrimSpace(v) == "" {
			problems = append(problems, field+" is required")
		}
	}

	required("name", in.Name)
	required("email", in.Email)
	required("address.street", in.Address.Street)
	required("address.city", in.Address.City)
	required("address.postalCode", in.Address.PostalCode)
	required("planId", in.PlanID)

	if in.Email != "" {
		if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
			problems = append(problems, fmt.Sprintf("email %q is not a valid address", in.Email))
		}
	}
	if !in.ServiceType.IsValid() {
		problems = append(problems, fmt.Sprintf("serviceType %q is not one of %v", in.ServiceType, AllServiceType))
	}
	if lat := in.Address.Latitude; lat != nil && (math.IsNaN(*lat) || *lat < -90 || *lat > 90) {
		problems = append(problems, "address.latitude must be within [-90, 90]")
	}
	if lng := in.Address.Longitude; lng != nil && (math.IsNaN(*lng) || *lng < -180 || *lng > 180) {
		problems = append(problems, "address.longitude must be within [-180, 180]")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}
