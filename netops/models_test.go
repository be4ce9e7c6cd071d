package netops

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestWorkflowStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status      WorkflowStatus
		terminal    bool
		retryable   bool
		cancellable bool
	}{
		{status: WorkflowStatusPending, cancellable: true},
		{status: WorkflowStatusRunning, cancellable: true},
		{status: WorkflowStatusCompleted, terminal: true},
		{status: WorkflowStatusFailed, terminal: true, retryable: true},
		{status: WorkflowStatusCancelled, terminal: true},
		{status: WorkflowStatusRollingBack},
		{status: WorkflowStatusRolledBack, terminal: true, retryable: true},
	}

	require.Len(t, tests, len(AllWorkflowStatus))
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			t.Parallel()
			require.True(t, tt.status.IsValid())
			require.Equal(t, tt.terminal, tt.status.IsTerminal())
			require.Equal(t, tt.retryable, tt.status.IsRetryable())
			require.Equal(t, tt.cancellable, tt.status.IsCancellable())
		})
	}
}

func TestWorkflowStepStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	var terminal []WorkflowStepStatus
	for _, s := range AllWorkflowStepStatus {
		if s.IsTerminal() {
			terminal = append(terminal, s)
		}
	}

	want := []WorkflowStepStatus{
		WorkflowStepStatusCompleted,
		WorkflowStepStatusFailed,
		WorkflowStepStatusSkipped,
		WorkflowStepStatusCompensated,
	}
	if diff := cmp.Diff(want, terminal); diff != "" {
		t.Errorf("terminal step statuses mismatch (-want +got):\n%s", diff)
	}
}

func TestEnum_GQL(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	DeviceTypeAccessPoint.MarshalGQL(&buf)
	require.Equal(t, `"ACCESS_POINT"`, buf.String())

	var dt DeviceType
	require.NoError(t, dt.UnmarshalGQL("CPE"))
	require.Equal(t, DeviceTypeCpe, dt)

	err := dt.UnmarshalGQL("MODEM")
	require.EqualError(t, err, "MODEM is not a valid DeviceType")
	require.Equal(t, DeviceTypeCpe, dt)

	require.EqualError(t, dt.UnmarshalGQL(3), "enums must be strings")
}

func TestEnum_JSON(t *testing.T) {
	t.Parallel()

	var device Device
	require.NoError(t, json.Unmarshal([]byte(`{"id":"d1","type":"ONT","status":"DEGRADED"}`), &device))
	require.Equal(t, DeviceTypeOnt, device.Type)
	require.Equal(t, DeviceStatusDegraded, device.Status)

	err := json.Unmarshal([]byte(`{"id":"d1","type":"ONT","status":"ON_FIRE"}`), &device)
	require.ErrorContains(t, err, "ON_FIRE is not a valid DeviceStatus")

	var filter CustomerFilter
	require.NoError(t, json.Unmarshal([]byte(`{"status":null}`), &filter))
	require.Nil(t, filter.Status)

	b, err := json.Marshal(CustomerFilter{Status: ptr(CustomerStatusSuspended)})
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"SUSPENDED"}`, string(b))
}

func TestAlertSeverity_AtLeast(t *testing.T) {
	t.Parallel()

	require.True(t, AlertSeverityCritical.AtLeast(AlertSeverityMajor))
	require.True(t, AlertSeverityMajor.AtLeast(AlertSeverityMajor))
	require.False(t, AlertSeverityWarning.AtLeast(AlertSeverityMajor))
	require.False(t, AlertSeverity("LOUD").AtLeast(AlertSeverityInfo))
	require.Equal(t, -1, AlertSeverity("LOUD").Rank())
}

func TestGetters_NilSafe(t *testing.T) {
	t.Parallel()

	var customer *Customer
	require.Empty(t, customer.GetID())
	require.Nil(t, customer.GetDevices())
	require.Nil(t, customer.GetAddress())

	var payload *ProvisionSubscriberPayload
	require.Empty(t, payload.GetWorkflow().GetID())
	require.Nil(t, payload.GetWorkflow().CurrentStep())

	var conn *CustomerConnection
	require.False(t, conn.GetPageInfo().HasNextPage)
}

func TestWorkflow_CurrentStep(t *testing.T) {
	t.Parallel()

	wf := &Workflow{Steps: []*WorkflowStep{
		{Name: "reserve-port", Status: WorkflowStepStatusCompleted},
		{Name: "activate-ont", Status: WorkflowStepStatusRunning},
		{Name: "notify", Status: WorkflowStepStatusPending},
	}}
	require.Equal(t, "activate-ont", wf.CurrentStep().Name)

	wf.Steps[1].Status = WorkflowStepStatusSkipped
	wf.Steps[2].Status = WorkflowStepStatusCompleted
	require.Nil(t, wf.CurrentStep())
}

func validProvisionInput() ProvisionSubscriberInput {
	return ProvisionSubscriberInput{
		Name:  "Ada Lovelace",
		Email: "ada@example.net",
		Address: AddressInput{
			Street:     "12 Analytical Way",
			City:       "London",
			PostalCode: "N1 9GU",
		},
		PlanID:      "plan-fiber-1g",
		ServiceType: ServiceTypeFiber,
	}
}

func TestProvisionSubscriberInput_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(in *ProvisionSubscriberInput)
		wantErr []string
	}{
		{
			name:   "valid",
			mutate: func(in *ProvisionSubscriberInput) {},
		},
		{
			name: "missing required fields",
			mutate: func(in *ProvisionSubscriberInput) {
				in.Name = " "
				in.PlanID = ""
				in.Address.City = ""
			},
			wantErr: []string{"name is required", "planId is required", "address.city is required"},
		},
		{
			name:    "bad email",
			mutate:  func(in *ProvisionSubscriberInput) { in.Email = "Ada <ada@example.net>" },
			wantErr: []string{`email "Ada <ada@example.net>" is not a valid address`},
		},
		{
			name:    "unknown service type",
			mutate:  func(in *ProvisionSubscriberInput) { in.ServiceType = "DSL" },
			wantErr: []string{`serviceType "DSL"`},
		},
		{
			name: "coordinates out of range",
			mutate: func(in *ProvisionSubscriberInput) {
				in.Address.Latitude = ptr(91.0)
				in.Address.Longitude = ptr(-180.0)
			},
			wantErr: []string{"address.latitude"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := validProvisionInput()
			tt.mutate(&in)
			err := in.Validate()
			if len(tt.wantErr) == 0 {
				require.NoError(t, err)
				return
			}

			require.True(t, errors.Is(err, ErrInvalidInput))
			for _, want := range tt.wantErr {
				require.ErrorContains(t, err, want)
			}
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
