package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/netopsio/netopsgql/netops"
	"github.com/netopsio/netopsgql/scalars"
)

const (
	outputJSON  = "json"
	outputTable = "table"
)

type printer struct {
	w      io.Writer
	format string
	title  cases.Caser
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case "", outputJSON:
		format = outputJSON
	case outputTable:
	default:
		return nil, fmt.Errorf("unknown output format %q, want %s or %s", format, outputJSON, outputTable)
	}

	return &printer{w: w, format: format, title: cases.Title(language.English)}, nil
}

// print writes v as indented JSON, or as the rows produced by table.
func (p *printer) print(v any, table func(t *tabwriter.Writer)) error {
	if p.format == outputJSON {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

// event writes one streamed value per line.
func (p *printer) event(v any, row func(t *tabwriter.Writer)) error {
	if p.format == outputJSON {
		return json.NewEncoder(p.w).Encode(v)
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	row(tw)
	return tw.Flush()
}

// label turns an enum value such as ROLLING_BACK into "Rolling Back".
func (p *printer) label(v fmt.Stringer) string {
	s := v.String()
	if s == "" {
		return "-"
	}
	return p.title.String(strings.ReplaceAll(s, "_", " "))
}

func row(t *tabwriter.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = cell(col)
	}
	_, _ = fmt.Fprintln(t, strings.Join(parts, "\t"))
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case string:
		if v == "" {
			return "-"
		}
		return v
	case *string:
		if v == nil {
			return "-"
		}
		return cell(*v)
	case *float64:
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.1f", *v)
	case float64:
		return fmt.Sprintf("%.1f", v)
	case *scalars.DateTime:
		if v == nil {
			return "-"
		}
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (p *printer) customers(conn *netops.CustomerConnection) error {
	return p.print(conn, func(t *tabwriter.Writer) {
		row(t, "ID", "ACCOUNT", "NAME", "STATUS", "SERVICE", "DEVICES")
		for _, c := range conn.GetNodes() {
			row(t, c.GetID(), c.GetAccountNumber(), c.GetName(), p.label(c.GetStatus()), p.label(c.GetServiceType()), len(c.GetDevices()))
		}
		info := conn.GetPageInfo()
		_, _ = fmt.Fprintf(t, "\n%d of %d customers", len(conn.GetNodes()), conn.GetTotalCount())
		if info.HasNextPage {
			_, _ = fmt.Fprintf(t, ", next page after %s", cell(info.EndCursor))
		}
		_, _ = fmt.Fprintln(t)
	})
}

func (p *printer) customer(c *netops.Customer) error {
	return p.print(c, func(t *tabwriter.Writer) {
		row(t, "ID", c.GetID())
		row(t, "Account", c.GetAccountNumber())
		row(t, "Name", c.GetName())
		row(t, "Email", c.GetEmail())
		row(t, "Phone", c.GetPhone())
		row(t, "Status", p.label(c.GetStatus()))
		row(t, "Service", p.label(c.GetServiceType()))
		if addr := c.GetAddress(); addr != nil {
			row(t, "Address", fmt.Sprintf("%s, %s %s", addr.Street, addr.PostalCode, addr.City))
		}
		for _, s := range c.GetSubscriptions() {
			row(t, "Plan", fmt.Sprintf("%s (%s, %d/%d Mbps)", s.PlanName, p.label(s.Status), s.DownloadMbps, s.UploadMbps))
		}
		for _, d := range c.GetDevices() {
			row(t, "Device", fmt.Sprintf("%s %s (%s)", p.label(d.GetType()), d.GetName(), p.label(d.GetStatus())))
		}
	})
}

func (p *printer) overview(o *netops.NetworkOverview) error {
	return p.print(o, func(t *tabwriter.Writer) {
		row(t, "Customers", fmt.Sprintf("%d active of %d", o.ActiveCustomers, o.TotalCustomers))
		row(t, "Devices", fmt.Sprintf("%d online, %d degraded, %d offline of %d", o.OnlineDevices, o.DegradedDevices, o.OfflineDevices, o.TotalDevices))
		row(t, "Alerts", fmt.Sprintf("%d active, %d critical", o.ActiveAlerts, o.CriticalAlerts))
		row(t, "Uptime", fmt.Sprintf("%.2f%%", o.AverageUptimePercent))
		row(t, "Updated", o.UpdatedAt.String())
	})
}

func (p *printer) fiber(d *netops.FiberDashboard) error {
	return p.print(d, func(t *tabwriter.Writer) {
		row(t, "OLTs", d.OltCount)
		row(t, "ONTs", fmt.Sprintf("%d online of %d", d.OntsOnline, d.OntCount))
		row(t, "Optical power (dBm)", d.AverageOpticalPowerDbm)
		row(t, "Active alarms", d.ActiveAlarms)
		row(t, "Updated", d.UpdatedAt.String())
		_, _ = fmt.Fprintln(t)
		row(t, "OLT", "PORT", "ONTS", "UTILIZATION")
		for _, port := range d.PonPorts {
			row(t, port.OltID, port.PortID, port.OntCount, fmt.Sprintf("%.1f%%", port.UtilizationPercent))
		}
	})
}

func (p *printer) wireless(d *netops.WirelessDashboard) error {
	return p.print(d, func(t *tabwriter.Writer) {
		row(t, "Access points", d.AccessPointCount)
		row(t, "CPEs", fmt.Sprintf("%d online of %d", d.CpesOnline, d.CpeCount))
		row(t, "Signal (dBm)", d.AverageSignalDbm)
		row(t, "SNR (dB)", d.AverageSnrDb)
		row(t, "Updated", d.UpdatedAt.String())
		_, _ = fmt.Fprintln(t)
		row(t, "SECTOR", "ACCESS POINT", "CLIENTS", "CHANNEL")
		for _, s := range d.Sectors {
			row(t, s.SectorID, s.AccessPointID, s.ConnectedClients, fmt.Sprintf("%.1f%%", s.ChannelUtilizationPercent))
		}
	})
}

func (p *printer) alerts(alerts []*netops.NetworkAlert) error {
	return p.print(alerts, func(t *tabwriter.Writer) {
		row(t, "ID", "SEVERITY", "STATUS", "DEVICE", "RAISED", "TITLE")
		for _, a := range alerts {
			p.alertRow(t, a)
		}
	})
}

func (p *printer) alertRow(t *tabwriter.Writer, a *netops.NetworkAlert) {
	row(t, a.GetID(), p.label(a.GetSeverity()), p.label(a.GetStatus()), a.GetDeviceID(), a.GetRaisedAt().String(), a.GetTitle())
}

func (p *printer) workflow(wf *netops.Workflow) error {
	return p.print(wf, func(t *tabwriter.Writer) {
		row(t, "ID", wf.GetID())
		row(t, "Type", wf.GetType())
		row(t, "Status", p.label(wf.GetStatus()))
		row(t, "Attempt", wf.GetAttempt())
		row(t, "Error", wf.GetError())
		row(t, "Updated", wf.GetUpdatedAt().String())
		_, _ = fmt.Fprintln(t)
		row(t, "#", "STEP", "STATUS", "ATTEMPTS", "ERROR")
		for _, s := range wf.GetSteps() {
			row(t, s.Position, s.Name, p.label(s.Status), s.Attempts, s.Error)
		}
	})
}

func (p *printer) workflowEvent(wf *netops.Workflow) error {
	return p.event(wf, func(t *tabwriter.Writer) {
		current := "-"
		if step := wf.CurrentStep(); step != nil {
			current = step.Name
		}
		row(t, wf.GetUpdatedAt().String(), wf.GetID(), p.label(wf.GetStatus()), current)
	})
}

func (p *printer) deviceEvent(d *netops.Device) error {
	return p.event(d, func(t *tabwriter.Writer) {
		row(t, d.GetID(), d.GetName(), p.label(d.GetType()), p.label(d.GetStatus()), d.GetSignalStrengthDbm(), d.GetLastSeenAt())
	})
}

func (p *printer) alertEvent(a *netops.NetworkAlert) error {
	return p.event(a, func(t *tabwriter.Writer) {
		p.alertRow(t, a)
	})
}

func (p *printer) customerStatusEvent(s *netops.CustomerNetworkStatus) error {
	return p.event(s, func(t *tabwriter.Writer) {
		row(t, s.GetUpdatedAt().String(), s.GetCustomerID(), p.label(s.GetStatus()), fmt.Sprintf("%d/%d online", s.GetOnlineDevices(), s.GetTotalDevices()))
	})
}
