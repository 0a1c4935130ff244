// Package report renders a finished simulation result for the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vclusterlab/vclustersim/internal/sim"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Render formats the result as VM and host tables with a run summary.
func Render(result *sim.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", titleStyle.Render(fmt.Sprintf("Run %s", result.Run.ID)))
	fmt.Fprintf(&b, "clock %.1f | hosts %d x %d PEs | submitted %d | placed %d | failed %d\n\n",
		result.Clock, result.Run.Hosts, result.Run.PesPerHost,
		result.Run.SubmittedVMs, result.Run.PlacedVMs, result.Run.FailedVMs)

	b.WriteString(titleStyle.Render("VM results"))
	b.WriteString("\n")
	b.WriteString(renderVMs(result.VMs))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Host results"))
	b.WriteString("\n")
	b.WriteString(renderHosts(result.Hosts))
	b.WriteString("\n")

	return b.String()
}

func renderVMs(vms []sim.VMResult) string {
	t := newTable("VM", "vCPU", "oc", "State", "Host", "MIPS req", "MIPS alloc", "CPU mean %")
	for _, vm := range vms {
		hostCol := "-"
		if vm.HostID >= 0 {
			hostCol = fmt.Sprintf("%d", vm.HostID)
		}
		t.Row(
			fmt.Sprintf("%d", vm.VMID),
			fmt.Sprintf("%d", vm.VCPUs),
			fmt.Sprintf("%g", vm.Level),
			string(vm.State),
			hostCol,
			fmt.Sprintf("%.0f", vm.RequestedMips),
			fmt.Sprintf("%.0f", vm.AllocatedMips),
			fmt.Sprintf("%.2f", vm.MeanCPU),
		)
	}
	return t.Render()
}

func renderHosts(hosts []sim.HostResult) string {
	t := newTable("Host", "PEs", "Min %", "Avg %", "Max %", "Samples")
	for _, h := range hosts {
		if h.Samples == 0 {
			t.Row(fmt.Sprintf("%d", h.HostID), fmt.Sprintf("%d", h.PEs), "-", "-", "-", "0")
			continue
		}
		t.Row(
			fmt.Sprintf("%d", h.HostID),
			fmt.Sprintf("%d", h.PEs),
			fmt.Sprintf("%.1f", h.MinUsage),
			fmt.Sprintf("%.1f", h.AvgUsage),
			fmt.Sprintf("%.1f", h.MaxUsage),
			fmt.Sprintf("%d", h.Samples),
		)
	}
	return t.Render()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}
