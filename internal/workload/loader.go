// Package workload loads CloudFactory-generated workload files: a VM
// template file and a CPU usage-model file, both in Java-properties
// layout with comma-separated key:value pairs as values.
package workload

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/vclusterlab/vclustersim/internal/domain"
)

// Template is one VM request decoded from the workload file.
type Template struct {
	VMID            int64
	MipsPerVCPU     float64
	VCPUs           int
	Level           float64
	RAMMiB          int64
	BandwidthMbps   int64
	StorageMiB      int64
	SubmissionDelay float64
	Lifetime        float64
	Model           string
}

// Spec converts the template to a VM spec.
func (t Template) Spec() domain.VMSpec {
	return domain.VMSpec{
		VCPUs:           t.VCPUs,
		MipsPerVCPU:     t.MipsPerVCPU,
		RAMMiB:          t.RAMMiB,
		BandwidthMbps:   t.BandwidthMbps,
		StorageMiB:      t.StorageMiB,
		Level:           t.Level,
		SubmissionDelay: t.SubmissionDelay,
		Lifetime:        t.Lifetime,
	}
}

// LoadTemplates reads a vms.properties file. Templates are returned in
// file order so runs are reproducible.
func LoadTemplates(path string) ([]Template, error) {
	entries, err := readProperties(path)
	if err != nil {
		return nil, err
	}

	templates := make([]Template, 0, len(entries))
	for _, entry := range entries {
		fields, err := decodeFields(entry.value)
		if err != nil {
			return nil, fmt.Errorf("workload %s: entry %q: %w", path, entry.key, err)
		}
		t, err := decodeTemplate(fields)
		if err != nil {
			return nil, fmt.Errorf("workload %s: entry %q: %w", path, entry.key, err)
		}
		templates = append(templates, t)
	}
	return templates, nil
}

func decodeTemplate(fields map[string]string) (Template, error) {
	var t Template
	var err error
	if t.VMID, err = intField(fields, "vmid"); err != nil {
		return t, err
	}
	if t.MipsPerVCPU, err = floatField(fields, "vmmips"); err != nil {
		return t, err
	}
	vcpus, err := intField(fields, "vmcpu")
	if err != nil {
		return t, err
	}
	t.VCPUs = int(vcpus)
	if t.Level, err = floatField(fields, "vmoc"); err != nil {
		return t, err
	}
	if t.RAMMiB, err = intField(fields, "vmram"); err != nil {
		return t, err
	}
	if t.BandwidthMbps, err = intField(fields, "vmbw"); err != nil {
		return t, err
	}
	if t.StorageMiB, err = intField(fields, "vmsize"); err != nil {
		return t, err
	}
	if t.SubmissionDelay, err = floatField(fields, "vmsubmission"); err != nil {
		return t, err
	}
	if t.Lifetime, err = floatField(fields, "cloudletlifetime"); err != nil {
		return t, err
	}
	t.Model = fields["cloudletmodel"]
	return t, nil
}

// ModelPoint is one (time, utilization) step of a usage model.
type ModelPoint struct {
	Time  float64
	Value float64
}

// UsageModel is a stepwise CPU utilization model in [0, 1], keyed by time.
type UsageModel struct {
	points []ModelPoint
}

// ValueAt returns the utilization for the given time: the value of the
// first point whose time exceeds t, or the last value once past the end.
func (m *UsageModel) ValueAt(t float64) float64 {
	var value float64
	for _, p := range m.points {
		value = p.Value
		if t < p.Time {
			break
		}
	}
	return value
}

// Mean returns the average utilization over [from, to].
func (m *UsageModel) Mean(from, to float64) float64 {
	if len(m.points) == 0 {
		return 0
	}
	var sum float64
	n := 0
	for _, p := range m.points {
		if p.Time < from || p.Time > to {
			continue
		}
		sum += p.Value
		n++
	}
	if n == 0 {
		return m.ValueAt(from)
	}
	return sum / float64(n)
}

// LoadModels reads a models.properties file mapping model names to
// comma-separated time:percentage steps.
func LoadModels(path string) (map[string]*UsageModel, error) {
	entries, err := readProperties(path)
	if err != nil {
		return nil, err
	}

	models := make(map[string]*UsageModel, len(entries))
	for _, entry := range entries {
		model, err := decodeModel(entry.value)
		if err != nil {
			return nil, fmt.Errorf("models %s: entry %q: %w", path, entry.key, err)
		}
		models[entry.key] = model
	}
	return models, nil
}

func decodeModel(line string) (*UsageModel, error) {
	var points []ModelPoint
	for _, pair := range strings.Split(line, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("malformed model step %q", pair)
		}
		t, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return nil, fmt.Errorf("model step time %q: %v", key, err)
		}
		pct, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("model step value %q: %v", value, err)
		}
		points = append(points, ModelPoint{Time: t, Value: pct / 100})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time < points[j].Time })
	return &UsageModel{points: points}, nil
}

type property struct {
	key   string
	value string
}

// readProperties parses the subset of the Java properties format the
// CloudFactory files use: one key=value per line, # and ! comments.
// The values themselves contain ':' and ',', so only '=' separates keys.
func readProperties(path string) ([]property, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workload file: %w", err)
	}
	defer f.Close()

	var entries []property
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "!") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("%s:%d: missing '=' separator", path, line)
		}
		entries = append(entries, property{
			key:   strings.TrimSpace(key),
			value: strings.TrimSpace(value),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read workload file: %w", err)
	}
	return entries, nil
}

func intField(fields map[string]string, key string) (int64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %v", key, err)
	}
	return v, nil
}

func floatField(fields map[string]string, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %v", key, err)
	}
	return v, nil
}

// decodeFields splits a comma-separated key:value list.
func decodeFields(line string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, pair := range strings.Split(line, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("malformed field %q", pair)
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields, nil
}
