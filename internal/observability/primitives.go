package observability

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type kind string

const (
	kindCounter   kind = "counter"
	kindGauge     kind = "gauge"
	kindHistogram kind = "histogram"
)

// family is one metric name and its labelled series, exposed in the
// Prometheus text format.
type family struct {
	name    string
	help    string
	kind    kind
	labels  []string
	buckets []float64

	mu     sync.Mutex
	series map[string]*series
}

// series holds a counter or gauge value, or a histogram's per-bucket counts
// with the +Inf count last.
type series struct {
	value  float64
	counts []uint64
	sum    float64
}

func newCounter(name, help string, labels ...string) *family {
	return &family{name: name, help: help, kind: kindCounter, labels: labels, series: map[string]*series{}}
}

func newGauge(name, help string, labels ...string) *family {
	return &family{name: name, help: help, kind: kindGauge, labels: labels, series: map[string]*series{}}
}

func newHistogram(name, help string, buckets []float64, labels ...string) *family {
	b := append([]float64(nil), buckets...)
	sort.Float64s(b)
	return &family{name: name, help: help, kind: kindHistogram, labels: labels, buckets: b, series: map[string]*series{}}
}

// at returns the series for values, creating it. Callers hold f.mu.
func (f *family) at(values []string) *series {
	key := labelString(f.labels, values)
	s, ok := f.series[key]
	if !ok {
		s = &series{}
		if f.kind == kindHistogram {
			s.counts = make([]uint64, len(f.buckets)+1)
		}
		f.series[key] = s
	}
	return s
}

func (f *family) add(v float64, values ...string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.at(values).value += v
	f.mu.Unlock()
}

func (f *family) set(v float64, values ...string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.at(values).value = v
	f.mu.Unlock()
}

func (f *family) observe(v float64, values ...string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.at(values)
	s.sum += v
	for i, b := range f.buckets {
		if v <= b {
			s.counts[i]++
		}
	}
	s.counts[len(f.buckets)]++
}

func (f *family) writeTo(w io.Writer) error {
	if f == nil {
		return nil
	}
	bw := bufio.NewWriter(w)
	bw.WriteString("# HELP " + f.name + " " + f.help + "\n")
	bw.WriteString("# TYPE " + f.name + " " + string(f.kind) + "\n")

	f.mu.Lock()
	keys := make([]string, 0, len(f.series))
	for k := range f.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := f.series[k]
		if f.kind != kindHistogram {
			bw.WriteString(f.name + k + " " + formatFloat(s.value) + "\n")
			continue
		}
		for i, b := range f.buckets {
			bw.WriteString(f.name + "_bucket" + withLe(k, formatFloat(b)) + " " + strconv.FormatUint(s.counts[i], 10) + "\n")
		}
		total := s.counts[len(f.buckets)]
		bw.WriteString(f.name + "_bucket" + withLe(k, "+Inf") + " " + strconv.FormatUint(total, 10) + "\n")
		bw.WriteString(f.name + "_sum" + k + " " + formatFloat(s.sum) + "\n")
		bw.WriteString(f.name + "_count" + k + " " + strconv.FormatUint(total, 10) + "\n")
	}
	f.mu.Unlock()
	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// labelString renders {a="x",b="y"}; missing values read "unknown".
func labelString(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, len(names))
	for i, name := range names {
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		parts[i] = name + `="` + labelEscaper.Replace(val) + `"`
	}
	return "{" + strings.Join(parts, ",") + "}"
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func withLe(labels, le string) string {
	if labels == "" {
		return `{le="` + le + `"}`
	}
	return strings.TrimSuffix(labels, "}") + `,le="` + le + `"}`
}

func isServerErrorStatus(status string) bool {
	status = strings.TrimSpace(status)
	return len(status) == 3 && status[0] == '5'
}
