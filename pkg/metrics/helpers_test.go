package metrics

import (
	"fmt"
	"slices"

	dto "github.com/prometheus/client_model/go"
)

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	i := slices.IndexFunc(mfs, func(mf *dto.MetricFamily) bool { return mf.GetName() == name })
	if i < 0 {
		return nil
	}
	return mfs[i]
}

// findSeries returns the first series of name whose labels include want.
func findSeries(mfs []*dto.MetricFamily, name string, want map[string]string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("no metric family %s", name)
	}
	for _, series := range mf.GetMetric() {
		if hasLabels(series, want) {
			return series, nil
		}
	}
	return nil, fmt.Errorf("%s has no series labelled %v", name, want)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, want map[string]string) (float64, error) {
	series, err := findSeries(mfs, name, want)
	if err != nil {
		return 0, err
	}
	return series.GetCounter().GetValue(), nil
}

func hasLabels(series *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(series.GetLabel()))
	for _, pair := range series.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
