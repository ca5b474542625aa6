package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric := findLabelled(mfs, name, label, value)
	if metric == nil {
		return 0, fmt.Errorf("metric %q with %s=%s not found", name, label, value)
	}
	return metric.GetCounter().GetValue(), nil
}

func histogramSum(mfs []*dto.MetricFamily, name, job string) float64 {
	metric := findLabelled(mfs, name, "job", job)
	if metric == nil {
		return -1
	}
	return metric.GetHistogram().GetSampleSum()
}

func findLabelled(mfs []*dto.MetricFamily, name, label, value string) *dto.Metric {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric
				}
			}
		}
	}
	return nil
}
