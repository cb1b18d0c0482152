// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package metrics exposes retrieval and ingestion counters to Prometheus.
package metrics

import (
	"errors"

	"github.com/poiesic/hybridrag/storage"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybridrag",
			Name:      "searches_total",
			Help:      "Total number of searches by mode",
		},
		[]string{"mode"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hybridrag",
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)

	BackendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybridrag",
			Name:      "backend_failures_total",
			Help:      "Vector backend failures by operation",
		},
		[]string{"op"},
	)

	IngestedDocumentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hybridrag",
			Name:      "ingested_documents_total",
			Help:      "Total number of documents accepted by ingestion",
		},
	)

	FailedBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hybridrag",
			Name:      "failed_batches_total",
			Help:      "Total number of vector batches that could not be stored",
		},
	)

	CorpusDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hybridrag",
			Name:      "corpus_documents",
			Help:      "Number of documents in the live corpus",
		},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SearchesTotal,
		SearchDuration,
		BackendFailuresTotal,
		IngestedDocumentsTotal,
		FailedBatchesTotal,
		CorpusDocuments,
	}
}

// Register registers every collector with reg. Collectors that are already
// registered are skipped, so calling Register twice is harmless.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// RecordBackendFailure counts err under its backend operation. Errors that
// are not a *storage.BackendError are counted as "unknown".
func RecordBackendFailure(err error) {
	if err == nil {
		return
	}
	op := "unknown"
	var be *storage.BackendError
	if errors.As(err, &be) && be.Op != "" {
		op = be.Op
	}
	BackendFailuresTotal.WithLabelValues(op).Inc()
}

// RecordIngest counts an accepted corpus and its failed vector batches.
func RecordIngest(documents, failedBatches int) {
	IngestedDocumentsTotal.Add(float64(documents))
	FailedBatchesTotal.Add(float64(failedBatches))
	CorpusDocuments.Set(float64(documents))
}

// SetCorpusDocuments sets the live corpus size, for example after a reload.
func SetCorpusDocuments(n int) {
	CorpusDocuments.Set(float64(n))
}
