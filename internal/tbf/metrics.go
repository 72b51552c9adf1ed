// SPDX-License-Identifier: MIT

package tbf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var attrChunksWritten = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tbf_attr_chunks_total",
		Help: "Attribute chunks written by the encoder, by wire form",
	},
	[]string{"kind"},
)
