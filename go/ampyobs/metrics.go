package ampyobs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "ampyobs"

	metricInject     = "ampy.b3.inject_total"
	metricExtract    = "ampy.b3.extract_total"
	metricHeaderSize = "ampy.b3.header_size_bytes"
)

// Global meter assigned after Init sets the meter provider.
var globalMeter metric.Meter

// Instruments. Until Init enables metrics they record into the no-op meter.
var (
	b3Injected   metric.Int64Counter
	b3Extracted  metric.Int64Counter
	b3HeaderSize metric.Int64Histogram
)

// Public enums (bounded label values)
const (
	OutcomeOK     = "ok"
	OutcomeReject = "reject"
	OutcomeAbsent = "absent"
)

func init() {
	// Keeps the record helpers safe before Init.
	_ = initMetrics()
}

// initMetrics constructs instruments. Call once after MeterProvider is set.
func initMetrics() error {
	if globalMeter == nil {
		globalMeter = otel.Meter(meterName)
	}

	var err error

	b3Injected, err = globalMeter.Int64Counter(
		metricInject,
		metric.WithDescription("B3 trace contexts written into carriers"),
	)
	if err != nil {
		return err
	}

	b3Extracted, err = globalMeter.Int64Counter(
		metricExtract,
		metric.WithDescription("B3 extraction attempts by outcome and rejection reason"),
	)
	if err != nil {
		return err
	}

	b3HeaderSize, err = globalMeter.Int64Histogram(
		metricHeaderSize,
		metric.WithDescription("Total size of injected B3 header values"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	return nil
}

// useMeterProvider rebuilds the instruments against mp.
func useMeterProvider(mp metric.MeterProvider) error {
	globalMeter = mp.Meter(meterName)
	return initMetrics()
}

// ----------- Helper Recording Functions (safe labels only) -----------

// B3InjectAdd counts one injection and the bytes it wrote.
func B3InjectAdd(ctx context.Context, encoding string, size int) {
	attrs := metric.WithAttributes(
		attribute.String("encoding", encoding),
		attribute.String("service", globalCfg.ServiceName),
		attribute.String("env", globalCfg.Environment),
	)
	b3Injected.Add(ctx, 1, attrs)
	b3HeaderSize.Record(ctx, int64(size), attrs)
}

// B3ExtractAdd counts one extraction attempt. reason is empty on success.
func B3ExtractAdd(ctx context.Context, encoding, outcome, reason string) {
	b3Extracted.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("encoding", encoding),
			attribute.String("outcome", outcome),
			attribute.String("reason", reason),
			attribute.String("service", globalCfg.ServiceName),
			attribute.String("env", globalCfg.Environment),
		),
	)
}
