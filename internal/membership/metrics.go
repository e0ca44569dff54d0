package membership

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	registrations metric.Int64Counter
	renewals      metric.Int64Counter
	deletions     metric.Int64Counter
	revenue       metric.Float64Counter
}

func newInstruments() instruments {
	meter := otel.Meter("atlasgym/membership")
	var in instruments
	var err error
	if in.registrations, err = meter.Int64Counter("atlasgym.members.registered",
		metric.WithDescription("Members created by registrations")); err != nil {
		slog.Warn("metric unavailable", "name", "atlasgym.members.registered", "error", err)
	}
	if in.renewals, err = meter.Int64Counter("atlasgym.members.renewed",
		metric.WithDescription("Members whose expiry was extended")); err != nil {
		slog.Warn("metric unavailable", "name", "atlasgym.members.renewed", "error", err)
	}
	if in.deletions, err = meter.Int64Counter("atlasgym.members.deleted",
		metric.WithDescription("Members moved to the trash")); err != nil {
		slog.Warn("metric unavailable", "name", "atlasgym.members.deleted", "error", err)
	}
	if in.revenue, err = meter.Float64Counter("atlasgym.membership.revenue",
		metric.WithDescription("Amount charged for registrations and renewals")); err != nil {
		slog.Warn("metric unavailable", "name", "atlasgym.membership.revenue", "error", err)
	}
	return in
}

func add(ctx context.Context, c metric.Int64Counter, n int, plan string) {
	if c != nil {
		c.Add(ctx, int64(n), metric.WithAttributes(attribute.String("plan", plan)))
	}
}

func (in instruments) charge(ctx context.Context, amount float64, kind string) {
	if in.revenue != nil && amount > 0 {
		in.revenue.Add(ctx, amount, metric.WithAttributes(attribute.String("kind", kind)))
	}
}
