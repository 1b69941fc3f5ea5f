//go:build wireinject
// +build wireinject

package di

import (
	"TradeGate/pkg/config"
	"TradeGate/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// The returned cleanup closes infrastructure clients in reverse order.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Infrastructure
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,

		// Audit and snapshots
		ProvideAuditSink,
		ProvideAuditPipeline,
		ProvideSnapshotStore,

		// Decision core
		ProvidePolicy,
		ProvideScalpManager,
		ProvideOrchestrator,
		ProvideLearner,

		// Intake
		ProvideDispatcher,
		ProvideTickHandler,
		ProvideTradeCloseHandler,
		ProvideTickCollector,
		ProvideKafkaConsumer,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
