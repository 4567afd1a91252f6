// Package operations runs the pipeline steps.
//
// A Step produces one or more chart outputs. Steps are registered in a
// Registry in the order they should run and carry a Frequency: frequent
// steps (Fed rates, inflation) run on every scheduled run, weekly steps
// (interest charts, debt health) only on the configured weekday, or when a
// run asks for all steps.
//
// The Manager executes the selected steps sequentially or, in parallel
// mode, concurrently up to MaxConcurrency. Each step gets its own timeout
// and is retried on network and upstream failures. Per-step state
// (pending, active, completed, failed, skipped) and the files each step
// wrote are kept on the OperationState and returned as an
// OperationResponse. Finalizers run after the steps, e.g. to bundle the
// run's CSVs into a workbook or to publish them.
//
// Example usage:
//
//	registry := operations.NewRegistry()
//	_ = registry.Register(fedStep)
//	cfg, _ := operations.FromPipelineConfig(appCfg.Pipeline)
//	manager := operations.NewManager(registry, cfg, logger)
//	resp, err := manager.Execute(ctx, operations.OperationRequest{All: true})
package operations
