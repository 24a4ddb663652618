// Package hpcpool dispatches function calls to pools of worker processes,
// optionally placed on HPC resources through MPI, SLURM or Flux.
//
// Functions are registered by name in a shared registry; a call travels to a
// worker as a named reference plus explicitly captured values, is executed
// there and its result settles a future in the controller process:
//
//	svc, _ := hpcpool.New(ctx, hpcpool.WithMaxWorkers(2))
//	defer svc.Shutdown(ctx, true, false)
//	f, _ := svc.Submit(ctx, task.NewCall(callable, 1, 2))
//	sum, _ := f.Result(ctx)
//
// Two allocation modes are supported: block allocation boots a fixed set of
// long-lived workers fed from one FIFO queue, step allocation spawns a fresh
// worker per task and releases the allocation in between. Calls may depend
// on the futures of earlier calls; dispatch is deferred until every
// dependency resolved.
//
// The sub-packages document the wire protocol, the executors and the
// resource-manager launchers in detail.
package hpcpool
