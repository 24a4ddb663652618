package pool

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/viant/hpcpool/service/codec"
	"github.com/viant/hpcpool/service/socket"
	"github.com/viant/hpcpool/service/worker"
)

type inprocProcess struct{ done chan struct{} }

func (p *inprocProcess) Wait() error { <-p.done; return nil }
func (p *inprocProcess) Kill() error { return nil }

// inprocStarter runs worker loops in goroutines instead of spawning
// processes; boots counts how many workers were started.
func inprocStarter(registry *codec.Registry, boots *atomic.Int64) socket.Starter {
	return func(ctx context.Context, command []string, dir string) (socket.Process, error) {
		if boots != nil {
			boots.Add(1)
		}
		var host, port string
		for i := 0; i < len(command)-1; i++ {
			switch command[i] {
			case "--host":
				host = command[i+1]
			case "--port":
				port = command[i+1]
			}
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = worker.New(registry).Run(ctx, net.JoinHostPort(host, port))
		}()
		return &inprocProcess{done: done}, nil
	}
}
