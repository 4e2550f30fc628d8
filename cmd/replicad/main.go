// Command replicad drives the payload builder and the ECDSA pre-signer
// against an in-memory registry and artifact pool. It is a harness, not a
// networked replica: it demonstrates how the two subsystems are wired
// together and ticked, the way mining/simulator drove a block template
// builder against a set of JSON-RPC endpoints.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/daglabs/replicad/crypto"
	"github.com/daglabs/replicad/ecdsa"
	"github.com/daglabs/replicad/ecdsa/pool"
	"github.com/daglabs/replicad/logger"
	"github.com/daglabs/replicad/metrics"
	"github.com/daglabs/replicad/payload"
	"github.com/daglabs/replicad/registry"
	"github.com/daglabs/replicad/types"
	"github.com/daglabs/replicad/util/panics"
)

var rpldLog, _ = logger.Get(logger.SubsystemTags.RPLD)

var isRunning int32

func main() {
	defer panics.HandlePanic(rpldLog, nil)

	cfg, err := parseConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	nodeID := types.NodeId(cfg.NodeID)
	subnetID := payload.SubnetID(cfg.SubnetID)

	registryClient := registry.NewStaticClient()
	registryClient.Set(cfg.SubnetID, 1, registry.SubnetRecord{
		MaxBlockPayloadSize:       cfg.MaxBlockPayloadSize,
		MaxIngressBytesPerMessage: cfg.MaxIngressBytesPerMessage,
	})

	builder := payload.NewBuilder(
		subnetID,
		registryClient,
		payload.NoopIngressSelector{},
		payload.NoopXNetPayloadBuilder{},
		payload.NoopSelfValidatingPayloadBuilder{},
	)

	consensusCrypto, err := crypto.NewFakeConsensusCrypto(nodeID)
	if err != nil {
		rpldLog.Criticalf("failed to initialize crypto: %s", err)
		os.Exit(1)
	}

	artifactPool := pool.NewMemoryPool()
	transcriptBuilder := ecdsa.NewTranscriptBuilder(consensusCrypto)
	reader := &driverBlockReader{}
	preSigner := ecdsa.NewPreSigner(nodeID, &driverPoolCache{reader: reader}, consensusCrypto, transcriptBuilder)

	atomic.StoreInt32(&isRunning, 1)

	spawn := panics.GoroutineWrapperFunc(rpldLog)
	spawn(func() {
		driveTicks(cfg, builder, preSigner, artifactPool, transcriptBuilder, reader)
	})

	interrupt := interruptListener()
	<-interrupt
	atomic.StoreInt32(&isRunning, 0)
	rpldLog.Infof("replicad shutting down")
}

// driverBlockReader is a local, monotonically-advancing stand-in for the
// consensus layer's finalized-block view. A real replica would source this
// from its own consensus pool instead of a free-running counter.
type driverBlockReader struct {
	height    types.Height
	requested []*types.IDkgTranscriptParams
}

func (r *driverBlockReader) Height() types.Height { return r.height }
func (r *driverBlockReader) RequestedTranscripts() []*types.IDkgTranscriptParams {
	return r.requested
}

type driverPoolCache struct {
	reader *driverBlockReader
}

func (c *driverPoolCache) FinalizedBlock() ecdsa.BlockReader { return c.reader }

// driveTicks runs GetPayload and OnStateChange once per tick, logging what
// each call produced. It never blocks past a single tick's worth of work.
func driveTicks(cfg *config, builder *payload.Builder, preSigner *ecdsa.PreSigner, artifactPool *pool.MemoryPool, transcriptBuilder *ecdsa.TranscriptBuilder, reader *driverBlockReader) {
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	ctx := &types.ValidationContext{RegistryVersion: 1, Time: time.Now()}

	for range ticker.C {
		if atomic.LoadInt32(&isRunning) == 0 {
			return
		}

		reader.height++

		batch, err := builder.GetPayload(reader.height, nil, nil, ctx)
		if err != nil {
			rpldLog.Warnf("get_payload failed at height %d: %s", reader.height, err)
		} else {
			rpldLog.Debugf("built payload at height %d: ingress=%d xnet=%d self_validating=%d",
				reader.height, batch.Ingress.ByteSize(), batch.XNet.ByteSize(), batch.SelfValidating.ByteSize())
		}

		changes := preSigner.OnStateChange(artifactPool)
		if len(changes) > 0 {
			artifactPool.ApplyChanges(changes)
			rpldLog.Infof("applied %d ecdsa pool change(s) at height %d", len(changes), reader.height)
		}

		completed := transcriptBuilder.GetCompletedTranscripts(artifactPool, reader)
		for _, t := range completed {
			rpldLog.Infof("transcript %d completed with %d dealings", t.TranscriptID, len(t.CompletedDealings))
		}
	}
}

// interruptListener returns a channel that closes once, on the first
// SIGINT or SIGTERM.
func interruptListener() <-chan struct{} {
	c := make(chan struct{})
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		close(c)
	}()
	return c
}
