package client

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	zmq "github.com/pebbe/zmq4"

	"github.com/bardlex/goasic/internal/messaging"
	"github.com/bardlex/goasic/internal/work"
	"github.com/bardlex/goasic/pkg/errors"
	"github.com/bardlex/goasic/pkg/log"
)

// recvIdle is how long the receive loop sleeps when the SUB socket has no
// message pending.
const recvIdle = 10 * time.Millisecond

// reconnectDelay is how long the receive loop waits before redialing an
// unreachable feed.
const reconnectDelay = 5 * time.Second

// ZMQSource is a job-source node fed by a ZMQ PUB/SUB job feed. Each
// received message replaces the node's last job; the node never buffers a
// job backlog because only the newest job is worth mining.
type ZMQSource struct {
	descriptor Descriptor
	identity   work.SourceID
	status     StatusNode
	lastJob    atomicJob
	onJob      func(*work.Job)
	logger     *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// atomicJob holds the most recent job pointer.
type atomicJob struct {
	mu  sync.RWMutex
	job *work.Job
}

func (a *atomicJob) load() *work.Job {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.job
}

func (a *atomicJob) store(j *work.Job) {
	a.mu.Lock()
	a.job = j
	a.mu.Unlock()
}

// NewZMQSource creates a job source for the endpoint and topic in the
// descriptor. onJob, if non-nil, is invoked for every accepted job after it
// becomes the node's last job.
func NewZMQSource(descriptor Descriptor, onJob func(*work.Job), logger *log.Logger) *ZMQSource {
	return &ZMQSource{
		descriptor: descriptor,
		identity:   work.NextSourceID(),
		onJob:      onJob,
		logger:     logger.WithClient(descriptor.Name, descriptor.Endpoint),
	}
}

// Identity returns the node's stable identity token.
func (z *ZMQSource) Identity() work.SourceID {
	return z.identity
}

// Status returns the node's lifecycle state.
func (z *ZMQSource) Status() Status {
	return z.status.Status()
}

// LastJob returns the most recent job, or nil before the first one arrives.
func (z *ZMQSource) LastJob() *work.Job {
	return z.lastJob.load()
}

// Prime seeds the source with a cached job so mining can resume before the
// feed publishes again. Does nothing once a live job has arrived.
func (z *ZMQSource) Prime(job *work.Job) {
	z.lastJob.mu.Lock()
	defer z.lastJob.mu.Unlock()
	if z.lastJob.job == nil {
		z.lastJob.job = job
	}
}

// Start launches the receive loop. The loop dials the feed, retrying until
// it is reachable, and only then transitions the node to running; a feed
// that is down keeps the node in the starting state rather than failing the
// enable. A concurrent or repeated Start is a no-op; the status machine
// admits one winner.
func (z *ZMQSource) Start() {
	if !z.status.InitiateStarting() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	z.mu.Lock()
	z.cancel = cancel
	z.done = done
	z.mu.Unlock()

	go z.run(ctx, done)
}

// Stop transitions the node out of running and waits for the receive loop
// to exit. A concurrent or repeated Stop is a no-op.
func (z *ZMQSource) Stop() {
	if !z.status.InitiateStopping() {
		return
	}

	z.mu.Lock()
	cancel := z.cancel
	done := z.done
	z.cancel = nil
	z.done = nil
	z.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	z.status.SetStopped()
	z.logger.LogClientState(z.descriptor.Name, "stopped", false)
}

func (z *ZMQSource) connect() (*zmq.Socket, error) {
	socket, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "zmq_socket",
			"failed to create ZMQ socket")
	}

	if err := socket.SetSubscribe(z.descriptor.Topic); err != nil {
		_ = socket.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "zmq_subscribe",
			"failed to subscribe to job topic").
			WithContext("topic", z.descriptor.Topic)
	}

	if err := socket.Connect(z.descriptor.Endpoint); err != nil {
		_ = socket.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "zmq_connect",
			"failed to connect to job feed").
			WithContext("endpoint", z.descriptor.Endpoint)
	}

	z.logger.Info("connected to job feed", "topic", z.descriptor.Topic)
	return socket, nil
}

// connectLoop dials the feed until it succeeds or the context ends.
func (z *ZMQSource) connectLoop(ctx context.Context) *zmq.Socket {
	for {
		socket, err := z.connect()
		if err == nil {
			return socket
		}
		z.logger.WithError(err).Warn("job feed unreachable, retrying",
			"retry_in", reconnectDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (z *ZMQSource) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	socket := z.connectLoop(ctx)
	if socket == nil {
		return
	}
	defer func() {
		if err := socket.Close(); err != nil {
			z.logger.WithError(err).Error("failed to close ZMQ socket")
		}
	}()

	z.status.SetRunning()
	z.logger.LogClientState(z.descriptor.Name, "started", true)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := socket.RecvMessageBytes(zmq.DONTWAIT)
		if err != nil {
			if err.Error() == "resource temporarily unavailable" {
				// No message pending.
				select {
				case <-ctx.Done():
					return
				case <-time.After(recvIdle):
				}
				continue
			}
			z.logger.WithError(err).Error("failed to receive job message")
			continue
		}

		if len(msg) < 2 {
			z.logger.Warn("received malformed job message", "parts", len(msg))
			continue
		}

		topic := string(msg[0])
		if topic != z.descriptor.Topic {
			z.logger.Warn("unexpected job topic", "topic", topic)
			continue
		}

		job, err := DecodeJob(msg[1], z.identity)
		if err != nil {
			z.logger.WithError(err).Error("failed to decode job message")
			continue
		}

		z.lastJob.store(job)
		z.logger.Info("new job received",
			"job_id", job.ID,
			"block_height", job.Height,
		)

		if z.onJob != nil {
			z.onJob(job)
		}
	}
}

// DecodeJob parses a JSON job feed payload into a Job owned by the given
// source identity.
func DecodeJob(payload []byte, origin work.SourceID) (*work.Job, error) {
	var msg messaging.JobMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "decode_job",
			"failed to decode job payload").
			WithContext("payload_size", len(payload))
	}
	return JobFromMessage(msg, origin)
}

// JobFromMessage converts a decoded job message into a Job owned by the
// given source identity.
func JobFromMessage(msg messaging.JobMessage, origin work.SourceID) (*work.Job, error) {
	prevHash, err := chainhash.NewHashFromStr(msg.PrevHash)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "parse_prev_hash",
			"invalid previous block hash").
			WithContext("job_id", msg.JobID)
	}

	merkleRoot, err := chainhash.NewHashFromStr(msg.MerkleRoot)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "parse_merkle_root",
			"invalid merkle root").
			WithContext("job_id", msg.JobID)
	}

	version, err := parseHex32(msg.Version)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "parse_version",
			"invalid version field").
			WithContext("job_id", msg.JobID)
	}

	bits, err := parseHex32(msg.NBits)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "parse_nbits",
			"invalid nbits field").
			WithContext("job_id", msg.JobID)
	}

	ntime, err := parseHex32(msg.NTime)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "parse_ntime",
			"invalid ntime field").
			WithContext("job_id", msg.JobID)
	}

	maxNTime := ntime
	if msg.MaxNTime != "" {
		maxNTime, err = parseHex32(msg.MaxNTime)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "parse_max_ntime",
				"invalid max_ntime field").
				WithContext("job_id", msg.JobID)
		}
	}

	return work.NewJob(msg.JobID, msg.BlockHeight, version, *prevHash, *merkleRoot,
		bits, ntime, maxNTime, msg.Reward, origin), nil
}

func parseHex32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
