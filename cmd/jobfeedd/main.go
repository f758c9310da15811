// Package main implements jobfeedd, a lab job feed for asicd. It publishes
// synthetic mining jobs over ZMQ PUB at a fixed interval, standing in for a
// pool-connected job generator during hashboard bring-up.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/bardlex/goasic/internal/config"
	"github.com/bardlex/goasic/internal/messaging"
	"github.com/bardlex/goasic/pkg/log"
)

// Regtest-grade difficulty so lab hardware finds plenty of solutions.
const labBits = "207fffff"

// ntime window granted for rolling, in seconds.
const ntimeWindow = 600

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New("jobfeedd", cfg.Version, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting jobfeedd",
		"bind", cfg.JobFeedBind,
		"topic", cfg.JobFeedTopic,
		"interval", cfg.JobFeedInterval,
	)

	socket, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		logger.WithError(err).Error("failed to create ZMQ socket")
		os.Exit(1)
	}
	defer func() {
		if err := socket.Close(); err != nil {
			logger.WithError(err).Error("failed to close ZMQ socket")
		}
	}()

	if err := socket.Bind(cfg.JobFeedBind); err != nil {
		logger.WithError(err).Error("failed to bind job feed endpoint")
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.JobFeedInterval)
	defer ticker.Stop()

	feed := newFeed(840000)

	// First job goes out immediately; SUB sockets that connect later pick
	// up the next tick.
	publish(socket, cfg.JobFeedTopic, feed.next(), logger)

	for {
		select {
		case <-sigChan:
			logger.Info("jobfeedd stopped")
			return
		case <-ticker.C:
			publish(socket, cfg.JobFeedTopic, feed.next(), logger)
		}
	}
}

// feed generates a sequence of synthetic jobs with advancing heights.
type feed struct {
	height int64
	seq    int64
}

func newFeed(startHeight int64) *feed {
	return &feed{height: startHeight}
}

func (f *feed) next() messaging.JobMessage {
	f.seq++
	f.height++

	now := uint32(time.Now().Unix())

	return messaging.JobMessage{
		JobID:       fmt.Sprintf("lab-%d", f.seq),
		BlockHeight: f.height,
		PrevHash:    randomHash(),
		MerkleRoot:  randomHash(),
		Version:     "20000000",
		NBits:       labBits,
		NTime:       fmt.Sprintf("%08x", now),
		MaxNTime:    fmt.Sprintf("%08x", now+ntimeWindow),
		Reward:      312500000,
		CreatedAt:   time.Now().UTC(),
	}
}

func randomHash() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// Fallback keeps the feed alive even if the entropy source fails.
		return fmt.Sprintf("%064x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func publish(socket *zmq.Socket, topic string, msg messaging.JobMessage, logger *log.Logger) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.WithError(err).Error("failed to marshal job", "job_id", msg.JobID)
		return
	}

	if _, err := socket.SendMessage(topic, payload); err != nil {
		logger.WithError(err).Error("failed to publish job", "job_id", msg.JobID)
		return
	}

	logger.Info("published job",
		"job_id", msg.JobID,
		"block_height", msg.BlockHeight,
	)
}
