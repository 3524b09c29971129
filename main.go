package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/configure"
	"github.com/admiralbulldogtv/yapperqueue/src/global"
	"github.com/admiralbulldogtv/yapperqueue/src/manager"
	"github.com/admiralbulldogtv/yapperqueue/src/mongo"
	"github.com/admiralbulldogtv/yapperqueue/src/redis"
	"github.com/admiralbulldogtv/yapperqueue/src/scheduler"
	"github.com/admiralbulldogtv/yapperqueue/src/tts"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func schedulerConfig(cfg *configure.Config) scheduler.Config {
	return scheduler.Config{
		MaxQueueSize:    cfg.Queue.MaxSize,
		DedupWindow:     cfg.Queue.DedupWindow,
		DedupCacheSize:  cfg.Queue.DedupCacheSize,
		RateLimit:       cfg.Queue.RateLimit,
		RateWindow:      cfg.Queue.RateWindow,
		RateLedgerSize:  cfg.Queue.RateLedgerSize,
		Lookahead:       cfg.Queue.Lookahead,
		AvgItemDuration: cfg.Queue.AvgItemDuration,
		PollInterval:    cfg.Queue.PollInterval,
		CycleDelay:      cfg.Queue.CycleDelay,
		SynthTimeout:    cfg.Tts.SynthTimeout,
		InfoLimit:       cfg.Queue.InfoLimit,
		Weights: scheduler.PriorityWeights{
			Level:      cfg.Priority.LevelWeight,
			Subscriber: cfg.Priority.SubscriberBonus,
			Gift:       cfg.Priority.GiftBonus,
			Manual:     cfg.Priority.ManualBonus,
		},
	}
}

func main() {
	cfg := configure.New()

	ctx, cancel := global.WithCancel(global.NewCtx(context.Background(), cfg))
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logrus.Info("shutting down")
		cancel()
	}()

	channelID, err := primitive.ObjectIDFromHex(cfg.Tts.ChannelID)
	if err != nil {
		logrus.WithError(err).Fatal("invalid tts channel id")
	}

	mongoInst, err := mongo.NewInstance(ctx, cfg.Mongo.URI, cfg.Mongo.DB)
	if err != nil {
		logrus.WithError(err).Fatal("failed to start mongo")
	}

	redisInst, err := redis.NewInstance(ctx, redis.SetupOptions{
		Username:   cfg.Redis.Username,
		Password:   cfg.Redis.Password,
		MasterName: cfg.Redis.MasterName,
		Database:   cfg.Redis.Database,
		Addresses:  cfg.Redis.Addresses,
		Sentinel:   cfg.Redis.Sentinel,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to start redis")
	}

	synth, err := tts.NewInstance(ctx, redisInst, mongoInst, tts.Options{
		SetKey:       cfg.Redis.TaskSetKey,
		OutputEvent:  cfg.Redis.OutputEvent,
		SegmentLimit: cfg.Tts.MaxSegmentLength,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to start tts")
	}

	sched, err := scheduler.New(schedulerConfig(cfg), scheduler.WithLogger(logrus.WithField("component", "scheduler")))
	if err != nil {
		logrus.WithError(err).Fatal("failed to start scheduler")
	}
	sched.RegisterSynthesizer(synth)

	player := tts.NewPlayer(redisInst, synth, mongoInst, tts.PlayerOptions{
		ChannelID:     channelID,
		WavExpiry:     cfg.Tts.WavExpiry,
		PlaybackGrace: cfg.Tts.PlaybackGrace,
		SynthTimeout:  cfg.Tts.SynthTimeout,
	})

	ctx.Inst().Mongo = mongoInst
	ctx.Inst().Redis = redisInst
	ctx.Inst().Synth = synth
	ctx.Inst().Player = player
	ctx.Inst().Scheduler = sched

	sched.StartProcessing(player)

	done := manager.New(ctx)

	<-done

	sched.SkipCurrent()
	select {
	case <-sched.StopProcessing():
	case <-time.After(10 * time.Second):
		logrus.Warn("playback did not stop in time")
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()

	var closeErr error
	if err := redisInst.Close(); err != nil {
		closeErr = multierror.Append(closeErr, err)
	}
	if err := mongoInst.Close(closeCtx); err != nil {
		closeErr = multierror.Append(closeErr, err)
	}
	if closeErr != nil {
		logrus.WithError(closeErr).Error("failed to close instances")
	}
}
