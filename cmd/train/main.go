// Train a generals policy/value network with asynchronous advantage
// actor-critic.
package main

import (
	"context"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/timpalpant/go-a3c"
	"github.com/timpalpant/go-a3c/generals"
	"github.com/timpalpant/go-a3c/ldbstore"
	"github.com/timpalpant/go-a3c/rdbstore"
	"github.com/timpalpant/go-a3c/tilenet"
)

type RunParams struct {
	Train   a3c.Params
	Env     generals.EnvParams
	Network tilenet.Config

	CheckpointDir     string
	CheckpointBackend string
	DebugAddr         string
}

func main() {
	params := RunParams{
		Train: a3c.DefaultParams(),
		Env:   generals.DefaultEnvParams(),
	}
	params.Network.Channels = generals.NumPlanes

	flag.Float64Var(&params.Train.Gamma, "gamma", params.Train.Gamma, "Discount factor for rewards")
	flag.Float64Var(&params.Train.Tau, "tau", params.Train.Tau, "GAE parameter")
	flag.Float64Var(&params.Train.EntropyCoef, "beta", params.Train.EntropyCoef, "Entropy regularization coefficient")
	flag.Float64Var(&params.Train.OffTileCoef, "off_tile_coef", params.Train.OffTileCoef,
		"Penalty on probability mass assigned to illegal moves")
	flag.Float64Var(&params.Train.ValueLossCoef, "value_loss_coef", params.Train.ValueLossCoef,
		"Weight of the value loss")
	flag.Float64Var(&params.Train.MaxGradNorm, "max_grad_norm", params.Train.MaxGradNorm,
		"Gradients are clipped to this global norm")
	flag.IntVar(&params.Train.NumSteps, "num_steps", params.Train.NumSteps,
		"Number of forward steps in A3C")
	flag.IntVar(&params.Train.MaxEpisodeLength, "max_episode_length", params.Train.MaxEpisodeLength,
		"Maximum length of an episode")
	flag.Float64Var(&params.Train.Optimizer.LearningRate, "lr", params.Train.Optimizer.LearningRate,
		"Adam learning rate")
	flag.Int64Var(&params.Train.Seed, "seed", params.Train.Seed, "Random seed")
	flag.IntVar(&params.Train.NumWorkers, "num_processes", params.Train.NumWorkers,
		"Number of training workers to use")
	flag.IntVar(&params.Train.MaxRestarts, "max_restarts", params.Train.MaxRestarts,
		"Number of times a failed worker is restarted")
	flag.Int64Var(&params.Train.MaxIterations, "max_iterations", params.Train.MaxIterations,
		"Training iterations per worker (0 = unbounded)")
	flag.DurationVar(&params.Train.ReportInterval, "report_interval", params.Train.ReportInterval,
		"How often to log training progress")
	flag.DurationVar(&params.Train.CheckpointInterval, "checkpoint_interval", params.Train.CheckpointInterval,
		"How often to save the shared model")

	flag.IntVar(&params.Env.Height, "env.height", params.Env.Height, "Map height")
	flag.IntVar(&params.Env.Width, "env.width", params.Env.Width, "Map width")
	flag.IntVar(&params.Env.Mountains, "env.mountains", params.Env.Mountains, "Number of mountains per map")
	flag.IntVar(&params.Env.Cities, "env.cities", params.Env.Cities, "Number of cities per map")
	flag.IntVar(&params.Env.MaxTurns, "env.max_turns", params.Env.MaxTurns, "Turn limit per game")
	flag.Float64Var(&params.Env.IllegalMovePenalty, "env.illegal_move_penalty", params.Env.IllegalMovePenalty,
		"Reward penalty for illegal moves")

	flag.IntVar(&params.Network.Hidden, "net.hidden", 32, "Hidden units per tile")

	flag.StringVar(&params.CheckpointDir, "checkpoint_dir", "", "Directory to save checkpoints to")
	flag.StringVar(&params.CheckpointBackend, "checkpoint_backend", "leveldb",
		"Checkpoint database (leveldb or rocksdb)")
	flag.StringVar(&params.DebugAddr, "debug_addr", "localhost:4123",
		"Address to serve expvar and pprof on")

	flag.Parse()

	params.Env.Seed = params.Train.Seed
	params.Network.Seed = params.Train.Seed
	if params.DebugAddr != "" {
		go http.ListenAndServe(params.DebugAddr, nil)
	}

	checkpointer, err := openCheckpointer(params)
	if err != nil {
		glog.Fatal(err)
	}
	if checkpointer != nil {
		defer checkpointer.Close()
	}

	newEnv := func(rank int) (a3c.Env, error) {
		p := params.Env
		p.Seed += int64(rank)
		return generals.NewEnv(p), nil
	}

	trainer, err := a3c.NewTrainer(params.Train, newEnv, tilenet.Factory(params.Network), checkpointer)
	if err != nil {
		glog.Fatal(err)
	}
	trainer.Stats().Publish("a3c")

	ctx, cancel := context.WithCancel(context.Background())
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigC
		glog.Infof("Received %v, stopping training", sig)
		cancel()
	}()

	glog.Infof("Training with params: %+v", params)
	if err := trainer.Run(ctx); err != nil {
		glog.Fatal(err)
	}
}

func openCheckpointer(params RunParams) (a3c.Checkpointer, error) {
	if params.CheckpointDir == "" {
		return nil, nil
	}

	switch params.CheckpointBackend {
	case "leveldb":
		return ldbstore.NewCheckpoints(params.CheckpointDir, &opt.Options{})
	case "rocksdb":
		return rdbstore.NewCheckpoints(rdbstore.DefaultParams(params.CheckpointDir))
	default:
		glog.Fatalf("Unknown checkpoint backend: %s", params.CheckpointBackend)
	}

	return nil, nil
}
